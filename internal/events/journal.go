package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// journalFile is the active log under the journal directory.
	journalFile = "agent.jsonl"
	// archiveDir receives rotated-out journal files.
	archiveDir = "archive"

	// DefaultMaxJournalSize caps the active file at 100MB.
	DefaultMaxJournalSize = 100 * 1024 * 1024
)

// Entry is one journaled agent event. The id columns are lifted from
// event data so operators can grep the journal by shipment or decision
// without parsing nested JSON.
type Entry struct {
	At          time.Time      `json:"at"`
	Type        Type           `json:"type"`
	DecisionID  string         `json:"decision_id,omitempty"`
	ShipmentID  string         `json:"shipment_id,omitempty"`
	WarehouseID string         `json:"warehouse_id,omitempty"`
	RouteID     string         `json:"route_id,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	Checksum    string         `json:"checksum,omitempty"`
}

// Journal appends agent events as JSONL under the state directory and
// rotates full files into archive/. Every entry carries a checksum so
// torn or tampered lines are detectable.
type Journal struct {
	mu        sync.Mutex
	file      *os.File
	size      int64
	maxSize   int64
	path      string
	rotations int
}

// OpenJournal opens (or creates) the journal in dir.
func OpenJournal(dir string, maxSize int64) (*Journal, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxJournalSize
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	j := &Journal{
		path:    filepath.Join(dir, journalFile),
		maxSize: maxSize,
	}
	if err := j.open(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) open() error {
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat journal: %w", err)
	}
	j.file = file
	j.size = stat.Size()
	return nil
}

// Record journals one event.
func (j *Journal) Record(ev Event) error {
	entry := Entry{
		At:      ev.At,
		Type:    ev.Type,
		Details: ev.Data,
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	if id, ok := ev.Data["decision_id"].(string); ok {
		entry.DecisionID = id
	}
	if id, ok := ev.Data["shipment_id"].(string); ok {
		entry.ShipmentID = id
	}
	if id, ok := ev.Data["warehouse_id"].(string); ok {
		entry.WarehouseID = id
	}
	if id, ok := ev.Data["route_id"].(string); ok {
		entry.RouteID = id
	}
	return j.write(&entry)
}

func (j *Journal) write(entry *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry.Checksum = checksum(entry)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	data = append(data, '\n')

	if j.size+int64(len(data)) > j.maxSize {
		if err := j.rotate(); err != nil {
			return fmt.Errorf("rotate journal: %w", err)
		}
	}

	n, err := j.file.Write(data)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	j.size += int64(n)
	return nil
}

func (j *Journal) rotate() error {
	if err := j.file.Close(); err != nil {
		return err
	}

	dir := filepath.Join(filepath.Dir(j.path), archiveDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	j.rotations++
	stamp := time.Now().Format("20060102_150405")
	name := fmt.Sprintf("agent.%s.%d.jsonl", stamp, j.rotations)
	if err := os.Rename(j.path, filepath.Join(dir, name)); err != nil {
		return err
	}
	return j.open()
}

// Attach subscribes the journal to every event on the bus. The
// returned function detaches it.
func (j *Journal) Attach(bus *Bus) func() {
	return bus.Subscribe(func(ev Event) {
		// A failed append is already the failure path; there is
		// nowhere better to report it than the next read.
		_ = j.Record(ev)
	})
}

// Size returns the active file's current length.
func (j *Journal) Size() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.size
}

// Close syncs and closes the active file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}
	if err := j.file.Sync(); err != nil {
		return err
	}
	return j.file.Close()
}

// checksum hashes the entry with its checksum column blanked.
func checksum(entry *Entry) string {
	clean := *entry
	clean.Checksum = ""
	data, err := json.Marshal(clean)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", djb2(data))
}

func djb2(data []byte) uint64 {
	var hash uint64 = 5381
	for _, b := range data {
		hash = ((hash << 5) + hash) + uint64(b)
	}
	return hash
}

// VerifyJournal counts the entries in a journal file and how many pass
// their checksum. Unreadable lines are skipped, not fatal.
func VerifyJournal(path string) (total, valid int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	for decoder.More() {
		var entry Entry
		if err := decoder.Decode(&entry); err != nil {
			continue
		}
		total++

		if entry.Checksum == "" {
			valid++
			continue
		}
		want := entry.Checksum
		if checksum(&entry) == want {
			valid++
		}
	}
	return total, valid, nil
}
