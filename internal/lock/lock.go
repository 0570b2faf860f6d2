// Package lock guards single-instance daemon startup with a pidfile
// held under an exclusive flock.
package lock

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Pidfile is an exclusively locked file recording the PID of the process
// holding it. A second process acquiring the same path fails immediately
// instead of blocking.
type Pidfile struct {
	path string
	file *os.File
}

func New(path string) *Pidfile {
	return &Pidfile{path: path}
}

// Acquire takes the lock and records the current PID.
func (p *Pidfile) Acquire() error {
	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open pidfile: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("acquire pidfile lock (another agent may be running): %w", err)
	}

	if err := f.Truncate(0); err != nil {
		releaseAndClose(f)
		return fmt.Errorf("truncate pidfile: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		releaseAndClose(f)
		return fmt.Errorf("seek pidfile: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		releaseAndClose(f)
		return fmt.Errorf("write pid: %w", err)
	}
	if err := f.Sync(); err != nil {
		releaseAndClose(f)
		return fmt.Errorf("sync pidfile: %w", err)
	}

	p.file = f
	return nil
}

// Release drops the lock and removes the pidfile. Releasing an unheld
// lock is a no-op.
func (p *Pidfile) Release() error {
	if p.file == nil {
		return nil
	}

	if err := syscall.Flock(int(p.file.Fd()), syscall.LOCK_UN); err != nil {
		p.file.Close()
		return fmt.Errorf("release pidfile lock: %w", err)
	}

	if err := p.file.Close(); err != nil {
		return fmt.Errorf("close pidfile: %w", err)
	}

	os.Remove(p.path)
	p.file = nil
	return nil
}

func releaseAndClose(f *os.File) {
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	_ = f.Close()
}

// ReadPid reports the PID recorded in the pidfile at path.
func ReadPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pidfile %s: %w", path, err)
	}
	return pid, nil
}
