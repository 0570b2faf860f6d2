package status

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reliefops/logistics-agent/internal/uds"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestFetch_AgentNotRunning(t *testing.T) {
	report := Fetch("/tmp/nonexistent-logisticsd-test.sock")
	if report.Running {
		t.Error("expected agent not running")
	}
	if report.Agent != nil {
		t.Error("expected no agent snapshot")
	}
}

func TestFetch_RunningAgent(t *testing.T) {
	dir, err := os.MkdirTemp("/tmp", "ld-status-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	sockPath := filepath.Join(dir, "s.sock")

	served := Agent{
		Name:            "LogisticsCoordinator",
		StartedAt:       time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		UptimeSeconds:   7260,
		Warehouses:      4,
		ActiveShipments: 7,
		Metrics: Metrics{
			Cycles:    42,
			Decisions: map[string]int64{"inventory_transfer": 3, "reroute": 1},
			Alerts:    5,
		},
	}

	server := uds.NewServer(sockPath, quietLogger())
	server.Handle("status", func(uds.Query) *uds.Reply {
		return uds.Ok(served)
	})
	if err := server.Start(); err != nil {
		t.Fatalf("server start: %v", err)
	}
	defer server.Stop()

	report := Fetch(sockPath)
	if !report.Running {
		t.Fatal("expected agent running")
	}
	if report.Agent == nil {
		t.Fatal("expected agent snapshot")
	}
	if report.Agent.Name != "LogisticsCoordinator" {
		t.Errorf("name: got %q", report.Agent.Name)
	}
	if report.Agent.Metrics.Cycles != 42 {
		t.Errorf("cycles: got %d", report.Agent.Metrics.Cycles)
	}
	if report.Agent.Metrics.Decisions["inventory_transfer"] != 3 {
		t.Errorf("transfers: got %d", report.Agent.Metrics.Decisions["inventory_transfer"])
	}
}

func TestPrintReport_Stopped(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &Report{Running: false})
	if !strings.Contains(buf.String(), "Agent: stopped") {
		t.Errorf("output: %q", buf.String())
	}
}

func TestPrintReport_StalePidfile(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &Report{Running: false, Pid: 4242})
	if !strings.Contains(buf.String(), "not responding") {
		t.Errorf("output: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "4242") {
		t.Errorf("output: %q", buf.String())
	}
}

func TestPrintReport_Running(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &Report{
		Running: true,
		Pid:     1234,
		Agent: &Agent{
			Name:            "LogisticsCoordinator",
			UptimeSeconds:   3600,
			LastCycleAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			Warehouses:      4,
			ActiveShipments: 7,
			DisruptedRoutes: 1,
			Metrics: Metrics{
				Cycles:            60,
				Decisions:         map[string]int64{"reroute": 2, "inventory_transfer": 5},
				ExecutionFailures: 1,
				Alerts:            8,
				Issues:            3,
			},
		},
	})

	out := buf.String()
	for _, want := range []string{
		"Agent: running (pid 1234)",
		"LogisticsCoordinator",
		"1h0m0s",
		"Warehouses: 4",
		"Active shipments: 7",
		"Disrupted routes: 1",
		"Cycles: 60",
		"inventory_transfer",
		"reroute",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	// Decision types print in sorted order
	if strings.Index(out, "inventory_transfer") > strings.Index(out, "reroute") {
		t.Error("decision types not sorted")
	}
}
