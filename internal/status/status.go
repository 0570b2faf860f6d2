// Package status queries a running agent over its status socket and
// renders the answer for the CLI. The wire types here are what the
// agent serves on the "status" command.
package status

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/reliefops/logistics-agent/internal/lock"
	"github.com/reliefops/logistics-agent/internal/uds"
)

// Report is the CLI-facing view of one agent process.
type Report struct {
	Running bool   `json:"running"`
	Pid     int    `json:"pid,omitempty"`
	Agent   *Agent `json:"agent,omitempty"`
}

// Agent is the snapshot a running agent publishes after each cycle.
type Agent struct {
	Name            string    `json:"name"`
	StartedAt       time.Time `json:"started_at"`
	UptimeSeconds   int64     `json:"uptime_seconds"`
	LastCycleAt     time.Time `json:"last_cycle_at"`
	Warehouses      int       `json:"warehouses"`
	ActiveShipments int       `json:"active_shipments"`
	DisruptedRoutes int       `json:"disrupted_routes"`
	Metrics         Metrics   `json:"metrics"`
}

// Metrics are the cycle counters the agent accumulates while running.
type Metrics struct {
	Cycles            int64            `json:"cycles"`
	Decisions         map[string]int64 `json:"decisions_by_type,omitempty"`
	ExecutionFailures int64            `json:"execution_failures"`
	Alerts            int64            `json:"alerts"`
	Issues            int64            `json:"issues"`
}

// Fetch asks the agent listening on socketPath for its status. A
// connection failure means no agent is running, not an error.
func Fetch(socketPath string) *Report {
	client := uds.NewClient(socketPath)
	client.SetTimeout(5 * time.Second)

	reply, err := client.Send("status")
	if err != nil || !reply.OK {
		return &Report{Running: false}
	}

	var agent Agent
	if err := json.Unmarshal(reply.Data, &agent); err != nil {
		return &Report{Running: true}
	}
	return &Report{Running: true, Agent: &agent}
}

// Run fetches the agent's status and prints it.
func Run(socketPath, pidfilePath string, jsonOutput bool) error {
	report := Fetch(socketPath)
	if pid, err := lock.ReadPid(pidfilePath); err == nil {
		report.Pid = pid
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(os.Stdout, report)
	return nil
}

func printReport(w io.Writer, r *Report) {
	if !r.Running {
		if r.Pid != 0 {
			fmt.Fprintf(w, "Agent: not responding (stale pidfile, pid %d)\n", r.Pid)
		} else {
			fmt.Fprintln(w, "Agent: stopped")
		}
		return
	}

	if r.Pid != 0 {
		fmt.Fprintf(w, "Agent: running (pid %d)\n", r.Pid)
	} else {
		fmt.Fprintln(w, "Agent: running")
	}

	a := r.Agent
	if a == nil {
		return
	}

	fmt.Fprintf(w, "Name:   %s\n", a.Name)
	fmt.Fprintf(w, "Uptime: %s\n", (time.Duration(a.UptimeSeconds) * time.Second).String())
	if !a.LastCycleAt.IsZero() {
		fmt.Fprintf(w, "Last cycle: %s\n", a.LastCycleAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "\nWarehouses: %d   Active shipments: %d   Disrupted routes: %d\n",
		a.Warehouses, a.ActiveShipments, a.DisruptedRoutes)

	m := a.Metrics
	fmt.Fprintf(w, "\nCycles: %d   Alerts: %d   Issues: %d   Execution failures: %d\n",
		m.Cycles, m.Alerts, m.Issues, m.ExecutionFailures)

	if len(m.Decisions) > 0 {
		fmt.Fprintln(w, "\nDecisions:")
		types := make([]string, 0, len(m.Decisions))
		for t := range m.Decisions {
			types = append(types, t)
		}
		sort.Strings(types)
		fmt.Fprintf(w, "  %-22s  %7s\n", "TYPE", "COUNT")
		for _, t := range types {
			fmt.Fprintf(w, "  %-22s  %7d\n", t, m.Decisions[t])
		}
	}
}
