// Package report reads pytest-json-report documents and reduces them to the
// task modules whose tests all passed.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// NodeSeparator joins the module component and the test name in a node id.
const NodeSeparator = "::"

// OutcomePassed is the outcome pytest records for a passing test.
const OutcomePassed = "passed"

// Report is the subset of a pytest-json-report document the CLI needs.
type Report struct {
	Created  float64   `json:"created"`
	Duration float64   `json:"duration"`
	ExitCode int       `json:"exitcode"`
	Root     string    `json:"root"`
	Summary  Summary   `json:"summary"`
	Tests    []TestRun `json:"tests"`
}

// Summary holds the per-outcome counters of a run.
type Summary struct {
	Total     int `json:"total"`
	Collected int `json:"collected"`
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Error     int `json:"error"`
	Skipped   int `json:"skipped"`
}

// TestRun is one executed test.
type TestRun struct {
	NodeID  string `json:"nodeid"`
	Outcome string `json:"outcome"`
}

// Module returns the module component of the node id, e.g. test_task_7_1.py
// for test_task_7_1.py::test_function.
func (t TestRun) Module() string {
	module, _, _ := strings.Cut(t.NodeID, NodeSeparator)
	return module
}

// Passed reports whether the test outcome is passed.
func (t TestRun) Passed() bool {
	return t.Outcome == OutcomePassed
}

// Load decodes a report from r.
func Load(r io.Reader) (*Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("decode pytest report: %w", err)
	}
	return &rep, nil
}

// LoadFile decodes the report stored at path.
func LoadFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pytest report: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// PassedTasks returns the modules whose tests all passed, in the order the
// modules first appear in the report. A nil report or one with no tests
// yields an empty list.
func PassedTasks(rep *Report) []string {
	passed := []string{}
	if rep == nil || rep.Summary.Total == 0 {
		return passed
	}

	var order []string
	outcomes := make(map[string][]bool)
	for _, test := range rep.Tests {
		module := test.Module()
		if _, ok := outcomes[module]; !ok {
			order = append(order, module)
		}
		outcomes[module] = append(outcomes[module], test.Passed())
	}

	for _, module := range order {
		if allTrue(outcomes[module]) {
			passed = append(passed, module)
		}
	}
	return passed
}

func allTrue(flags []bool) bool {
	if len(flags) == 0 {
		return false
	}
	for _, flag := range flags {
		if !flag {
			return false
		}
	}
	return true
}
