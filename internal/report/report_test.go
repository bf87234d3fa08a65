package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(nodeID, outcome string) TestRun {
	return TestRun{NodeID: nodeID, Outcome: outcome}
}

func TestPassedTasksRequiresEveryTestToPass(t *testing.T) {
	rep := &Report{
		Summary: Summary{Total: 4},
		Tests: []TestRun{
			run("task_7_1::test_a", "passed"),
			run("task_7_2::test_a", "passed"),
			run("task_7_1::test_b", "passed"),
			run("task_7_2::test_b", "failed"),
		},
	}
	assert.Equal(t, []string{"task_7_1"}, PassedTasks(rep))
}

func TestPassedTasksEmptyReports(t *testing.T) {
	assert.Equal(t, []string{}, PassedTasks(nil))
	assert.Equal(t, []string{}, PassedTasks(&Report{}))
	assert.Equal(t, []string{}, PassedTasks(&Report{
		Summary: Summary{Total: 0},
		Tests:   []TestRun{run("test_task_7_1.py::test_a", "passed")},
	}))
}

func TestPassedTasksKeepsFirstSeenOrder(t *testing.T) {
	rep := &Report{
		Summary: Summary{Total: 5},
		Tests: []TestRun{
			run("test_task_7_5.py::test_x", "passed"),
			run("test_task_7_1.py::test_x", "passed"),
			run("test_task_7_3.py::test_x", "skipped"),
			run("test_task_7_2.py::test_x", "passed"),
			run("test_task_7_5.py::test_y", "passed"),
		},
	}
	assert.Equal(t, []string{"test_task_7_5.py", "test_task_7_1.py", "test_task_7_2.py"}, PassedTasks(rep))
}

func TestPassedTasksTreatsNonPassedOutcomesAsFailures(t *testing.T) {
	for _, outcome := range []string{"failed", "error", "skipped", "xfailed", "PASSED", ""} {
		rep := &Report{
			Summary: Summary{Total: 1},
			Tests:   []TestRun{run("test_task_7_1.py::test_a", outcome)},
		}
		assert.Empty(t, PassedTasks(rep), outcome)
	}
}

func TestModuleComponent(t *testing.T) {
	assert.Equal(t, "test_task_7_1.py", run("test_task_7_1.py::TestClass::test_a", "").Module())
	assert.Equal(t, "test_task_7_1.py", run("test_task_7_1.py", "").Module())
}

const sampleReport = `{
  "created": 1700000000.5,
  "duration": 0.42,
  "exitcode": 1,
  "root": "/home/student/exercises/07_closure",
  "environment": {"Python": "3.11"},
  "summary": {"passed": 2, "failed": 1, "total": 3, "collected": 3},
  "collectors": [{"nodeid": "", "outcome": "passed", "result": []}],
  "tests": [
    {"nodeid": "test_task_7_1.py::test_func", "lineno": 3, "outcome": "passed", "keywords": []},
    {"nodeid": "test_task_7_1.py::test_args", "lineno": 9, "outcome": "passed", "keywords": []},
    {"nodeid": "test_task_7_2.py::test_func", "lineno": 4, "outcome": "failed", "keywords": []}
  ]
}`

func TestLoadDecodesPytestJSONReport(t *testing.T) {
	rep, err := Load(strings.NewReader(sampleReport))
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Summary.Total)
	assert.Equal(t, 1, rep.Summary.Failed)
	assert.Equal(t, 1, rep.ExitCode)
	require.Len(t, rep.Tests, 3)
	assert.Equal(t, []string{"test_task_7_1.py"}, PassedTasks(rep))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleReport), 0o644))

	rep, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, rep.Tests, 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(strings.NewReader("{not json"))
	assert.Error(t, err)
}
