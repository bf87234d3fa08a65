package selector

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"

	courseerr "apyneng/internal/errors"
)

// AllTasks is the selector that picks every task of the chapter.
const AllTasks = "all"

var (
	tokenSeparator = regexp.MustCompile(`[ ,]+`)

	taskToken = regexp.MustCompile(`^(?:` +
		`(?P<all>all)|` +
		`(?P<number_star>\d\*)|` +
		`(?P<letters_range>\d[a-i]-[a-i])|` +
		`(?P<numbers_range>\d-\d)|` +
		`(?P<single_task>\d[a-i]?)` +
		`)$`)
)

// Expansion is the result of expanding a task selector. All lists are sorted.
type Expansion struct {
	// Tests are the test files found for the selected tasks.
	Tests []string
	// TasksWithoutTests are task files that have no matching test file.
	TasksWithoutTests []string
	// Tasks are all task files found for the selected tasks.
	Tasks []string
}

// TaskFile returns the task file name for a chapter and task, e.g. task_7_2a.py.
func TaskFile(chapter int, task string) string {
	return fmt.Sprintf("task_%d_%s.py", chapter, task)
}

// TestFile returns the test file name paired with a task file name.
func TestFile(taskFile string) string {
	return "test_" + taskFile
}

// TaskForTest strips the test_ prefix from a test file name.
func TaskForTest(testFile string) string {
	return strings.TrimPrefix(testFile, "test_")
}

// ExpandTasks expands raw into the task and test files of chapter that exist in
// dir. An unsupported token aborts the whole expansion with a usage error.
func ExpandTasks(fsys afero.Fs, dir string, chapter int, raw string) (Expansion, error) {
	tokens := splitTokens(raw)
	if len(tokens) == 0 {
		return Expansion{}, courseerr.NewUnsupportedToken(raw)
	}

	tests := make(map[string]struct{})
	tasks := make(map[string]struct{})

	for _, token := range tokens {
		shape, ok := classify(token)
		if !ok {
			return Expansion{}, courseerr.NewUnsupportedToken(token)
		}
		if shape == "all" {
			return expandAll(fsys, dir, chapter)
		}
		pattern := globFragment(shape, token)
		if err := globInto(fsys, dir, TestFile(TaskFile(chapter, pattern)), tests); err != nil {
			return Expansion{}, err
		}
		if err := globInto(fsys, dir, TaskFile(chapter, pattern), tasks); err != nil {
			return Expansion{}, err
		}
	}

	return newExpansion(tests, tasks), nil
}

func expandAll(fsys afero.Fs, dir string, chapter int) (Expansion, error) {
	tests := make(map[string]struct{})
	tasks := make(map[string]struct{})
	if err := globInto(fsys, dir, TestFile(TaskFile(chapter, "*")), tests); err != nil {
		return Expansion{}, err
	}
	if err := globInto(fsys, dir, TaskFile(chapter, "*"), tasks); err != nil {
		return Expansion{}, err
	}
	return newExpansion(tests, tasks), nil
}

func newExpansion(tests, tasks map[string]struct{}) Expansion {
	withTests := make(map[string]struct{}, len(tests))
	for test := range tests {
		withTests[TaskForTest(test)] = struct{}{}
	}
	var without []string
	for task := range tasks {
		if _, ok := withTests[task]; !ok {
			without = append(without, task)
		}
	}
	sort.Strings(without)
	return Expansion{
		Tests:             sortedKeys(tests),
		TasksWithoutTests: without,
		Tasks:             sortedKeys(tasks),
	}
}

// classify returns the name of the selector shape token matches.
func classify(token string) (string, bool) {
	match := taskToken.FindStringSubmatch(token)
	if match == nil {
		return "", false
	}
	for i, name := range taskToken.SubexpNames() {
		if name != "" && match[i] != "" {
			return name, true
		}
	}
	return "", false
}

// globFragment rewrites range shapes into glob character classes:
// 1a-c becomes 1[a-c] and 1-3 becomes [1-3].
func globFragment(shape, token string) string {
	switch shape {
	case "letters_range":
		return token[:1] + "[" + token[1:] + "]"
	case "numbers_range":
		return "[" + token + "]"
	default:
		return token
	}
}

// globInto matches pattern against the file names in dir only, so glob
// metacharacters in dir itself are taken literally.
func globInto(fsys afero.Fs, dir, pattern string, into map[string]struct{}) error {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("list %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ok, err := filepath.Match(pattern, entry.Name())
		if err != nil {
			return fmt.Errorf("glob %s: %w", pattern, err)
		}
		if ok {
			into[entry.Name()] = struct{}{}
		}
	}
	return nil
}

func splitTokens(raw string) []string {
	var tokens []string
	for _, field := range tokenSeparator.Split(raw, -1) {
		if field != "" {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
