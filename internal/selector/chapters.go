package selector

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	courseerr "apyneng/internal/errors"
)

var chapterToken = regexp.MustCompile(`^(?:(?P<numbers_range>\d+-\d+)|(?P<number>\d+))$`)

// ExpandChapters maps a chapter selector such as "4-5,7" through table to
// chapter directory names. Numbers missing from table are skipped.
func ExpandChapters(table map[int]string, raw string) ([]string, error) {
	tokens := splitTokens(raw)
	if len(tokens) == 0 {
		return nil, courseerr.NewUnsupportedToken(raw)
	}

	seen := make(map[string]struct{})
	for _, token := range tokens {
		if !chapterToken.MatchString(token) {
			return nil, courseerr.NewUnsupportedToken(token)
		}
		start, stop, err := chapterBounds(token)
		if err != nil {
			return nil, courseerr.NewUnsupportedToken(token)
		}
		for id, dir := range table {
			if id >= start && id <= stop {
				seen[dir] = struct{}{}
			}
		}
	}

	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func chapterBounds(token string) (int, int, error) {
	first, last, isRange := strings.Cut(token, "-")
	start, err := chapterNumber(first)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return start, start, nil
	}
	stop, err := chapterNumber(last)
	if err != nil {
		return 0, 0, err
	}
	return start, stop, nil
}

// chapterNumber parses a run of digits. Numbers too large for an int are
// clamped to math.MaxInt, which no chapter uses.
func chapterNumber(digits string) (int, error) {
	n, err := strconv.Atoi(digits)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt, nil
	}
	return n, err
}
