package selector

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apyneng/internal/course"
	courseerr "apyneng/internal/errors"
)

func chapterTable(t *testing.T) map[int]string {
	t.Helper()
	m, err := course.Default()
	require.NoError(t, err)
	return m.Chapters
}

func TestExpandChaptersSingleMappedChapter(t *testing.T) {
	table := chapterTable(t)
	for _, id := range []int{1, 2, 4, 5, 7, 8, 9, 10, 11, 12, 13, 14, 17, 18} {
		got, err := ExpandChapters(table, strconv.Itoa(id))
		require.NoError(t, err)
		assert.Equal(t, []string{table[id]}, got)
	}
}

func TestExpandChaptersUnmappedIsEmpty(t *testing.T) {
	got, err := ExpandChapters(chapterTable(t), "3")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExpandChaptersRanges(t *testing.T) {
	table := chapterTable(t)

	tests := []struct {
		raw  string
		want []string
	}{
		{raw: "4-5", want: []string{"04_click", "05_logging"}},
		{raw: "4,4-5 5", want: []string{"04_click", "05_logging"}},
		{raw: "3-7", want: []string{"04_click", "05_logging", "07_closure"}},
		{raw: "17,9-10", want: []string{"09_oop_basics", "10_oop_special_methods", "17_async_libraries"}},
		{raw: "5-4", want: []string{}},
		{raw: "1-99999999999", want: allChapterDirs(table)},
		{raw: "1-99999999999999999999", want: allChapterDirs(table)},
		{raw: "99999999999999999999", want: []string{}},
		{raw: "99999999999999999999-1", want: []string{}},
	}
	for _, tt := range tests {
		got, err := ExpandChapters(table, tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestExpandChaptersInvalidToken(t *testing.T) {
	for _, raw := range []string{"a", "4-", "-4", "4-5-6", "4a", "", "4,x"} {
		got, err := ExpandChapters(chapterTable(t), raw)
		require.Error(t, err, raw)
		assert.True(t, courseerr.IsUsage(err), raw)
		assert.Nil(t, got, raw)
	}
}

func allChapterDirs(table map[int]string) []string {
	m := &course.Manifest{Chapters: table}
	return m.ChapterDirs()
}
