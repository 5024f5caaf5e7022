package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	plan := Plan([]string{"@WNBA", "IndianaFever"}, []string{"Caitlin Clark", " ", "CC"})

	require.Len(t, plan, 4)
	assert.Equal(t, Query{Account: "WNBA", Variation: "Caitlin Clark"}, plan[0])
	assert.Equal(t, `from:WNBA "Caitlin Clark"`, plan[0].Text())
	assert.Equal(t, "wnba__caitlin_clark.jsonl", plan[0].FileName())
	assert.Equal(t, Query{Account: "IndianaFever", Variation: "CC"}, plan[3])

	open := Plan(nil, []string{"A'ja Wilson"})
	require.Len(t, open, 1)
	assert.Equal(t, `"A'ja Wilson"`, open[0].Text())
	assert.Equal(t, "a_ja_wilson.jsonl", open[0].FileName())
}

const postsJSONL = `{"id":"1","text":"Clark 200th assist","created_at":"2024-06-14T23:10:00Z","url":"https://x.com/1"}
{"id":"2","text":"old news","created_at":"2024-05-01T10:00:00Z"}

not json at all
{"id":"3","text":"platform date","created_at":"Sat Jun 15 01:02:03 +0000 2024","likes":10}
{"id":"","text":"no id","created_at":"2024-06-14T00:00:00Z"}
{"id":"4","text":"bad date","created_at":"whenever"}
{"id":"5","text":"after range","created_at":"2024-06-20T00:00:00Z"}
`

func juneRange() Range {
	return Range{Start: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)}
}

func TestReadPosts(t *testing.T) {
	posts, err := ReadPosts(strings.NewReader(postsJSONL), juneRange(), 0)
	require.NoError(t, err)

	require.Len(t, posts, 2)
	assert.Equal(t, "1", posts[0].ID)
	assert.Equal(t, time.Date(2024, 6, 14, 23, 10, 0, 0, time.UTC), posts[0].CreatedAt)
	assert.Equal(t, "3", posts[1].ID)
	assert.Equal(t, 10, posts[1].Likes)
	assert.Equal(t, time.Date(2024, 6, 15, 1, 2, 3, 0, time.UTC), posts[1].CreatedAt)
}

func TestReadPosts_Limit(t *testing.T) {
	posts, err := ReadPosts(strings.NewReader(postsJSONL), Range{}, 3)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{posts[0].ID, posts[1].ID, posts[2].ID})
}

func TestRange_Contains(t *testing.T) {
	r := juneRange()
	assert.True(t, r.Contains(time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 5, 31, 23, 59, 0, 0, time.UTC)))
	assert.True(t, Range{}.Contains(time.Time{}))
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	plan := Plan([]string{"WNBA", "espnW"}, []string{"Caitlin Clark"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, plan[0].FileName()), []byte(postsJSONL), 0644))

	results, err := Load(context.Background(), dir, plan, juneRange(), 0)
	require.NoError(t, err)

	require.Len(t, results, 1, "missing query files are skipped")
	assert.Equal(t, plan[0], results[0].Query)
	assert.Len(t, results[0].Posts, 2)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(postsJSONL), 0644))

	results, err := Load(context.Background(), path, nil, juneRange(), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "posts.jsonl", results[0].Query.Variation)
	assert.Len(t, results[0].Posts, 1)
}

func TestLoad_MissingInput(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope"), nil, Range{}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: stat")
}
