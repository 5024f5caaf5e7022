package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fanbasehq/harvest-cli/internal/model"
)

// Range is an inclusive window of publish days. Zero bounds are open.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t's day falls inside the range.
func (r Range) Contains(t time.Time) bool {
	d := model.Day(t)
	if !r.Start.IsZero() && d.Before(model.Day(r.Start)) {
		return false
	}
	if !r.End.IsZero() && d.After(model.Day(r.End)) {
		return false
	}
	return true
}

// Result is the posts one query returned.
type Result struct {
	Query Query
	Posts []model.SourcePost
}

// rawPost accepts both RFC 3339 and platform-style created_at strings.
type rawPost struct {
	model.SourcePost
	CreatedAt string `json:"created_at"`
}

// ReadPosts decodes JSONL posts from r, keeping those inside rng, up to
// limit when limit is positive. Malformed lines are logged and skipped.
func ReadPosts(r io.Reader, rng Range, limit int) ([]model.SourcePost, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var out []model.SourcePost
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var raw rawPost
		if err := json.Unmarshal(b, &raw); err != nil {
			zap.L().Warn("ingest: skipping malformed post", zap.Int("line", line), zap.Error(err))
			continue
		}
		p := raw.SourcePost
		if raw.CreatedAt != "" {
			t, err := dateparse.ParseAny(raw.CreatedAt)
			if err != nil {
				zap.L().Warn("ingest: skipping post with bad created_at",
					zap.Int("line", line), zap.String("created_at", raw.CreatedAt))
				continue
			}
			p.CreatedAt = t.UTC()
		}
		if p.ID == "" || !rng.Contains(p.CreatedAt) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return out, eris.Wrap(err, "ingest: scan posts")
	}
	return out, nil
}

// Load reads posts for a session. When input is a file, its posts form a
// single result. When it is a directory, each planned query is read from
// its own file and missing files are skipped.
func Load(ctx context.Context, input string, plan []Query, rng Range, limit int) ([]Result, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: stat %s", input)
	}
	if !info.IsDir() {
		posts, err := readFile(input, rng, limit)
		if err != nil {
			return nil, err
		}
		return []Result{{Query: Query{Variation: filepath.Base(input)}, Posts: posts}}, nil
	}

	var out []Result
	for _, q := range plan {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		path := filepath.Join(input, q.FileName())
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			zap.L().Debug("ingest: no posts for query", zap.String("query", q.Text()), zap.String("path", path))
			continue
		}
		posts, err := readFile(path, rng, limit)
		if err != nil {
			return out, err
		}
		out = append(out, Result{Query: q, Posts: posts})
	}
	return out, nil
}

func readFile(path string, rng Range, limit int) ([]model.SourcePost, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close()
	posts, err := ReadPosts(f, rng, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}
	return posts, nil
}
