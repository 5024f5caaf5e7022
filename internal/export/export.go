// Package export writes milestones in the FanbaseHQ submission CSV schema.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fanbasehq/harvest-cli/internal/model"
)

// ErrLengthMismatch is returned when records and posts do not pair up.
var ErrLengthMismatch = eris.New("export: records and posts length mismatch")

// Review statuses.
const (
	StatusPending     = "pending"
	StatusNeedsReview = "needs_review"
)

// Row is one FanbaseHQ submission. Column order is fixed by the importer.
type Row struct {
	ID                   string `csv:"id"`
	PlayerName           string `csv:"player_name"`
	Title                string `csv:"title"`
	Date                 string `csv:"date"`
	Value                string `csv:"value"`
	Categories           string `csv:"categories"`
	PreviousRecord       string `csv:"previous_record"`
	Description          string `csv:"description"`
	SubmitterName        string `csv:"submitter_name"`
	UserID               string `csv:"user_id"`
	Status               string `csv:"status"`
	CreatedAt            string `csv:"created_at"`
	UpdatedAt            string `csv:"updated_at"`
	SubmitterEmail       string `csv:"submitter_email"`
	ArticleURL           string `csv:"article_url"`
	OriginalSubmissionID string `csv:"original_submission_id"`
	IsAward              string `csv:"is_award"`
	ImageURL             string `csv:"image_url"`
	ImageData            string `csv:"image_data"`
	IsFeatured           string `csv:"is_featured"`
}

// Submitter identifies who the rows are submitted as.
type Submitter struct {
	Name   string
	Email  string
	UserID string
}

// Options controls row construction.
type Options struct {
	Submitter Submitter
	Now       func() time.Time
}

var awardCategories = map[string]bool{"award": true, "honor": true, "recognition": true}

// Rows converts records and their origin posts into CSV rows. An unresolved
// date is left empty and the row is flagged for review.
func Rows(records []model.MilestoneRecord, posts []model.SourcePost, opts Options) ([]Row, error) {
	if len(records) != len(posts) {
		return nil, eris.Wrapf(ErrLengthMismatch, "%d records, %d posts", len(records), len(posts))
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	stamp := now().UTC().Format("2006-01-02 15:04:05.000000")

	rows := make([]Row, len(records))
	for i, r := range records {
		p := posts[i]

		cats := r.Categories
		if cats == nil {
			cats = []string{}
		}
		catJSON, err := json.Marshal(cats)
		if err != nil {
			return nil, eris.Wrap(err, "export: encode categories")
		}

		row := Row{
			ID:                   r.ID,
			PlayerName:           r.PlayerName,
			Title:                r.Title,
			Value:                r.Value,
			Categories:           string(catJSON),
			PreviousRecord:       r.PreviousRecord,
			Description:          r.Description,
			SubmitterName:        opts.Submitter.Name,
			UserID:               opts.Submitter.UserID,
			Status:               StatusPending,
			CreatedAt:            stamp,
			UpdatedAt:            stamp,
			SubmitterEmail:       opts.Submitter.Email,
			ArticleURL:           p.URL,
			OriginalSubmissionID: p.ID,
			IsAward:              boolField(isAward(r.Categories)),
			ImageURL:             p.FirstImage(),
			IsFeatured:           boolField(false),
		}
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if row.Description == "" {
			row.Description = p.Text
		}
		if r.ResolvedDate != nil {
			row.Date = r.ResolvedDate.Format(time.DateOnly)
		} else {
			row.Status = StatusNeedsReview
		}
		rows[i] = row
	}
	return rows, nil
}

func isAward(categories []string) bool {
	for _, c := range categories {
		if awardCategories[strings.ToLower(strings.TrimSpace(c))] {
			return true
		}
	}
	return false
}

func boolField(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Write encodes rows to w, with a header when header is true.
func Write(w io.Writer, rows []Row, header bool) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	enc.AutoHeader = header
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return eris.Wrap(err, "export: encode row")
		}
	}
	if header && len(rows) == 0 {
		if err := enc.EncodeHeader(Row{}); err != nil {
			return eris.Wrap(err, "export: encode header")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush")
	}
	return nil
}

// ReadSubmissionIDs returns the original_submission_id of every row in an
// existing export. A missing file yields an empty set.
func ReadSubmissionIDs(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "export: open %s", path)
	}
	defer f.Close()

	dec, err := csvutil.NewDecoder(csv.NewReader(f))
	if errors.Is(err, io.EOF) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "export: read header %s", path)
	}
	ids := make(map[string]bool)
	for {
		var r Row
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "export: decode %s", path)
		}
		if r.OriginalSubmissionID != "" {
			ids[r.OriginalSubmissionID] = true
		}
	}
	return ids, nil
}

// WriteFile writes rows to path. A new file is written atomically with a
// header. When path already exists, rows whose post is already present are
// skipped and the rest are appended. It returns the number of rows written.
func WriteFile(path string, rows []Row) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrapf(err, "export: create dir for %s", path)
	}

	if _, err := os.Stat(path); err == nil {
		existing, err := ReadSubmissionIDs(path)
		if err != nil {
			return 0, err
		}
		fresh := rows[:0:0]
		for _, r := range rows {
			if !existing[r.OriginalSubmissionID] {
				fresh = append(fresh, r)
			}
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return 0, eris.Wrapf(err, "export: open %s", path)
		}
		defer f.Close()
		if err := Write(f, fresh, false); err != nil {
			return 0, err
		}
		zap.L().Info("export: appended rows", zap.String("path", path),
			zap.Int("rows", len(fresh)), zap.Int("skipped", len(rows)-len(fresh)))
		return len(fresh), nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.csv")
	if err != nil {
		return 0, eris.Wrap(err, "export: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if err := Write(tmp, rows, true); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, eris.Wrap(err, "export: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, eris.Wrapf(err, "export: rename to %s", path)
	}
	zap.L().Info("export: wrote rows", zap.String("path", path), zap.Int("rows", len(rows)))
	return len(rows), nil
}
