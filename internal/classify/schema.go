package classify

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed milestone.schema.json
var milestoneSchemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource("milestone.schema.json", strings.NewReader(milestoneSchemaJSON)); err != nil {
			schemaErr = eris.Wrap(err, "classify: add schema")
			return
		}
		schema, schemaErr = c.Compile("milestone.schema.json")
		if schemaErr != nil {
			schemaErr = eris.Wrap(schemaErr, "classify: compile schema")
		}
	})
	return schema, schemaErr
}

// extractJSON pulls the outermost JSON object out of a model reply, which
// may be wrapped in prose or a code fence.
func extractJSON(text string) ([]byte, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, eris.New("classify: no JSON object in reply")
	}
	return []byte(text[start : end+1]), nil
}

// decodeReply validates a model reply against the milestone schema and
// decodes it.
func decodeReply(text string) (*reply, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "classify: decode reply")
	}

	s, err := loadSchema()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(doc); err != nil {
		return nil, eris.Wrap(err, "classify: reply failed schema validation")
	}

	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, eris.Wrap(err, "classify: unmarshal reply")
	}
	return &r, nil
}

// reply is the classifier's JSON answer.
type reply struct {
	IsMilestone           bool     `json:"is_milestone"`
	Title                 string   `json:"title"`
	Value                 string   `json:"value"`
	Categories            []string `json:"categories"`
	Description           string   `json:"description"`
	PreviousRecord        *string  `json:"previous_record"`
	PlayerName            *string  `json:"player_name"`
	DateContext           *string  `json:"date_context"`
	ExtractedDate         *string  `json:"extracted_date"`
	DateSource            *string  `json:"date_source"`
	SourceReliability     *float64 `json:"source_reliability"`
	DateConfidence        float64  `json:"date_confidence"`
	MilestoneConfidence   float64  `json:"milestone_confidence"`
	AttributionConfidence float64  `json:"attribution_confidence"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
