package backend

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// reportSchemaJSON describes a successful check-conflicts body. The backend
// answers {"error": "..."} with status 200 when detection throws; that body
// fails the required-fields check and takes the failure path.
const reportSchemaJSON = `{
  "type": "object",
  "required": ["hasConflicts", "conflictCount", "databaseConflicts", "googleCalendarConflicts"],
  "properties": {
    "hasConflicts": {"type": "boolean"},
    "conflictCount": {"type": "integer", "minimum": 0},
    "databaseConflicts": {"type": "array", "items": {"$ref": "#/definitions/entry"}},
    "googleCalendarConflicts": {"type": "array", "items": {"$ref": "#/definitions/entry"}}
  },
  "definitions": {
    "entry": {
      "type": "object",
      "required": ["eventDate"],
      "properties": {
        "parishionerName": {"type": ["string", "null"]},
        "eventTitle": {"type": ["string", "null"]},
        "eventDate": {"type": "string"},
        "eventTime": {"type": ["string", "null"]},
        "source": {"type": ["string", "null"]}
      }
    }
  }
}`

type reportSchema struct {
	schema *gojsonschema.Schema
}

func newReportSchema() (*reportSchema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(reportSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("load conflict report schema: %w", err)
	}
	return &reportSchema{schema: s}, nil
}

// validate checks body against the schema. Malformed JSON is reported the same
// way as a shape violation.
func (s *reportSchema) validate(body []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidReport, strings.Join(msgs, "; "))
}
