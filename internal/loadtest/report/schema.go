package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is the JSON schema of report_data.json.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Load test report data",
  "type": "object",
  "required": [
    "timestamp", "total_requests", "total_failures", "avg_response_time",
    "requests_per_sec", "percentiles", "min_response", "max_response", "errors"
  ],
  "properties": {
    "timestamp": {"type": "string", "minLength": 1},
    "total_requests": {"type": "integer", "minimum": 0},
    "total_failures": {"type": "integer", "minimum": 0},
    "avg_response_time": {"type": "number", "minimum": 0},
    "requests_per_sec": {"type": "number", "minimum": 0},
    "min_response": {"type": "number", "minimum": 0},
    "max_response": {"type": "number", "minimum": 0},
    "percentiles": {
      "type": "object",
      "required": ["0.5", "0.66", "0.75", "0.8", "0.9", "0.95", "0.98", "0.99", "0.999", "0.9999"],
      "additionalProperties": false,
      "patternProperties": {
        "^0\\.[0-9]+$": {"type": "number", "minimum": 0}
      }
    },
    "errors": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["occurrences", "error", "method", "name"],
        "properties": {
          "occurrences": {"type": "integer", "minimum": 1},
          "error": {"type": "string"},
          "method": {"type": "string"},
          "name": {"type": "string"}
        }
      }
    }
  }
}`

const schemaURL = "report_data.schema.json"

var (
	compiledSchema *jsonschema.Schema
	compileErr     error
	compileOnce    sync.Once
)

func dataSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, strings.NewReader(Schema)); err != nil {
			compileErr = fmt.Errorf("invalid schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("invalid schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// ValidateData checks a report data document against Schema.
func ValidateData(r io.Reader) error {
	schema, err := dataSchema()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("report data does not match schema: %w", err)
	}
	return nil
}
