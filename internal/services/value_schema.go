package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"devmind/datacollector/internal/models"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const valueSchemaURL = "collector-config-value.json"

// valueSchema describes CollectorConfig.value. Unknown keys are kept for providers.
const valueSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "auth": {"type": "object"},
    "base_url": {"type": "string"},
    "schedule_cron": {"type": "string", "maxLength": 128},
    "cleanup_cron": {"type": "string", "maxLength": 128},
    "retention_days": {"type": "integer", "minimum": 1, "maximum": 3650},
    "initial_range": {"enum": ["1m", "3m"]},
    "project_keys": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "runtime_state": {
      "type": "object",
      "additionalProperties": {"type": ["string", "null"]}
    }
  }
}`

var (
	compiledSchema *jsonschema.Schema
	schemaErr      error
	schemaOnce     sync.Once
)

func loadValueSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(valueSchema))
		if err != nil {
			schemaErr = fmt.Errorf("failed to parse value schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(valueSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("failed to add value schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(valueSchemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateValue checks a config value document against the value schema
func ValidateValue(value models.JSONB) error {
	sch, err := loadValueSchema()
	if err != nil {
		return err
	}

	// round trip so numbers reach the validator as json.Number
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
