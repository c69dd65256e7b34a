package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// snapshotSchemaURL identifies the embedded schema inside the compiler.
const snapshotSchemaURL = "https://spectasks.c360studio.dev/schema/snapshot.json"

// snapshotSchema describes the persisted snapshot document.
const snapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["lastUpdated", "tasks"],
  "properties": {
    "lastUpdated": {"type": ["string", "null"], "format": "date-time"},
    "tasks": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {"$ref": "#/definitions/task"}
      }
    }
  },
  "definitions": {
    "task": {
      "type": "object",
      "required": ["id", "description", "completed", "lineNumber"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "description": {"type": "string"},
        "completed": {"type": "boolean"},
        "phase": {"type": ["string", "null"]},
        "file": {"type": "string"},
        "lineNumber": {"type": "integer", "minimum": 1},
        "subtasks": {
          "type": "array",
          "items": {"$ref": "#/definitions/subtask"}
        }
      }
    },
    "subtask": {
      "type": "object",
      "required": ["description", "completed", "lineNumber"],
      "properties": {
        "description": {"type": "string"},
        "completed": {"type": "boolean"},
        "lineNumber": {"type": "integer", "minimum": 1}
      }
    }
  }
}`

var (
	compiledSchema     *jsonschema.Schema
	compiledSchemaErr  error
	compiledSchemaOnce sync.Once
)

// snapshotSchemaCompiled compiles the embedded schema once.
func snapshotSchemaCompiled() (*jsonschema.Schema, error) {
	compiledSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(snapshotSchemaURL, strings.NewReader(snapshotSchema)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile(snapshotSchemaURL)
	})
	return compiledSchema, compiledSchemaErr
}

// validateSnapshot checks raw snapshot JSON against the embedded schema.
func validateSnapshot(data []byte) error {
	schema, err := snapshotSchemaCompiled()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return schemaError(err)
	}
	return nil
}

// schemaError reduces a validation error to its first leaf cause.
func schemaError(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	location := ve.InstanceLocation
	if location == "" {
		location = "/"
	}
	return fmt.Errorf("%s: %s", location, ve.Message)
}
