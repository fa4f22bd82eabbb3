package validation

import (
	"bytes"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/ivrflow/pkg/schema"
)

// voiceSnapshotSchemaJSON validates remote voice-record snapshot payloads.
// Embedded as a constant to avoid filesystem dependencies.
const voiceSnapshotSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://ivrflow.dev/schemas/voice-snapshot.json",
  "type": "object",
  "required": ["records"],
  "properties": {
    "generated_at": {
      "type": "string",
      "format": "date-time"
    },
    "records": {
      "type": "array",
      "items": { "$ref": "#/$defs/record" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "record": {
      "type": "object",
      "required": ["organization", "prompt_id", "transcript", "tier"],
      "properties": {
        "organization": {
          "type": "string",
          "minLength": 1
        },
        "category": { "type": "string" },
        "prompt_id": {
          "type": "string",
          "minLength": 1
        },
        "transcript": { "type": "string" },
        "tier": {
          "type": "integer",
          "minimum": 0
        }
      },
      "additionalProperties": false
    }
  }
}`

// callFlowSchemaJSON validates an exported call-flow record sequence.
const callFlowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://ivrflow.dev/schemas/callflow.json",
  "type": "array",
  "items": { "$ref": "#/$defs/record" },
  "$defs": {
    "record": {
      "type": "object",
      "required": ["label", "log", "playPrompt"],
      "properties": {
        "label": {
          "type": "string",
          "minLength": 1
        },
        "log": {
          "type": "array",
          "items": { "type": "string" }
        },
        "playPrompt": {
          "type": "array",
          "items": { "type": "string" }
        },
        "getDigits": { "$ref": "#/$defs/getDigits" },
        "branch": {
          "type": "object",
          "additionalProperties": { "type": "string" }
        },
        "goto": { "type": "string" },
        "loop": { "$ref": "#/$defs/loop" },
        "guard": { "type": "string" },
        "gosub": { "$ref": "#/$defs/gosub" },
        "nobarge": { "type": "boolean" }
      },
      "additionalProperties": false
    },
    "getDigits": {
      "type": "object",
      "required": ["numDigits", "maxTries", "maxTime"],
      "properties": {
        "numDigits": {
          "type": "integer",
          "minimum": 1
        },
        "maxTries": {
          "type": "integer",
          "minimum": 1
        },
        "maxTime": {
          "type": "integer",
          "minimum": 1
        },
        "validChoices": { "type": "string" },
        "errorPrompt": { "type": "string" },
        "timeoutPrompt": { "type": "string" }
      },
      "additionalProperties": false
    },
    "loop": {
      "type": "object",
      "required": ["name", "max", "overflow"],
      "properties": {
        "name": { "type": "string" },
        "max": { "type": "integer" },
        "overflow": { "type": "string" }
      },
      "additionalProperties": false
    },
    "gosub": {
      "type": "object",
      "required": ["name", "args"],
      "properties": {
        "name": { "type": "string" },
        "args": { "type": "array" }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator checks payloads against the embedded Draft 2020-12
// schemas. It is safe for concurrent use; both schemas are compiled once.
type JSONSchemaValidator struct {
	snapshotSchema *jsonschema.Schema
	flowSchema     *jsonschema.Schema
}

// NewJSONSchemaValidator compiles the embedded schemas.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	snapshot, err := compileResource(c, "https://ivrflow.dev/schemas/voice-snapshot.json", voiceSnapshotSchemaJSON)
	if err != nil {
		return nil, err
	}
	flow, err := compileResource(c, "https://ivrflow.dev/schemas/callflow.json", callFlowSchemaJSON)
	if err != nil {
		return nil, err
	}

	return &JSONSchemaValidator{snapshotSchema: snapshot, flowSchema: flow}, nil
}

func compileResource(c *jsonschema.Compiler, url, schemaJSON string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema %s: %w", url, err)
	}
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", url, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", url, err)
	}
	return compiled, nil
}

// ValidateVoiceSnapshot validates a raw remote snapshot payload.
func (v *JSONSchemaValidator) ValidateVoiceSnapshot(data []byte) error {
	return v.validate(v.snapshotSchema, data)
}

// ValidateFlowJSON validates an exported call-flow record sequence.
func (v *JSONSchemaValidator) ValidateFlowJSON(data []byte) error {
	return v.validate(v.flowSchema, data)
}

func (v *JSONSchemaValidator) validate(compiled *jsonschema.Schema, data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "payload is not valid JSON").WithCause(err)
	}
	if err := compiled.Validate(doc); err != nil {
		return toFlowError(err)
	}
	return nil
}

// toFlowError converts a jsonschema.ValidationError into a FlowError with
// one message per violated location.
func toFlowError(err error) *schema.FlowError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
