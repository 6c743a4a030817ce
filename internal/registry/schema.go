// internal/registry/schema.go
package registry

import (
	"encoding/json"
	"fmt"

	"ai-junction/internal/common/validation"
	"ai-junction/internal/models"
)

const descriptorSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["type", "connection_config"],
	"properties": {
		"name": {"type": "string"},
		"type": {"enum": ["api", "bot", "local_ai", "custom_ai"]},
		"description": {"type": "string"},
		"performance_score": {"type": "number", "minimum": 0},
		"connection_config": {
			"type": "object",
			"properties": {
				"module": {"type": "string", "minLength": 1}
			}
		}
	},
	"allOf": [
		{
			"if": {"properties": {"type": {"const": "api"}}},
			"then": {
				"properties": {
					"connection_config": {
						"required": ["endpoint", "api_key"],
						"properties": {
							"endpoint": {"type": "string", "pattern": "^https?://"},
							"api_key": {"type": "string"}
						}
					}
				}
			}
		}
	]
}`

var compiledDescriptorSchema = validation.MustCompile(descriptorSchema)

// validateDescriptor checks a descriptor against the registration schema and
// returns a readable summary of every violation.
func validateDescriptor(d models.BackendDescriptor) error {
	doc, err := descriptorDocument(d)
	if err != nil {
		return err
	}

	result, err := compiledDescriptorSchema.Validate(doc)
	if err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("%s", result.Summary())
	}
	return nil
}

// descriptorDocument round-trips through JSON so the validator sees wire
// field names and a non-null config object.
func descriptorDocument(d models.BackendDescriptor) (map[string]interface{}, error) {
	if d.ConnectionConfig == nil {
		d.ConnectionConfig = map[string]interface{}{}
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	return doc, nil
}
