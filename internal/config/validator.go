package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema constrains the shape of the on-disk config file; value
// constraints the schema cannot express live in Config.Validate.
const configSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"providers": {
			"type": "object",
			"properties": {
				"completion": {"$ref": "#/definitions/provider"},
				"embedding": {"$ref": "#/definitions/provider"}
			},
			"additionalProperties": false
		},
		"router": {
			"type": "object",
			"properties": {
				"fallback_agent": {"type": "string"},
				"rule_threshold": {"type": "number", "minimum": 0, "maximum": 1},
				"semantic_threshold": {"type": "number", "minimum": 0, "maximum": 1},
				"cache_path": {"type": "string"},
				"feedback_path": {"type": "string"}
			},
			"additionalProperties": false
		},
		"executor": {
			"type": "object",
			"properties": {
				"default_timeout": {"type": ["integer", "string"]},
				"agent_timeouts": {"type": ["object", "null"]},
				"enable_fallback": {"type": "boolean"}
			},
			"additionalProperties": false
		},
		"server": {
			"type": "object",
			"properties": {
				"host": {"type": "string"},
				"port": {"type": "integer", "minimum": 0, "maximum": 65535},
				"metrics_path": {"type": "string"}
			},
			"additionalProperties": false
		},
		"audit": {
			"type": "object",
			"properties": {
				"enabled": {"type": "boolean"},
				"websocket_url": {"type": "string"}
			},
			"additionalProperties": false
		},
		"logging": {
			"type": "object",
			"properties": {
				"level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
				"file": {"type": "string"},
				"max_size": {"type": "integer", "minimum": 1},
				"max_age": {"type": "integer", "minimum": 1},
				"compress": {"type": "boolean"},
				"redaction": {"type": "boolean"}
			},
			"additionalProperties": false
		},
		"data_dir": {"type": "string"}
	},
	"additionalProperties": false,
	"definitions": {
		"provider": {
			"type": "object",
			"properties": {
				"provider": {"type": "string", "enum": ["openai", "anthropic"]},
				"api_key": {"type": "string"},
				"model": {"type": "string"}
			},
			"additionalProperties": false
		}
	}
}`

// ValidateSchema checks raw JSON config bytes against the config schema
func ValidateSchema(raw []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("config is not valid JSON: %w", err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("config schema validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateAPIKey validates an API key format for a provider
func ValidateAPIKey(key, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}
