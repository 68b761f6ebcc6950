package document

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// DecodeStructured parses JSON, YAML or TOML data.
func DecodeStructured(format Format, data []byte) (interface{}, error) {
	var parsed interface{}
	switch format {
	case FormatJSON:
		if err := sonic.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("JSON parse error: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("YAML parse error: %w", err)
		}
	case FormatTOML:
		var table map[string]interface{}
		if err := toml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("TOML parse error: %w", err)
		}
		parsed = table
	default:
		return nil, fmt.Errorf("%s is not a structured format", format)
	}
	return parsed, nil
}

// CanonicalJSON re-encodes a parsed value as indented JSON.
func CanonicalJSON(v interface{}) ([]byte, error) {
	out, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("JSON encoding error: %w", err)
	}
	return append(out, '\n'), nil
}
