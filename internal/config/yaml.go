package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// asJSON rewrites a YAML document as JSON so one strict decoder
// (DisallowUnknownFields) covers both formats. Files without a yaml
// extension pass through untouched. The returned format tag is "json"
// or "yaml" for diagnostics.
func asJSON(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, "json", nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}
	out, err := json.Marshal(stringKeyed(doc))
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
	}
	return out, "yaml", nil
}

// stringKeyed rewrites every map key as a string. yaml.v3 can yield
// map[any]any for nested mappings, which json.Marshal rejects.
func stringKeyed(v any) any {
	switch node := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			out[fmt.Sprint(k)] = stringKeyed(val)
		}
		return out
	case map[string]any:
		for k, val := range node {
			node[k] = stringKeyed(val)
		}
		return node
	case []any:
		for i, val := range node {
			node[i] = stringKeyed(val)
		}
		return node
	}
	return v
}
