package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// decodeFile turns the bytes of a settings file into a Config overlaid on
// Defaults. YAML is recognised by extension and re-encoded as JSON, so both
// formats share Decode's unknown-field check.
func decodeFile(path string, b []byte) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		jb, err := yamlToJSON(b)
		if err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
		b = jb
	}
	return Decode(b)
}

func yamlToJSON(b []byte) ([]byte, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []byte("{}"), nil
		}
		return nil, err
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("settings file must hold a single document")
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	tree, err := jsonTree(doc, "")
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// jsonTree checks that every mapping key is a string. Verdict codes such as
// `1: text` would otherwise be silently renamed.
func jsonTree(v any, at string) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		for k, child := range x {
			c, err := jsonTree(child, at+"."+k)
			if err != nil {
				return nil, err
			}
			x[k] = c
		}
		return x, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, child := range x {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%s: key %v is not a string", strings.TrimPrefix(at, "."), k)
			}
			c, err := jsonTree(child, at+"."+ks)
			if err != nil {
				return nil, err
			}
			out[ks] = c
		}
		return out, nil
	case []any:
		for i := range x {
			c, err := jsonTree(x[i], fmt.Sprintf("%s[%d]", at, i))
			if err != nil {
				return nil, err
			}
			x[i] = c
		}
		return x, nil
	default:
		return v, nil
	}
}
