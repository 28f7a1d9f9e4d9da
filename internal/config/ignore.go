package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// IgnoreList names release tags that must never serve as the previous
// release when computing manifest diffs, e.g. releases pulled after publication.
//
// Both a plain list and a keyed object are accepted:
//
//	["2.3", "2.4a"]
//	{"tags": ["2.3", "2.4a"]}
//
// An entry matches a tag exactly or as a prefix ending on a component boundary
// ("2.4a" matches "2.4a1" and "2.4a2" but "2.4" does not match "2.45").
type IgnoreList []string

// LoadIgnoreList loads an ignore list file if provided.
// Returns an empty list if filePath is empty.
func LoadIgnoreList(filePath string) (IgnoreList, error) {
	if filePath == "" {
		return IgnoreList{}, nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ignore file %s: %w", filePath, err)
	}

	var raw any
	switch ext := filepath.Ext(filePath); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML ignore file %s: %w", filePath, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON ignore file %s: %w", filePath, err)
		}
	}

	if obj, ok := raw.(map[string]any); ok {
		raw = obj["tags"]
	}
	if raw == nil {
		return IgnoreList{}, nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("ignore file %s: expected a list of tags, got %T", filePath, raw)
	}

	list := make(IgnoreList, 0, len(arr))
	for _, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("ignore file %s: tag %v is not a string", filePath, v)
		}
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	return list, nil
}

// IsTagIgnored reports whether tag matches an entry of the list.
func (l IgnoreList) IsTagIgnored(tag string) bool {
	for _, p := range l {
		if p == "" {
			continue
		}
		if tag == p {
			return true
		}
		if strings.HasPrefix(tag, p) && boundary(p[len(p)-1], tag[len(p)]) {
			return true
		}
	}
	return false
}

// boundary reports whether the prefix ends where a new version component starts.
func boundary(last, next byte) bool {
	isDigit := func(b byte) bool { return b >= '0' && b <= '9' }
	if last == '.' {
		return true
	}
	return isDigit(last) != isDigit(next) || next == '.'
}
