package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/tidwall/gjson"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// State is the key-value bucket owned by one scenario run. Values written by a step's
// Capture become visible to later steps of the same scenario only.
type State struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewState creates a State seeded with initial values.
func NewState(initial map[string]any) *State {
	s := &State{values: make(map[string]any, len(initial))}
	for k, v := range initial {
		s.values[k] = v
	}
	return s
}

// Set stores a value
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get returns a stored value
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Snapshot returns a copy of all values
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// ExpandString replaces every {{key}} in in with the formatted state value.
func (s *State) ExpandString(in string) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(in, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		v, ok := s.Get(key)
		if !ok {
			missing = append(missing, key)
			return m
		}
		return formatValue(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved placeholder(s) %v in %q", missing, in)
	}
	return out, nil
}

// ExpandValue walks a JSON-like value and expands placeholders in every string. A string
// that consists of exactly one placeholder is replaced by the typed value, so
// {"id": "{{petId}}"} yields a JSON number when petId was captured as one.
func (s *State) ExpandValue(v any) (any, error) {
	v, err := normalizeJSON(v)
	if err != nil {
		return nil, err
	}
	return s.expand(v)
}

func (s *State) expand(v any) (any, error) {
	switch val := v.(type) {
	case string:
		if key, whole := wholePlaceholder(val); whole {
			if typed, ok := s.Get(key); ok {
				return typed, nil
			}
		}
		return s.ExpandString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			expanded, err := s.expand(item)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			expanded, err := s.expand(item)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

func wholePlaceholder(s string) (string, bool) {
	loc := placeholderPattern.FindStringSubmatchIndex(s)
	if loc == nil || loc[0] != 0 || loc[1] != len(s) {
		return "", false
	}
	return s[loc[2]:loc[3]], true
}

// placeholders lists the distinct keys referenced anywhere inside v.
func placeholders(v any) []string {
	seen := make(map[string]struct{})
	if normalized, err := normalizeJSON(v); err == nil {
		v = normalized
	}
	collectPlaceholders(v, seen)
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func collectPlaceholders(v any, seen map[string]struct{}) {
	switch val := v.(type) {
	case string:
		for _, m := range placeholderPattern.FindAllStringSubmatch(val, -1) {
			seen[m[1]] = struct{}{}
		}
	case map[string]string:
		for _, item := range val {
			collectPlaceholders(item, seen)
		}
	case map[string]any:
		for _, item := range val {
			collectPlaceholders(item, seen)
		}
	case []any:
		for _, item := range val {
			collectPlaceholders(item, seen)
		}
	}
}

// normalizeJSON converts arbitrary Go values (structs, typed maps) into the generic
// map/slice form, keeping numbers exact as json.Number.
func normalizeJSON(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, json.Number, map[string]any, []any:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("body is not JSON-serializable: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// captureValue converts a gjson match into the value stored in State.
func captureValue(r gjson.Result) any {
	switch r.Type {
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.String:
		return r.Str
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.JSON:
		if v, err := normalizeJSON(json.RawMessage(r.Raw)); err == nil {
			return v
		}
		return r.Value()
	default:
		return nil
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int, int32, int64, uint, uint32, uint64, bool:
		return fmt.Sprint(val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}
