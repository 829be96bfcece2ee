// Package config provides the engine's configuration surface: a
// process-level Config (loaded from environment + optional .env file)
// and an immutable
// per-check Settings snapshot validated against a declared schema
// Unknown keys are rejected at config time, not silently accepted at
// read time.
package config

import (
	"fmt"
	"sort"
)

// SettingType is the closed set of value kinds a declared setting may take.
type SettingType string

const (
	TypeBool     SettingType = "bool"
	TypeInt      SettingType = "int"
	TypeFloat    SettingType = "float"
	TypeString   SettingType = "string"
	TypeDuration SettingType = "duration"
)

// SettingDecl declares one setting a check is allowed to read.
type SettingDecl struct {
	Key     string
	Type    SettingType
	Default any
}

// Schema is the full set of settings declared across all checks that will
// run in a report. Build rejects any raw key not present here.
type Schema map[string]SettingDecl

// Merge combines schemas from multiple checks, erroring on conflicting
// type declarations for the same key.
func (s Schema) Merge(other Schema) (Schema, error) {
	merged := make(Schema, len(s)+len(other))
	for k, v := range s {
		merged[k] = v
	}
	for k, v := range other {
		if existing, ok := merged[k]; ok && existing.Type != v.Type {
			return nil, fmt.Errorf("config: setting %q declared with conflicting types %q and %q", k, existing.Type, v.Type)
		}
		merged[k] = v
	}
	return merged, nil
}

// Settings is an immutable, read-only snapshot passed to every Check.
// It satisfies domain.SettingsSnapshot.
type Settings struct {
	values map[string]any
}

// Build validates raw values against schema, applies declared defaults for
// absent keys, and coerces values to their declared type. Any raw key not
// present in schema is a config error — this is the "declared schema"
// rejection the settings model requires.
func Build(schema Schema, raw map[string]any) (*Settings, error) {
	values := make(map[string]any, len(schema))

	for key, decl := range schema {
		values[key] = decl.Default
	}

	unknown := make([]string, 0)
	for key, v := range raw {
		decl, ok := schema[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		coerced, err := coerce(decl.Type, v)
		if err != nil {
			return nil, fmt.Errorf("config: setting %q: %w", key, err)
		}
		values[key] = coerced
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("config: unknown settings %v not declared in schema", unknown)
	}

	return &Settings{values: values}, nil
}

// Lookup implements domain.SettingsSnapshot. An undeclared key (one that
// never appeared in the schema used to Build this snapshot) returns false;
// callers such as Guard.Evaluate treat that as "skip".
func (s *Settings) Lookup(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.values[key]
	return v, ok
}

func (s *Settings) Bool(key string, def bool) bool {
	if v, ok := s.Lookup(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func (s *Settings) Int(key string, def int) int {
	if v, ok := s.Lookup(key); ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return def
}

func (s *Settings) String(key string, def string) string {
	if v, ok := s.Lookup(key); ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return def
}

func coerce(t SettingType, v any) (any, error) {
	switch t {
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected bool, got %T", v)
	case TypeInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case float64:
			return int(n), nil
		}
		return nil, fmt.Errorf("expected int, got %T", v)
	case TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		}
		return nil, fmt.Errorf("expected float, got %T", v)
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected string, got %T", v)
	case TypeDuration:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected duration string, got %T", v)
	}
	return nil, fmt.Errorf("unknown setting type %q", t)
}
