package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// VarEntry holds a single key-value pair from agent.env.
type VarEntry struct {
	Key   string
	Value string
}

// OrderedVars preserves declaration order for agent.env entries, so the
// config is written back out in the order it was declared.
type OrderedVars []VarEntry

// UnmarshalJSON walks the object's raw tokens in stream order so
// declaration order survives, which the plain map[string]string decoding
// of encoding/json does not guarantee.
func (ov *OrderedVars) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("config: env: must be a JSON object")
	}

	var entries []VarEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("config: env: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("config: env: key must be a string")
		}

		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("config: env: value for %q must be a string: %w", key, err)
		}
		entries = append(entries, VarEntry{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	*ov = entries
	return nil
}

// MarshalJSON writes entries back out in their stored order.
func (ov OrderedVars) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range ov {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// AsMap flattens entries into a plain map for callers (e.g. the agent
// transport) that just need lookup, not order.
func (ov OrderedVars) AsMap() map[string]string {
	m := make(map[string]string, len(ov))
	for _, e := range ov {
		m[e.Key] = e.Value
	}
	return m
}
