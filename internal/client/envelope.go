package client

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is a decoded backend response: {ok, error?, message?, <payload>}.
type Envelope struct {
	OK      bool
	Error   string
	Message string
	fields  map[string]json.RawMessage
}

func parseEnvelope(body []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("body is not a JSON object: %w", err)
	}

	env := &Envelope{fields: fields}
	okRaw, present := fields["ok"]
	if !present {
		return env, fmt.Errorf("response omits the ok field")
	}
	if err := json.Unmarshal(okRaw, &env.OK); err != nil {
		return env, fmt.Errorf("ok field is not a boolean: %w", err)
	}
	env.Error = stringField(fields["error"])
	env.Message = stringField(fields["message"])
	return env, nil
}

// stringField reads a JSON string, falling back to the raw text for other
// JSON values so structured error fields are still shown.
func stringField(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Has reports whether the payload carries a non-null key.
func (e *Envelope) Has(key string) bool {
	raw, ok := e.fields[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Decode unmarshals the payload field key into out. A missing or null key
// is an error.
func (e *Envelope) Decode(key string, out interface{}) error {
	if !e.Has(key) {
		return fmt.Errorf("response omits %q", key)
	}
	if err := json.Unmarshal(e.fields[key], out); err != nil {
		return fmt.Errorf("decoding %q: %w", key, err)
	}
	return nil
}
