package lang

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the language as its canonical wire name.
func (l Language) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a wire name, accepting the same aliases as Parse.
func (l *Language) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("language must be a string: %w", err)
	}
	parsed, err := Parse(name)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
