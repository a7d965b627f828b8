package dto

import (
	"bytes"
	"encoding/json"
)

// OneOrMany accepts either a single JSON object or an array of them.
type OneOrMany[T any] []T

func (m *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*m = items
		return nil
	}

	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return err
	}
	*m = OneOrMany[T]{one}
	return nil
}
