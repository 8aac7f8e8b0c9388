package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Embedding is a JSON-encoded vector column. An empty vector is stored as SQL
// NULL so "embedding IS NULL" finds items still waiting for one.
type Embedding []float32

func (e Embedding) Value() (driver.Value, error) {
	if len(e) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]float32(e))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (e *Embedding) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*e = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("embedding: unsupported scan type %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*e = nil
		return nil
	}
	var out []float32
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	*e = out
	return nil
}
