package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is a map of string to string for small free-form annotations
type Metadata map[string]string

// Value implements driver.Valuer so Metadata can be stored as jsonb
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("metadata: unsupported scan type %T", value)
	}
	return json.Unmarshal(b, m)
}
