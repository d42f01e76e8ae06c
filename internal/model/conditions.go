package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Conditions is an ordered set of medical condition strings. At the API
// boundary it is a first-class list; only at the store boundary does it
// collapse into its storage encoding, a JSON array string ("[]" when empty,
// never raw comma-separated text).
type Conditions []string

// ParseConditions canonicalizes comma-separated free text: entries are
// trimmed and empties dropped, so "diabetes, hypertension, " becomes
// ["diabetes" "hypertension"].
func ParseConditions(raw string) Conditions {
	parts := strings.Split(raw, ",")
	conditions := make(Conditions, 0, len(parts))
	for _, p := range parts {
		if c := strings.TrimSpace(p); c != "" {
			conditions = append(conditions, c)
		}
	}
	return conditions
}

// String renders the list for display: "diabetes, hypertension".
func (c Conditions) String() string {
	return strings.Join(c, ", ")
}

// Value implements driver.Valuer, producing the storage encoding.
func (c Conditions) Value() (driver.Value, error) {
	if c == nil {
		c = Conditions{}
	}
	encoded, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode medical conditions: %w", err)
	}
	return string(encoded), nil
}

// Scan implements sql.Scanner, decoding the storage encoding.
func (c *Conditions) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = Conditions{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan medical conditions from %T", src)
	}

	if len(raw) == 0 {
		*c = Conditions{}
		return nil
	}

	var conditions []string
	if err := json.Unmarshal(raw, &conditions); err != nil {
		return fmt.Errorf("failed to decode medical conditions: %w", err)
	}
	*c = conditions
	return nil
}

// MarshalJSON keeps an empty list as [] rather than null on the wire.
func (c Conditions) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(c))
}
