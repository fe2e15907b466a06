package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// StringArray maps to a PostgreSQL text[] column.
type StringArray []string

// Value implements driver.Valuer. A nil array is stored as an empty array.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return pq.StringArray{}.Value()
	}
	return pq.StringArray(a).Value()
}

// Scan implements sql.Scanner.
func (a *StringArray) Scan(src any) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return fmt.Errorf("scan string array: %w", err)
	}
	*a = StringArray(arr)
	return nil
}

// Contains reports whether s is in the array.
func (a StringArray) Contains(s string) bool {
	for _, v := range a {
		if v == s {
			return true
		}
	}
	return false
}

// Value stores JobOptions as JSONB.
func (o JobOptions) Value() (driver.Value, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal job options: %w", err)
	}
	return b, nil
}

// Scan reads JobOptions from JSONB.
func (o *JobOptions) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*o = JobOptions{}
		return nil
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	default:
		return errors.New("scan job options: unsupported source type")
	}
}

// ErrorList stores per-URL error strings as JSONB.
type ErrorList []string

// Value implements driver.Valuer.
func (e ErrorList) Value() (driver.Value, error) {
	if e == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal([]string(e))
	if err != nil {
		return nil, fmt.Errorf("marshal error list: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner.
func (e *ErrorList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*e = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]string)(e))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(e))
	default:
		return errors.New("scan error list: unsupported source type")
	}
}
