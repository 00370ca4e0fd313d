package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringSlice is a thin wrapper around []string that implements
// sql.Scanner and driver.Valuer so it works transparently with MySQL
// JSON columns.
type StringSlice []string

// Scan implements sql.Scanner
func (s *StringSlice) Scan(src interface{}) error {
	if s == nil {
		return fmt.Errorf("dbtypes: Scan on nil *StringSlice")
	}
	if src == nil {
		*s = []string{}
		return nil
	}

	switch v := src.(type) {
	case []byte:
		var out []string
		if err := json.Unmarshal(v, &out); err != nil {
			return err
		}
		*s = out
		return nil
	case string:
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return err
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("dbtypes: cannot scan type %T into StringSlice", src)
	}
}

// Value implements driver.Valuer
// Marshals the slice to JSON (works well with JSON columns).
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// RawJSON stores an arbitrary JSON document verbatim. The ingest path
// keeps the complete source record in a raw_data column so a later
// enrichment pass can reprocess it without a re-crawl.
type RawJSON []byte

// Scan implements sql.Scanner
func (r *RawJSON) Scan(src interface{}) error {
	if r == nil {
		return fmt.Errorf("dbtypes: Scan on nil *RawJSON")
	}
	if src == nil {
		*r = nil
		return nil
	}

	switch v := src.(type) {
	case []byte:
		buf := make([]byte, len(v))
		copy(buf, v)
		*r = buf
		return nil
	case string:
		*r = RawJSON(v)
		return nil
	default:
		return fmt.Errorf("dbtypes: cannot scan type %T into RawJSON", src)
	}
}

// Value implements driver.Valuer
func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	if !json.Valid(r) {
		return nil, fmt.Errorf("dbtypes: RawJSON holds invalid JSON")
	}
	return string(r), nil
}

// MarshalJSON passes the stored document through unchanged.
func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON captures the raw bytes without re-encoding them.
func (r *RawJSON) UnmarshalJSON(data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	*r = buf
	return nil
}
