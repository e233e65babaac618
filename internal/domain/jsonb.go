package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

var errUnsupportedScan = errors.New("unsupported scan type")

func scanJSON(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("%w: %T", errUnsupportedScan, src)
	}
}

// StringList is stored as a JSONB array.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	*l = nil
	return scanJSON(src, (*[]string)(l))
}

// CalcCheckList is stored as a JSONB array.
type CalcCheckList []CalcCheck

func (l CalcCheckList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]CalcCheck(l))
}

func (l *CalcCheckList) Scan(src any) error {
	*l = nil
	return scanJSON(src, (*[]CalcCheck)(l))
}

// Value implements driver.Valuer.
func (m ColumnistMeta) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *ColumnistMeta) Scan(src any) error {
	return scanJSON(src, m)
}

// JSONMap is a free-form JSONB object.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(m))
}

func (m *JSONMap) Scan(src any) error {
	*m = nil
	return scanJSON(src, (*map[string]any)(m))
}
