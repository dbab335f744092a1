package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CustomColumnType tells the UI how to render and compare a custom value.
type CustomColumnType string

const (
	ColumnText          CustomColumnType = "TEXT"
	ColumnNumber        CustomColumnType = "NUMBER"
	ColumnDate          CustomColumnType = "DATE"
	ColumnBoolean       CustomColumnType = "BOOLEAN"
	ColumnEmail         CustomColumnType = "EMAIL"
	ColumnURL           CustomColumnType = "URL"
	ColumnDropdown      CustomColumnType = "DROPDOWN"
	ColumnPhone         CustomColumnType = "PHONE"
	ColumnCurrency      CustomColumnType = "CURRENCY"
	ColumnMultilineText CustomColumnType = "MULTILINE_TEXT"
	ColumnFileReference CustomColumnType = "FILE_REFERENCE"
)

var columnTypes = map[CustomColumnType]struct{}{
	ColumnText: {}, ColumnNumber: {}, ColumnDate: {}, ColumnBoolean: {},
	ColumnEmail: {}, ColumnURL: {}, ColumnDropdown: {}, ColumnPhone: {},
	ColumnCurrency: {}, ColumnMultilineText: {}, ColumnFileReference: {},
}

// ParseColumnType accepts any case; the empty string means TEXT.
func ParseColumnType(s string) (CustomColumnType, error) {
	if s == "" {
		return ColumnText, nil
	}
	t := CustomColumnType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := columnTypes[t]; !ok {
		return "", fmt.Errorf("unknown column type %q", s)
	}
	return t, nil
}

// CustomColumn is a user-defined key/value field attached to an entity.
type CustomColumn struct {
	Name                   string           `json:"name"`
	Value                  string           `json:"value"`
	ColumnType             CustomColumnType `json:"columnType,omitempty"`
	Required               bool             `json:"required,omitempty"`
	ValidationPattern      string           `json:"validationPattern,omitempty"`
	ValidationErrorMessage string           `json:"validationErrorMessage,omitempty"`
	Options                string           `json:"options,omitempty"`
}

// Type returns ColumnType, defaulting to TEXT.
func (c CustomColumn) Type() CustomColumnType {
	if c.ColumnType == "" {
		return ColumnText
	}
	return c.ColumnType
}

// Entity is the managed domain object. The session core treats it as an
// opaque payload.
type Entity struct {
	ID               int64          `json:"id,omitempty"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	CustomColumns    []CustomColumn `json:"customColumns,omitempty"`
	CreatedBy        *User          `json:"createdBy,omitempty"`
	LastModifiedBy   *User          `json:"lastModifiedBy,omitempty"`
	CreatedDate      *time.Time     `json:"createdDate,omitempty"`
	LastModifiedDate *time.Time     `json:"lastModifiedDate,omitempty"`
}

// Column returns the custom column with the given name.
func (e *Entity) Column(name string) (CustomColumn, bool) {
	for _, c := range e.CustomColumns {
		if c.Name == name {
			return c, true
		}
	}
	return CustomColumn{}, false
}

var ErrIncorrectColumn = errors.New("custom column must be name=value or name:TYPE=value")

// CustomColumnsFromStrings parses "name=value" or "name:TYPE=value" lines.
func CustomColumnsFromStrings(lines []string) ([]CustomColumn, error) {
	cols := make([]CustomColumn, 0, len(lines))
	for _, line := range lines {
		parts := strings.Split(line, "=")
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, ErrIncorrectColumn
		}

		name, typ, _ := strings.Cut(parts[0], ":")
		colType, err := ParseColumnType(typ)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIncorrectColumn, err)
		}

		cols = append(cols, CustomColumn{
			Name:       strings.TrimSpace(name),
			Value:      strings.TrimSpace(parts[1]),
			ColumnType: colType,
		})
	}
	return cols, nil
}
