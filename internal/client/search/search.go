// Package search filters an already fetched entity list by field criteria.
package search

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/entitykeeper/internal/client/models"
	"github.com/dmitrijs2005/entitykeeper/internal/common"
)

type Operator string

const (
	Contains    Operator = "contains"
	Equals      Operator = "equals"
	StartsWith  Operator = "starts_with"
	EndsWith    Operator = "ends_with"
	GreaterThan Operator = "greater_than"
	LessThan    Operator = "less_than"
	Between     Operator = "between"
	After       Operator = "after"
	Before      Operator = "before"
)

// Built-in entity fields.
const (
	FieldName             = "name"
	FieldDescription      = "description"
	FieldCreatedDate      = "createdDate"
	FieldLastModifiedDate = "lastModifiedDate"
)

// OperatorsFor lists the operators that apply to a field type. The first
// one is the default.
func OperatorsFor(t models.CustomColumnType) []Operator {
	switch t {
	case models.ColumnNumber, models.ColumnCurrency:
		return []Operator{Equals, GreaterThan, LessThan, Between}
	case models.ColumnDate:
		return []Operator{Equals, After, Before, Between}
	case models.ColumnBoolean:
		return []Operator{Equals}
	default:
		return []Operator{Contains, Equals, StartsWith, EndsWith}
	}
}

type Field struct {
	Name string
	Type models.CustomColumnType
}

// Fields returns the built-in fields followed by the custom columns of the
// first entity.
func Fields(entities []models.Entity) []Field {
	fields := []Field{
		{Name: FieldName, Type: models.ColumnText},
		{Name: FieldDescription, Type: models.ColumnText},
		{Name: FieldCreatedDate, Type: models.ColumnDate},
		{Name: FieldLastModifiedDate, Type: models.ColumnDate},
	}
	if len(entities) == 0 {
		return fields
	}
	for _, c := range entities[0].CustomColumns {
		if !slices.ContainsFunc(fields, func(f Field) bool { return f.Name == c.Name }) {
			fields = append(fields, Field{Name: c.Name, Type: c.Type()})
		}
	}
	return fields
}

// Criterion is one condition. Value holds "lo,hi" for Between.
type Criterion struct {
	Field    string
	Operator Operator
	Value    string
}

// Filter keeps the entities that match every criterion with a non-empty
// value. With no such criteria the input is returned as is. fields defaults
// to Fields(entities).
func Filter(entities []models.Entity, fields []Field, criteria []Criterion) ([]models.Entity, error) {
	if fields == nil {
		fields = Fields(entities)
	}

	active := make([]Criterion, 0, len(criteria))
	types := make([]models.CustomColumnType, 0, len(criteria))
	for _, c := range criteria {
		if c.Value == "" {
			continue
		}
		t := models.ColumnText
		if i := slices.IndexFunc(fields, func(f Field) bool { return f.Name == c.Field }); i >= 0 {
			t = fields[i].Type
		}
		if !slices.Contains(OperatorsFor(t), c.Operator) {
			return nil, fmt.Errorf("%w: operator %q does not apply to %s field %q", common.ErrValidation, c.Operator, t, c.Field)
		}
		active = append(active, c)
		types = append(types, t)
	}
	if len(active) == 0 {
		return entities, nil
	}

	out := make([]models.Entity, 0, len(entities))
	for _, e := range entities {
		ok := true
		for i, c := range active {
			if !matches(&e, c, types[i]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func matches(e *models.Entity, c Criterion, t models.CustomColumnType) bool {
	raw, ok := fieldValue(e, c.Field)
	if !ok {
		return false
	}
	switch t {
	case models.ColumnNumber, models.ColumnCurrency:
		return matchNumber(raw, c.Operator, c.Value)
	case models.ColumnDate:
		return matchDate(raw, c.Operator, c.Value)
	case models.ColumnBoolean:
		a, errA := strconv.ParseBool(raw)
		b, errB := strconv.ParseBool(c.Value)
		return errA == nil && errB == nil && a == b
	default:
		return matchText(raw, c.Operator, c.Value)
	}
}

func fieldValue(e *models.Entity, field string) (string, bool) {
	switch field {
	case FieldName:
		return e.Name, true
	case FieldDescription:
		return e.Description, true
	case FieldCreatedDate:
		return timeValue(e.CreatedDate)
	case FieldLastModifiedDate:
		return timeValue(e.LastModifiedDate)
	}
	col, ok := e.Column(field)
	return col.Value, ok
}

func timeValue(t *time.Time) (string, bool) {
	if t == nil {
		return "", false
	}
	return t.Format(time.RFC3339), true
}

func matchText(have string, op Operator, want string) bool {
	have, want = strings.ToLower(have), strings.ToLower(want)
	switch op {
	case Contains:
		return strings.Contains(have, want)
	case Equals:
		return have == want
	case StartsWith:
		return strings.HasPrefix(have, want)
	case EndsWith:
		return strings.HasSuffix(have, want)
	}
	return false
}

func matchNumber(have string, op Operator, want string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(have), 64)
	if err != nil {
		return false
	}
	if op == Between {
		lo, hi, ok := bounds(want, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
		return ok && v >= lo && v <= hi
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(want), 64)
	if err != nil {
		return false
	}
	switch op {
	case Equals:
		return v == w
	case GreaterThan:
		return v > w
	case LessThan:
		return v < w
	}
	return false
}

func matchDate(have string, op Operator, want string) bool {
	v, err := parseDate(have)
	if err != nil {
		return false
	}
	if op == Between {
		lo, hi, ok := bounds(want, parseDate)
		return ok && !v.Before(lo) && !v.After(endOfDay(hi))
	}
	w, err := parseDate(want)
	if err != nil {
		return false
	}
	switch op {
	case Equals:
		return sameDay(v, w)
	case After:
		return v.After(w)
	case Before:
		return v.Before(w)
	}
	return false
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func endOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}

func bounds[T any](s string, parse func(string) (T, error)) (lo, hi T, ok bool) {
	a, b, found := strings.Cut(s, ",")
	if !found {
		return lo, hi, false
	}
	lo, errLo := parse(strings.TrimSpace(a))
	hi, errHi := parse(strings.TrimSpace(b))
	return lo, hi, errLo == nil && errHi == nil
}
