package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/entitykeeper/internal/client/dashboard"
	"github.com/dmitrijs2005/entitykeeper/internal/client/guard"
	"github.com/dmitrijs2005/entitykeeper/internal/client/search"
	"github.com/dmitrijs2005/entitykeeper/internal/common"
	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
)

// maxColumnValues caps the values listed per custom column on the dashboard.
const maxColumnValues = 5

// Search filters the entity list. A single criterion can be given inline,
// e.g. "search priority greater_than 3"; without arguments criteria are
// read one per line.
func (a *App) Search(ctx context.Context, args []string) error {
	if !a.navigate(ctx, guard.PathSearch) {
		return nil
	}
	entities, err := a.entities.ListEntities(ctx)
	if err != nil {
		return err
	}
	fields := search.Fields(entities)

	var criteria []search.Criterion
	if len(args) > 0 {
		c, err := parseCriterion(args, fields)
		if err != nil {
			return err
		}
		criteria = append(criteria, c)
	} else {
		a.printFields(fields)
		fmt.Fprintln(a.out, "Enter criteria as: field [operator] value (empty line to finish)")
		lines, err := readLines(a.reader)
		if err != nil {
			return err
		}
		for _, line := range lines {
			c, err := parseCriterion(strings.Fields(line), fields)
			if err != nil {
				return err
			}
			criteria = append(criteria, c)
		}
	}

	found, err := search.Filter(entities, fields, criteria)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d of %d entities match.\n", len(found), len(entities))
	a.printEntities(found)
	return nil
}

// parseCriterion reads "field [operator] value". The operator defaults to
// the first one the field type supports; "between" takes "lo,hi".
func parseCriterion(parts []string, fields []search.Field) (search.Criterion, error) {
	if len(parts) < 2 {
		return search.Criterion{}, fmt.Errorf("%w: criterion must be: field [operator] value", common.ErrValidation)
	}
	i := slices.IndexFunc(fields, func(f search.Field) bool { return strings.EqualFold(f.Name, parts[0]) })
	if i < 0 {
		return search.Criterion{}, fmt.Errorf("%w: unknown field %q", common.ErrValidation, parts[0])
	}
	field := fields[i]

	ops := search.OperatorsFor(field.Type)
	c := search.Criterion{Field: field.Name, Operator: ops[0], Value: strings.Join(parts[1:], " ")}
	if len(parts) > 2 {
		if op := search.Operator(strings.ToLower(parts[1])); slices.Contains(ops, op) {
			c.Operator = op
			c.Value = strings.Join(parts[2:], " ")
		}
	}
	return c, nil
}

func (a *App) printFields(fields []search.Field) {
	table := uitable.New()
	table.AddRow("FIELD", "TYPE", "OPERATORS")
	for _, f := range fields {
		ops := search.OperatorsFor(f.Type)
		names := make([]string, len(ops))
		for i, op := range ops {
			names[i] = string(op)
		}
		table.AddRow(f.Name, f.Type, strings.Join(names, ", "))
	}
	fmt.Fprintln(a.out, table)
}

// Dashboard prints entity statistics for a period (default: all).
func (a *App) Dashboard(ctx context.Context, args []string) error {
	if !a.navigate(ctx, guard.PathDashboard) {
		return nil
	}
	period := dashboard.All
	if len(args) > 0 {
		p, err := dashboard.ParsePeriod(args[0])
		if err != nil {
			return err
		}
		period = p
	}

	entities, err := a.entities.ListEntities(ctx)
	if err != nil {
		return err
	}
	s := dashboard.Summarize(entities, period, a.now())

	totals := uitable.New()
	totals.AddRow("TOTAL ENTITIES", humanize.Comma(int64(s.Total)))
	totals.AddRow("IN PERIOD ("+string(s.Period)+")", humanize.Comma(int64(s.Filtered)))
	totals.AddRow("CREATED TODAY", humanize.Comma(int64(s.CreatedToday)))
	totals.AddRow("MODIFIED TODAY", humanize.Comma(int64(s.ModifiedToday)))
	fmt.Fprintln(a.out, totals)

	if len(s.Timeline) > 0 {
		fmt.Fprintln(a.out)
		timeline := uitable.New()
		timeline.AddRow("CREATED", "COUNT")
		for _, b := range s.Timeline {
			timeline.AddRow(b.Label, b.Count)
		}
		fmt.Fprintln(a.out, timeline)
	}

	if len(s.Columns) > 0 {
		fmt.Fprintln(a.out)
		cols := uitable.New()
		cols.MaxColWidth = maxColWidth
		cols.AddRow("COLUMN", "VALUE", "COUNT")
		for _, c := range s.Columns {
			for i, v := range c.Values {
				if i == maxColumnValues {
					break
				}
				cols.AddRow(c.Name, v.Value, v.Count)
			}
		}
		fmt.Fprintln(a.out, cols)
	}
	return nil
}
