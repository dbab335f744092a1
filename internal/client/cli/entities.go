package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/entitykeeper/internal/client/guard"
	"github.com/dmitrijs2005/entitykeeper/internal/client/models"
	"github.com/dmitrijs2005/entitykeeper/internal/common"
	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
)

const maxColWidth = 50

func (a *App) List(ctx context.Context, _ []string) error {
	if !a.navigate(ctx, guard.PathHome) {
		return nil
	}
	entities, err := a.entities.ListEntities(ctx)
	if err != nil {
		return err
	}
	a.printEntities(entities)
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	if !a.navigate(ctx, guard.PathHome) {
		return nil
	}
	id, err := a.entityID(args, "Enter entity id to show")
	if err != nil {
		return err
	}
	e, err := a.entities.GetEntity(ctx, id)
	if err != nil {
		return err
	}
	a.printEntity(e)
	return nil
}

func (a *App) Add(ctx context.Context, _ []string) error {
	if !a.navigate(ctx, guard.PathHome) {
		return nil
	}

	name, err := a.ask("Enter name")
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", common.ErrValidation)
	}
	desc, err := GetMultiline(a.reader, "Enter description", a.out)
	if err != nil {
		return err
	}
	lines, err := GetCustomColumns(a.reader, a.out)
	if err != nil {
		return err
	}
	cols, err := models.CustomColumnsFromStrings(lines)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	created, err := a.entities.CreateEntity(ctx, &models.Entity{Name: name, Description: desc, CustomColumns: cols})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created entity #%d.\n", created.ID)
	return nil
}

// Edit updates an entity. Empty answers keep the current values; entering
// no custom columns keeps the existing ones.
func (a *App) Edit(ctx context.Context, args []string) error {
	if !a.navigate(ctx, guard.PathHome) {
		return nil
	}
	id, err := a.entityID(args, "Enter entity id to edit")
	if err != nil {
		return err
	}
	e, err := a.entities.GetEntity(ctx, id)
	if err != nil {
		return err
	}

	if e.Name, err = a.askDefault("Name", e.Name); err != nil {
		return err
	}
	desc, err := GetMultiline(a.reader, "Description (empty keeps the current one)", a.out)
	if err != nil {
		return err
	}
	if desc != "" {
		e.Description = desc
	}
	lines, err := GetCustomColumns(a.reader, a.out)
	if err != nil {
		return err
	}
	if len(lines) > 0 {
		if e.CustomColumns, err = models.CustomColumnsFromStrings(lines); err != nil {
			return fmt.Errorf("%w: %w", common.ErrValidation, err)
		}
	}

	if _, err := a.entities.UpdateEntity(ctx, id, e); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated entity #%d.\n", id)
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if !a.navigate(ctx, guard.PathHome) {
		return nil
	}
	id, err := a.entityID(args, "Enter entity id to delete")
	if err != nil {
		return err
	}
	ok, err := a.confirm(fmt.Sprintf("Delete entity #%d?", id))
	if err != nil || !ok {
		return err
	}
	if err := a.entities.DeleteEntity(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted entity #%d.\n", id)
	return nil
}

func (a *App) entityID(args []string, prompt string) (int64, error) {
	s, err := a.argOrAsk(args, prompt)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not an entity id", common.ErrValidation, s)
	}
	return id, nil
}

func (a *App) printEntities(entities []models.Entity) {
	if len(entities) == 0 {
		fmt.Fprintln(a.out, "No entities found.")
		return
	}

	table := uitable.New()
	table.MaxColWidth = maxColWidth
	table.AddRow("ID", "NAME", "DESCRIPTION", "COLUMNS", "CREATED", "MODIFIED")
	for _, e := range entities {
		table.AddRow(
			e.ID,
			e.Name,
			firstLine(e.Description),
			len(e.CustomColumns),
			a.age(e.CreatedDate),
			a.age(e.LastModifiedDate),
		)
	}
	fmt.Fprintln(a.out, table)
}

func (a *App) printEntity(e *models.Entity) {
	table := uitable.New()
	table.MaxColWidth = maxColWidth
	table.Wrap = true
	table.AddRow("ID", e.ID)
	table.AddRow("NAME", e.Name)
	table.AddRow("DESCRIPTION", e.Description)
	if e.CreatedBy != nil {
		table.AddRow("CREATED BY", e.CreatedBy.DisplayName())
	}
	table.AddRow("CREATED", a.age(e.CreatedDate))
	if e.LastModifiedBy != nil {
		table.AddRow("MODIFIED BY", e.LastModifiedBy.DisplayName())
	}
	table.AddRow("MODIFIED", a.age(e.LastModifiedDate))
	fmt.Fprintln(a.out, table)

	if len(e.CustomColumns) == 0 {
		return
	}
	fmt.Fprintln(a.out)
	cols := uitable.New()
	cols.MaxColWidth = maxColWidth
	cols.AddRow("COLUMN", "TYPE", "VALUE")
	for _, c := range e.CustomColumns {
		cols.AddRow(c.Name, c.Type(), c.Value)
	}
	fmt.Fprintln(a.out, cols)
}

func (a *App) age(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return humanize.RelTime(*t, a.now(), "ago", "from now")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
