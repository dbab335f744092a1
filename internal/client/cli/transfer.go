package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/entitykeeper/internal/client/api"
	"github.com/dmitrijs2005/entitykeeper/internal/client/artifacts"
	"github.com/dmitrijs2005/entitykeeper/internal/client/guard"
	"github.com/dmitrijs2005/entitykeeper/internal/common"
	"github.com/dustin/go-humanize"
)

const dateLayout = "2006-01-02"

// Export downloads all entities as CSV (default) or Excel and stores the
// file in the artifact sink.
func (a *App) Export(ctx context.Context, args []string) error {
	if !a.navigate(ctx, guard.PathImportExport) {
		return nil
	}
	format := api.FormatCSV
	if len(args) > 0 {
		f, err := api.ParseFormat(args[0])
		if err != nil {
			return err
		}
		format = f
	}

	dl, err := a.entities.Export(ctx, format)
	if err != nil {
		return err
	}
	name := dl.Filename
	if name == "" {
		name = artifacts.ExportName(a.now(), format.Ext())
	}
	return a.save(ctx, name, dl)
}

// Import uploads a local CSV or Excel file.
func (a *App) Import(ctx context.Context, args []string) error {
	if !a.navigate(ctx, guard.PathImportExport) {
		return nil
	}
	path, err := a.argOrAsk(args, "Enter path to a CSV or Excel file")
	if err != nil {
		return err
	}
	format, err := api.FormatFromFilename(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	msg, err := a.entities.Import(ctx, format, filepath.Base(path), f)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Import completed."
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

// Report generates a PDF report. Kinds: entities, custom-columns,
// statistics, date-range <start> <end>, custom <name> [key=value...].
func (a *App) Report(ctx context.Context, args []string) error {
	if !a.navigate(ctx, guard.PathReports) {
		return nil
	}
	s, err := a.argOrAsk(args, "Enter report kind (entities, custom-columns, statistics, date-range, custom)")
	if err != nil {
		return err
	}
	kind, err := api.ParseReportKind(s)
	if err != nil {
		return err
	}
	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}

	req := api.ReportRequest{Kind: kind}
	switch kind {
	case api.ReportCustomColumns:
		if req.Title, err = a.ask("Report title (optional)"); err != nil {
			return err
		}
		if cur := a.session.CurrentUser(ctx); cur != nil {
			req.GeneratedBy = cur.DisplayName()
		}
	case api.ReportDateRange:
		if req.StartDate, err = a.date(rest, 0, "Start date (YYYY-MM-DD)"); err != nil {
			return err
		}
		if req.EndDate, err = a.date(rest, 1, "End date (YYYY-MM-DD)"); err != nil {
			return err
		}
	case api.ReportCustom:
		if req.Name, err = a.argOrAsk(rest, "Report name"); err != nil {
			return err
		}
		if len(rest) > 1 {
			req.Params = make(map[string]string, len(rest)-1)
			for _, kv := range rest[1:] {
				k, v, ok := strings.Cut(kv, "=")
				if !ok || k == "" {
					return fmt.Errorf("%w: report parameter %q must be key=value", common.ErrValidation, kv)
				}
				req.Params[k] = v
			}
		}
	}

	dl, err := a.entities.Report(ctx, req)
	if err != nil {
		return err
	}
	return a.save(ctx, artifacts.ReportName(string(kind)), dl)
}

func (a *App) date(args []string, i int, prompt string) (time.Time, error) {
	var s string
	var err error
	if i < len(args) {
		s = args[i]
	} else if s, err = a.ask(prompt); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", common.ErrValidation, s)
	}
	return t, nil
}

func (a *App) save(ctx context.Context, name string, dl *api.Download) error {
	loc, err := a.sink.Save(ctx, name, dl.ContentType, dl.Data)
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	fmt.Fprintf(a.out, "Saved %s (%s) to %s\n", name, humanize.Bytes(uint64(len(dl.Data))), loc)
	return nil
}
