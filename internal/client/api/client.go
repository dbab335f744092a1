package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/entitykeeper/internal/client/models"
	"github.com/dmitrijs2005/entitykeeper/internal/common"
	"github.com/pkg/errors"
)

// Client calls the protected API endpoints. Its http.Client should use a
// Gateway as transport.
type Client struct {
	baseClient
}

func NewClient(apiAddress string, httpClient *http.Client) *Client {
	return &Client{baseClient: newBaseClient(apiAddress, httpClient, gatewayKinds)}
}

func (c *Client) ListEntities(ctx context.Context) ([]models.Entity, error) {
	var entities []models.Entity
	err := c.executeRequest(ctx, outboundRequest{
		method:  http.MethodGet,
		path:    "entities",
		respObj: &entities,
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

func (c *Client) GetEntity(ctx context.Context, id int64) (*models.Entity, error) {
	e := &models.Entity{}
	err := c.executeRequest(ctx, outboundRequest{
		method:  http.MethodGet,
		path:    entityPath(id),
		respObj: e,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Client) CreateEntity(ctx context.Context, e *models.Entity) (*models.Entity, error) {
	created := &models.Entity{}
	err := c.executeRequest(ctx, outboundRequest{
		method:       http.MethodPost,
		path:         "entities",
		reqBodyObj:   e,
		successCodes: []int{http.StatusOK, http.StatusCreated},
		respObj:      created,
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) UpdateEntity(ctx context.Context, id int64, e *models.Entity) (*models.Entity, error) {
	updated := &models.Entity{}
	err := c.executeRequest(ctx, outboundRequest{
		method:     http.MethodPut,
		path:       entityPath(id),
		reqBodyObj: e,
		respObj:    updated,
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (c *Client) DeleteEntity(ctx context.Context, id int64) error {
	return c.executeRequest(ctx, outboundRequest{
		method:       http.MethodDelete,
		path:         entityPath(id),
		successCodes: []int{http.StatusOK, http.StatusNoContent},
	})
}

func entityPath(id int64) string {
	return "entities/" + strconv.FormatInt(id, 10)
}

// UpdateProfile validates p and sends it. The local session is not touched;
// callers persist the accepted fields through the session store.
func (c *Client) UpdateProfile(ctx context.Context, p models.ProfileUpdate) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return c.executeRequest(ctx, outboundRequest{
		method:       http.MethodPut,
		path:         "auth/profile",
		reqBodyObj:   p,
		successCodes: []int{http.StatusOK, http.StatusNoContent},
	})
}

// Format is an import/export file format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

// Ext is the file extension the server produces for f.
func (f Format) Ext() string {
	if f == FormatExcel {
		return ".xlsx"
	}
	return ".csv"
}

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatExcel, "xlsx", "xls":
		return FormatExcel, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", common.ErrValidation, s)
	}
}

// FormatFromFilename picks the import format from a file extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xls":
		return FormatExcel, nil
	default:
		return "", fmt.Errorf("%w: please select a CSV or Excel file", common.ErrValidation)
	}
}

// Export downloads every entity in the given format.
func (c *Client) Export(ctx context.Context, f Format) (*Download, error) {
	return c.download(ctx, outboundRequest{
		method:  http.MethodGet,
		path:    "data/export/" + string(f),
		headers: map[string]string{"Accept": "*/*"},
	})
}

// Import uploads r as the multipart field "file" and returns the server's
// summary message.
func (c *Client) Import(ctx context.Context, f Format, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", errors.Wrap(err, "error creating multipart body")
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", errors.Wrapf(err, "error reading %s", filename)
	}
	if err := mw.Close(); err != nil {
		return "", errors.Wrap(err, "error closing multipart body")
	}

	resp := &messageResponse{}
	err = c.executeRequest(ctx, outboundRequest{
		method:  http.MethodPost,
		path:    "data/import/" + string(f),
		body:    &buf,
		headers: map[string]string{"Content-Type": mw.FormDataContentType()},
		respObj: resp,
	})
	return resp.Message, err
}

// ReportKind names a server-side PDF report.
type ReportKind string

const (
	ReportEntities      ReportKind = "entities"
	ReportCustomColumns ReportKind = "custom-columns"
	ReportStatistics    ReportKind = "statistics"
	ReportDateRange     ReportKind = "date-range"
	ReportCustom        ReportKind = "custom"
)

var reportKinds = []ReportKind{ReportEntities, ReportCustomColumns, ReportStatistics, ReportDateRange, ReportCustom}

func ParseReportKind(s string) (ReportKind, error) {
	for _, k := range reportKinds {
		if string(k) == strings.ToLower(s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown report %q", common.ErrValidation, s)
}

const reportDateLayout = "2006-01-02"

type ReportRequest struct {
	Kind ReportKind
	// custom-columns
	Title       string
	GeneratedBy string
	// date-range
	StartDate time.Time
	EndDate   time.Time
	// custom
	Name   string
	Params map[string]string
}

func (r ReportRequest) path() (string, url.Values, error) {
	q := url.Values{}
	switch r.Kind {
	case ReportEntities, ReportStatistics:
		return "reports/" + string(r.Kind), nil, nil
	case ReportCustomColumns:
		if r.Title != "" {
			q.Set("title", r.Title)
		}
		if r.GeneratedBy != "" {
			q.Set("generatedBy", r.GeneratedBy)
		}
		return "reports/custom-columns", q, nil
	case ReportDateRange:
		if r.StartDate.IsZero() || r.EndDate.IsZero() {
			return "", nil, fmt.Errorf("%w: date-range report needs start and end dates", common.ErrValidation)
		}
		if r.EndDate.Before(r.StartDate) {
			return "", nil, fmt.Errorf("%w: end date is before start date", common.ErrValidation)
		}
		q.Set("startDate", r.StartDate.Format(reportDateLayout))
		q.Set("endDate", r.EndDate.Format(reportDateLayout))
		return "reports/date-range", q, nil
	case ReportCustom:
		if strings.TrimSpace(r.Name) == "" {
			return "", nil, fmt.Errorf("%w: custom report needs a name", common.ErrValidation)
		}
		for k, v := range r.Params {
			q.Set(k, v)
		}
		return "reports/custom/" + url.PathEscape(r.Name), q, nil
	default:
		return "", nil, fmt.Errorf("%w: unknown report %q", common.ErrValidation, r.Kind)
	}
}

// Report downloads a generated PDF.
func (c *Client) Report(ctx context.Context, r ReportRequest) (*Download, error) {
	path, q, err := r.path()
	if err != nil {
		return nil, err
	}
	return c.download(ctx, outboundRequest{
		method:      http.MethodGet,
		path:        path,
		queryParams: q,
		headers:     map[string]string{"Accept": "application/pdf"},
	})
}
