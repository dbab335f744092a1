// Package api talks to the Entity Management REST API.
//
// Two clients share the same request machinery. AuthClient serves the
// sign-in, sign-up and token refresh endpoints over a plain transport, so a
// rejected password never touches the stored session. Client serves every
// other endpoint and is meant to run over a Gateway, which attaches the
// bearer token and ends the session on 401.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/entitykeeper/internal/common"
	"github.com/pkg/errors"
)

// maxErrorBody bounds how much of an error response is kept as the message.
const maxErrorBody = 4 << 10

// outboundRequest models an outbound API call.
type outboundRequest struct {
	method string
	// path is relative to the API root, without a leading slash.
	path        string
	queryParams url.Values
	headers     map[string]string
	// reqBodyObj is marshaled to JSON unless body is set.
	reqBodyObj any
	body       io.Reader
	// successCodes lists the accepted statuses; empty means 200 only.
	successCodes []int
	// respObj, when set, receives the decoded JSON response.
	respObj any
}

// Download is a binary response such as an exported spreadsheet or a PDF.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

type messageResponse struct {
	Message string `json:"message"`
}

type baseClient struct {
	apiAddress string
	httpClient *http.Client
	kinds      statusKinds
}

func newBaseClient(apiAddress string, httpClient *http.Client, kinds statusKinds) baseClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return baseClient{
		apiAddress: strings.TrimSuffix(apiAddress, "/"),
		httpClient: httpClient,
		kinds:      kinds,
	}
}

// executeRequest submits req and decodes the response body into
// req.respObj.
func (b *baseClient) executeRequest(ctx context.Context, req outboundRequest) error {
	resp, err := b.submitRequest(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if req.respObj == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(req.respObj); err != nil {
		return malformed(errors.Wrap(err, "error unmarshaling response body"))
	}
	return nil
}

// download submits req and returns the raw response body.
func (b *baseClient) download(ctx context.Context, req outboundRequest) (*Download, error) {
	resp, err := b.submitRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(errors.Wrap(err, "error reading response body"))
	}
	return &Download{
		Filename:    attachmentName(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// submitRequest prepares and executes req and returns the response when its
// status is one of the accepted codes. Any other status becomes an *Error.
func (b *baseClient) submitRequest(ctx context.Context, req outboundRequest) (*http.Response, error) {
	reqBodyReader := req.body
	if reqBodyReader == nil && req.reqBodyObj != nil {
		reqBodyBytes, err := json.Marshal(req.reqBodyObj)
		if err != nil {
			return nil, errors.Wrap(err, "error marshaling request body")
		}
		reqBodyReader = bytes.NewReader(reqBodyBytes)
	}

	r, err := http.NewRequestWithContext(
		ctx,
		req.method,
		fmt.Sprintf("%s/%s", b.apiAddress, req.path),
		reqBodyReader,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating request %s %s", req.method, req.path)
	}
	if len(req.queryParams) > 0 {
		r.URL.RawQuery = req.queryParams.Encode()
	}
	if req.reqBodyObj != nil && req.body == nil {
		r.Header.Set("Content-Type", "application/json")
	}
	r.Header.Set("Accept", "application/json")
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}

	resp, err := b.httpClient.Do(r)
	if err != nil {
		return nil, unavailable(errors.Wrap(err, "error invoking API"))
	}

	if accepted(resp.StatusCode, req.successCodes) {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, b.apiError(resp)
}

func (b *baseClient) apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := ""
	var m messageResponse
	if json.Unmarshal(body, &m) == nil {
		msg = m.Message
	} else if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &Error{
		StatusCode: resp.StatusCode,
		Message:    msg,
		kind:       b.kinds.classify(resp.StatusCode),
	}
}

func accepted(code int, successCodes []int) bool {
	if len(successCodes) == 0 {
		return code == http.StatusOK
	}
	for _, c := range successCodes {
		if c == code {
			return true
		}
	}
	return false
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w: %w", common.ErrUnavailable, common.ErrMalformedResponse, err)
}
