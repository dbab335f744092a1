package api

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/entitykeeper/internal/common"
)

// Error is a non-2xx answer from the API. It unwraps to one of the sentinels
// in package common, so callers can match it with errors.Is and still show
// the server's message.
type Error struct {
	StatusCode int
	Message    string
	kind       error
}

func (e *Error) Error() string {
	if e.kind == nil {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.kind, e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error { return e.kind }

// statusKinds maps response codes onto sentinels. 401 and 403 are resolved
// per client because their meaning differs between sign-in and everything
// else.
type statusKinds struct {
	unauthorized error
	forbidden    error
}

var (
	gatewayKinds = statusKinds{unauthorized: common.ErrSessionExpired, forbidden: common.ErrForbidden}
	authKinds    = statusKinds{unauthorized: common.ErrInvalidCredentials, forbidden: common.ErrInvalidCredentials}
)

func (k statusKinds) classify(code int) error {
	switch {
	case code == http.StatusBadRequest:
		return common.ErrBadRequest
	case code == http.StatusUnauthorized:
		return k.unauthorized
	case code == http.StatusForbidden:
		return k.forbidden
	case code == http.StatusNotFound:
		return common.ErrNotFound
	case code == http.StatusConflict:
		return common.ErrConflict
	case code >= http.StatusInternalServerError:
		return common.ErrUnavailable
	default:
		return nil
	}
}
