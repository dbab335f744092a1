package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/entitykeeper/internal/common"
	"github.com/dmitrijs2005/entitykeeper/internal/logging"
	"github.com/google/uuid"
)

// SessionSource is the part of the session store the gateway depends on.
type SessionSource interface {
	AccessToken(ctx context.Context) string
	Invalidate(ctx context.Context) (bool, error)
}

// Observer receives per-request measurements.
type Observer interface {
	ObserveRequest(method string, code int, elapsed time.Duration)
	ObserveInvalidation()
}

type GatewayOption func(*Gateway)

// WithTransport sets the RoundTripper requests are forwarded to.
func WithTransport(rt http.RoundTripper) GatewayOption {
	return func(g *Gateway) { g.next = rt }
}

func WithObserver(o Observer) GatewayOption {
	return func(g *Gateway) { g.observer = o }
}

func WithGatewayLogger(l logging.Logger) GatewayOption {
	return func(g *Gateway) { g.log = l }
}

// Gateway is an http.RoundTripper that attaches the session's bearer token
// to every request and signs the session out when the API answers 401. The
// sign-out completes before the response is returned, and the request is
// never retried.
type Gateway struct {
	session  SessionSource
	next     http.RoundTripper
	observer Observer
	log      logging.Logger
	now      func() time.Time
}

func NewGateway(session SessionSource, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		session: session,
		next:    http.DefaultTransport,
		log:     logging.Discard(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// HTTPClient returns a client that sends through g and gives up after
// timeout (no limit when zero).
func (g *Gateway) HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Transport: g, Timeout: timeout}
}

func (g *Gateway) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	log := g.log.With("request_id", uuid.NewString(), "method", req.Method, "path", req.URL.Path)

	out := req
	if token := g.session.AccessToken(ctx); token != "" {
		out = req.Clone(ctx)
		out.Header.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+token)
	}

	start := g.now()
	resp, err := g.next.RoundTrip(out)
	elapsed := g.now().Sub(start)

	if err != nil {
		g.observe(req.Method, 0, elapsed)
		log.Debug(ctx, "request failed", "error", err, "elapsed", elapsed)
		return nil, err
	}
	g.observe(req.Method, resp.StatusCode, elapsed)
	log.Debug(ctx, "response", "status", resp.StatusCode, "elapsed", elapsed)

	if resp.StatusCode == http.StatusUnauthorized {
		// the caller may already be gone; the session must still end
		removed, sErr := g.session.Invalidate(context.WithoutCancel(ctx))
		switch {
		case sErr != nil:
			log.Error(ctx, "sign out after 401", "error", sErr)
		case removed:
			log.Info(ctx, "session invalidated by server")
			if g.observer != nil {
				g.observer.ObserveInvalidation()
			}
		}
	}
	return resp, nil
}

func (g *Gateway) observe(method string, code int, elapsed time.Duration) {
	if g.observer != nil {
		g.observer.ObserveRequest(method, code, elapsed)
	}
}
