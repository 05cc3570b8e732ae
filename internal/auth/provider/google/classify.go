package google

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
)

// probe records, for one verification call, whether any request to the
// provider failed at the transport level or with a server error.
type probe struct {
	unavailable atomic.Bool
}

type probeKey struct{}

func withProbe(ctx context.Context) (context.Context, *probe) {
	p := &probe{}
	return context.WithValue(ctx, probeKey{}, p), p
}

func probeFrom(ctx context.Context) *probe {
	p, _ := ctx.Value(probeKey{}).(*probe)
	return p
}

func markUnavailable(ctx context.Context) {
	if p := probeFrom(ctx); p != nil {
		p.unavailable.Store(true)
	}
}

// probeTransport marks the request's probe on transport errors and 5xx.
type probeTransport struct {
	base http.RoundTripper
}

func (t probeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode >= http.StatusInternalServerError {
		markUnavailable(req.Context())
	}
	return resp, err
}

// probeKeySet marks the call's probe when signing keys cannot be fetched.
// go-oidc formats key fetch failures into the verification error text, so
// the transport cause is not always reachable through errors.As.
type probeKeySet struct {
	inner oidc.KeySet
}

func (k probeKeySet) VerifySignature(ctx context.Context, jwt string) ([]byte, error) {
	payload, err := k.inner.VerifySignature(ctx, jwt)
	if err != nil && keyFetchFailed(err) {
		markUnavailable(ctx)
	}
	return payload, err
}

func keyFetchFailed(err error) bool {
	if isTransportError(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "fetching keys") || strings.Contains(msg, "get keys failed")
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// classify turns a provider failure into ProviderUnavailable when the
// provider could not be reached, and InvalidAssertion otherwise.
func classify(ctx context.Context, err error, invalidCode, invalidMsg string) *apperr.Error {
	if unavailable(ctx, err) {
		return apperr.ProviderUnavailable("identity provider unreachable", err)
	}
	return apperr.InvalidAssertion(invalidMsg, err).WithCode(invalidCode)
}

func unavailable(ctx context.Context, err error) bool {
	if p := probeFrom(ctx); p != nil && p.unavailable.Load() {
		return true
	}
	if ctx.Err() != nil || isTransportError(err) {
		return true
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode >= http.StatusInternalServerError
	}
	return false
}
