package proxy

import (
	"net/http"
	"strings"
)

const (
	// HeaderAuthCode carries the client's access code.
	HeaderAuthCode = "AUTH_CODE"

	// MinAuthCodeLength is the shortest access code that is ever accepted.
	MinAuthCodeLength = 12
)

// Decision records how an authorized request is forwarded.
type Decision int

const (
	// PassThrough forwards the request unchanged because no upstream key is configured.
	PassThrough Decision = iota

	// PreAuthorized forwards the request unchanged because it already carries the upstream key.
	PreAuthorized

	// InjectKey forwards the request with the upstream key as its bearer credential.
	InjectKey
)

func (d Decision) String() string {
	switch d {
	case PassThrough:
		return "passthrough"
	case PreAuthorized:
		return "preauthorized"
	case InjectKey:
		return "injected"
	default:
		return "unknown"
	}
}

// Authorizer gates use of the upstream key behind the access-code allowlist.
type Authorizer struct {
	upstreamKey  string
	allowedCodes string
}

// NewAuthorizer creates an Authorizer. An empty upstreamKey turns the relay
// into a plain pass-through proxy.
func NewAuthorizer(upstreamKey, allowedCodes string) *Authorizer {
	return &Authorizer{
		upstreamKey:  upstreamKey,
		allowedCodes: allowedCodes,
	}
}

// Authorize decides what to forward for a request with the given headers.
// It returns the headers to send upstream, which are a modified copy when the
// key is injected; header itself is never modified. The error is
// ErrAccessDenied or ErrAuthCodeIllegal when the request must be rejected.
func (a *Authorizer) Authorize(header http.Header) (http.Header, Decision, error) {
	if a.upstreamKey == "" {
		return header, PassThrough, nil
	}

	// Suffix rather than exact match: a caller can put anything in front of
	// the key and still pass. Kept for compatibility with existing internal
	// callers; tightening it to an exact "Bearer <key>" match is a candidate
	// hardening step.
	if strings.HasSuffix(header.Get("Authorization"), a.upstreamKey) {
		return header, PreAuthorized, nil
	}

	code := header.Get(HeaderAuthCode)
	if code == "" {
		return nil, 0, ErrAccessDenied
	}

	if !a.codeAllowed(code) {
		return nil, 0, ErrAuthCodeIllegal
	}

	forwarded := header.Clone()
	forwarded.Set("Authorization", "Bearer "+a.upstreamKey)
	forwarded.Del(HeaderAuthCode)

	return forwarded, InjectKey, nil
}

func (a *Authorizer) codeAllowed(code string) bool {
	return len(code) >= MinAuthCodeLength && strings.Contains(a.allowedCodes, code)
}
