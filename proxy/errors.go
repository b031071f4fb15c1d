package proxy

import "errors"

// Authorization failures. Both are answered locally; the upstream is never contacted.
var (
	// ErrAccessDenied means no access code was supplied and the request does
	// not already carry the upstream credential.
	ErrAccessDenied = errors.New("access denied")

	// ErrAuthCodeIllegal means the access code is too short or not on the allowlist.
	ErrAuthCodeIllegal = errors.New("auth code illegal")

	// ErrNoUpstreamHost means neither an upstream override nor a request Host
	// was available to forward to.
	ErrNoUpstreamHost = errors.New("no upstream host")
)

// Messages returned to clients. They are part of the wire contract.
const (
	accessDeniedMessage    = "access denied"
	authCodeIllegalMessage = "Auth Code Illegal"
)
