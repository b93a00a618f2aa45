package originpolicy

// Response headers controlled by the policy.
const (
	HeaderAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAllowCredentials = "Access-Control-Allow-Credentials"
)

// ReasonNotAllowlisted is the denial reason for origins absent from the
// allowlist.
const ReasonNotAllowlisted = "origin not in allowlist"

// Decision is the outcome of evaluating one request's origin against an
// AllowList. It is produced and consumed within a single request.
type Decision struct {
	// Allowed reports whether the request may proceed with cross-origin
	// access, or carried no origin at all.
	Allowed bool
	// Origin is the value to echo in Access-Control-Allow-Origin. Empty
	// for requests without an Origin header, which need no CORS headers.
	Origin string
	// Reason explains a denial. Empty when Allowed.
	Reason string
}

// Evaluate checks a request's declared origin against the allowlist. An
// empty origin means a same-origin or non-browser request and is allowed
// without an echo. A present origin must exactly equal an allowlist entry;
// anything else is denied.
func Evaluate(list AllowList, origin string) Decision {
	if origin == "" {
		return Decision{Allowed: true}
	}
	if list.Contains(origin) {
		return Decision{Allowed: true, Origin: origin}
	}
	return Decision{Reason: ReasonNotAllowlisted}
}

// Headers returns the CORS response headers implied by the decision.
// Denials and requests without an origin produce none. The allow-origin
// value is always the matched request origin, so a wildcard can never be
// combined with credentials.
func (d Decision) Headers(allowCredentials bool) map[string]string {
	if !d.Allowed || d.Origin == "" {
		return nil
	}
	headers := map[string]string{HeaderAllowOrigin: d.Origin}
	if allowCredentials {
		headers[HeaderAllowCredentials] = "true"
	}
	return headers
}

// Outcome returns "allowed" or "denied", the label used by metrics and
// audit records.
func (d Decision) Outcome() string {
	if d.Allowed {
		return "allowed"
	}
	return "denied"
}
