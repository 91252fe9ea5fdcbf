package gate

import "lmsgate/internal/session"

// Outcome is one of the two terminal states of an evaluation.
type Outcome string

const (
	Authorized Outcome = "authorized"
	Redirect   Outcome = "redirect"
)

// Reason explains a Redirect. Empty for Authorized decisions.
type Reason string

const (
	ReasonMissing      Reason = "missing"
	ReasonExpired      Reason = "expired"
	ReasonInvalid      Reason = "invalid"
	ReasonLookupFailed Reason = "lookup_failed"
	ReasonForbidden    Reason = "forbidden"
)

// Decision is the tagged result of Gate.Evaluate.
type Decision struct {
	Outcome Outcome
	// Claim is set only when Outcome is Authorized.
	Claim *session.Claim
	// Target is the redirect location, set only when Outcome is Redirect.
	Target string
	Reason Reason
}

// IsAuthorized reports whether the caller may see the protected content.
func (d Decision) IsAuthorized() bool {
	return d.Outcome == Authorized && d.Claim != nil
}

func authorized(c *session.Claim) Decision {
	return Decision{Outcome: Authorized, Claim: c}
}

func redirectTo(target string, reason Reason) Decision {
	return Decision{Outcome: Redirect, Target: target, Reason: reason}
}
