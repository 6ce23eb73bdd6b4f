package guard

import "secdash/internal/model"

type Outcome string

const (
	OutcomeAdmit    Outcome = "admit"
	OutcomePending  Outcome = "pending"
	OutcomeRedirect Outcome = "redirect"
)

type Decision struct {
	Outcome Outcome `json:"outcome"`
	To      string  `json:"to,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// Decide is pure and re-evaluated on every navigation. While a bootstrap
// verification is still in flight the caller gets pending so it can render a
// loading state instead of bouncing to login.
func Decide(session model.Session, targetPath, loginPath string) Decision {
	if targetPath == loginPath {
		return Decision{Outcome: OutcomeAdmit}
	}
	switch session.Status {
	case model.StatusAuthenticated:
		return Decision{Outcome: OutcomeAdmit}
	case model.StatusAuthenticating:
		return Decision{Outcome: OutcomePending}
	case model.StatusExpired:
		return Decision{Outcome: OutcomeRedirect, To: loginPath, Reason: "session expired"}
	default:
		return Decision{Outcome: OutcomeRedirect, To: loginPath, Reason: "authentication required"}
	}
}
