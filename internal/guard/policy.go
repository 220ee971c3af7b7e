package guard

import (
	"net/url"

	"affiliate-blog/internal/authz"
)

const (
	MessageSignIn   = "Please sign in to continue."
	MessageNoAccess = "Your account does not have access to this area."
)

// Policy maps denial reasons to redirect destinations.
// NoSession and RoleLookupFailed share the login destination and message so a
// visitor cannot tell which check failed.
type Policy struct {
	LoginPath   string
	LandingPath string
}

func DefaultPolicy() Policy {
	return Policy{LoginPath: "/login", LandingPath: "/"}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.LoginPath == "" {
		p.LoginPath = d.LoginPath
	}
	if p.LandingPath == "" {
		p.LandingPath = d.LandingPath
	}
	return p
}

// Redirect is the instruction emitted on denial. Reason stays server-side.
type Redirect struct {
	Target  string       `json:"target"`
	Message string       `json:"message"`
	Reason  authz.Reason `json:"-"`
}

// Redirect returns false for allowed verdicts. from, when set, is carried to the
// login page so the visitor can come back after signing in.
func (p Policy) Redirect(v authz.Verdict, from string) (Redirect, bool) {
	if v.Allowed {
		return Redirect{}, false
	}
	p = p.withDefaults()

	if v.Reason == authz.ReasonInsufficientRole {
		return Redirect{Target: p.LandingPath, Message: MessageNoAccess, Reason: v.Reason}, true
	}

	target := p.LoginPath
	if from != "" {
		target += "?" + url.Values{"from": {from}}.Encode()
	}
	return Redirect{Target: target, Message: MessageSignIn, Reason: v.Reason}, true
}
