// Package host describes the container the app may be embedded in. Running
// outside any host is the normal case and is represented by None.
package host

import "context"

// User is the identity the host reports.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Context is queried once per request or session.
type Context interface {
	User() (User, bool)
}

// None is the absent host.
type None struct{}

func (None) User() (User, bool) { return User{}, false }

// Telegram is a validated Telegram WebApp launch.
type Telegram struct {
	user User
}

func (t Telegram) User() (User, bool) { return t.user, t.user.ID != 0 || t.user.FirstName != "" }

type ctxKey struct{}

// NewContext returns a copy of ctx carrying hc.
func NewContext(ctx context.Context, hc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, hc)
}

// FromContext returns the host stored in ctx, or None.
func FromContext(ctx context.Context) Context {
	if hc, ok := ctx.Value(ctxKey{}).(Context); ok && hc != nil {
		return hc
	}
	return None{}
}

// GreetingName is the user's first name, or "" without a host user.
func GreetingName(hc Context) string {
	if u, ok := hc.User(); ok {
		return u.FirstName
	}
	return ""
}
