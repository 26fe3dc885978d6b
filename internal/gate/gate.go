// Package gate decides where navigation lands given the session state, and
// validates the account forms before anything is sent to the server.
package gate

import (
	"errors"
	"strings"
)

const (
	RouteRoot           = "/"
	RouteLogin          = "/login"
	RouteProfile        = "/profile"
	RouteChangePassword = "/change-password"
	RouteLogout         = "/logout"
)

var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrEmptyPassword    = errors.New("password must not be empty")
	ErrEmptyUsername    = errors.New("username must not be empty")
)

var knownRoutes = map[string]bool{
	RouteRoot:           true,
	RouteLogin:          true,
	RouteProfile:        true,
	RouteChangePassword: true,
	RouteLogout:         true,
}

// Resolve returns the route a navigation to route should end up on.
// Unauthenticated sessions only ever reach the login page, and an
// authenticated session never sees it.
func Resolve(route string, authenticated bool) string {
	route = normalize(route)

	if !authenticated {
		return RouteLogin
	}
	if route == RouteLogin {
		return RouteRoot
	}
	return route
}

func normalize(route string) string {
	if route == "" {
		return RouteRoot
	}
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	if !knownRoutes[route] {
		return RouteRoot
	}
	return route
}

// Credentials is the login form
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks the form is complete
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return ErrEmptyUsername
	}
	if c.Password == "" {
		return ErrEmptyPassword
	}
	return nil
}

// PasswordChange is the change-password form
type PasswordChange struct {
	Password       string `json:"password"`
	NewPassword    string `json:"newPassword"`
	RepeatPassword string `json:"repeatPassword"`
}

// Validate checks the new password was typed the same way twice
func (p PasswordChange) Validate() error {
	if p.Password == "" || p.NewPassword == "" {
		return ErrEmptyPassword
	}
	if p.NewPassword != p.RepeatPassword {
		return ErrPasswordMismatch
	}
	return nil
}
