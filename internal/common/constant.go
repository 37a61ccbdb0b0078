// Package common contains shared constants and sentinel errors used across
// credkeeper components.
package common

// SessionCookieName is the cookie that mirrors the bearer session token for
// browser clients.
const SessionCookieName = "token"

// AuthorizationHeaderName carries "Bearer <token>" on inbound requests.
const AuthorizationHeaderName = "Authorization"

// Account roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
