// Package common contains shared constants and sentinel errors used across
// the Entity Management client components.
package common

// AuthorizationHeaderName is the HTTP header used to carry the bearer
// credential on outbound API requests.
const AuthorizationHeaderName = "Authorization"

// BearerScheme prefixes the access token inside the authorization header.
const BearerScheme = "Bearer"

// Well-known role tags issued by the backend.
const (
	RoleUser      = "ROLE_USER"
	RoleModerator = "ROLE_MODERATOR"
	RoleAdmin     = "ROLE_ADMIN"
)
