// Package models defines the client-side records exchanged with the Entity
// Management API and persisted in the local session database.
package models

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/dmitrijs2005/entitykeeper/internal/common"
)

// User is the profile of the signed-in account. Identity fields are owned by
// the server; only the name and email can be changed from the client.
type User struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
}

// HasAnyRole reports whether u carries at least one of roles.
func (u *User) HasAnyRole(roles ...string) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if slices.Contains(u.Roles, r) {
			return true
		}
	}
	return false
}

// DisplayName is "First Last", falling back to the username.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Tokens is the credential material of a session.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType,omitempty"`
}

// Session is the authenticated identity held by the client.
type Session struct {
	User
	Tokens
}

// SignInRequest is the body of POST /auth/signin.
type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignInResponse is the body returned by a successful sign-in.
type SignInResponse struct {
	ID           int64    `json:"id"`
	Username     string   `json:"username"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	Email        string   `json:"email"`
	Roles        []string `json:"roles"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	TokenType    string   `json:"tokenType,omitempty"`
}

// Validate rejects responses that would produce a partially populated
// session.
func (r *SignInResponse) Validate() error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: empty sign-in response", common.ErrMalformedResponse)
	case strings.TrimSpace(r.AccessToken) == "":
		return fmt.Errorf("%w: sign-in response has no access token", common.ErrMalformedResponse)
	case strings.TrimSpace(r.Username) == "":
		return fmt.Errorf("%w: sign-in response has no username", common.ErrMalformedResponse)
	case r.Roles == nil:
		return fmt.Errorf("%w: sign-in response has no roles", common.ErrMalformedResponse)
	}
	return nil
}

// Session splits the response into the persisted profile and tokens.
func (r *SignInResponse) Session() *Session {
	return &Session{
		User: User{
			ID:        r.ID,
			Username:  r.Username,
			FirstName: r.FirstName,
			LastName:  r.LastName,
			Email:     r.Email,
			Roles:     slices.Clone(r.Roles),
		},
		Tokens: Tokens{
			AccessToken:  r.AccessToken,
			RefreshToken: r.RefreshToken,
			TokenType:    r.TokenType,
		},
	}
}

// RefreshRequest is the body of POST /auth/refreshtoken.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse carries the renewed credentials. RefreshToken may be empty
// when the server does not rotate it.
type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType,omitempty"`
}

// SignUpRequest is the body of POST /auth/signup.
type SignUpRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate applies the same checks the server performs so obvious mistakes
// never leave the client.
func (r SignUpRequest) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Username) == "" {
		problems = append(problems, "username is required")
	}
	if strings.TrimSpace(r.Email) == "" {
		problems = append(problems, "email is required")
	} else if !emailPattern.MatchString(r.Email) {
		problems = append(problems, "invalid email format")
	}
	if strings.TrimSpace(r.Password) == "" {
		problems = append(problems, "password is required")
	}
	return validationError(problems)
}

// ProfileUpdate is the body of PUT /auth/profile.
type ProfileUpdate struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	CurrentPassword string `json:"currentPassword,omitempty"`
	NewPassword     string `json:"newPassword,omitempty"`
}

const minPasswordLength = 6

// Validate checks required fields and, when a new password is given, that
// the current password accompanies it.
func (p ProfileUpdate) Validate() error {
	var problems []string
	if strings.TrimSpace(p.FirstName) == "" {
		problems = append(problems, "first name is required")
	}
	if strings.TrimSpace(p.LastName) == "" {
		problems = append(problems, "last name is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		problems = append(problems, "email is required")
	} else if !emailPattern.MatchString(p.Email) {
		problems = append(problems, "invalid email format")
	}
	if p.NewPassword != "" {
		if p.CurrentPassword == "" {
			problems = append(problems, "current password is required to change password")
		}
		if len(p.NewPassword) < minPasswordLength {
			problems = append(problems, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		}
	}
	return validationError(problems)
}

func validationError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", common.ErrValidation, strings.Join(problems, "; "))
}
