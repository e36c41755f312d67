// Package auth provides authentication requirements. Each one reads a
// credential from the request, verifies it and stores the authenticated
// user on the call, where the ctx_user directive picks it up.
//
//	reg.Get("/admin", admin, expose.Requires(
//	    auth.Basic(auth.VerifyUser("admin", secret), "Admin"),
//	))
//
// A failed check concludes the call with a 401 problem and a
// WWW-Authenticate challenge.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bjaus/expose"
)

// BasicVerifier returns the authenticated user for a username and password,
// or nil when the credentials are invalid.
type BasicVerifier func(username, password string) any

// KeyVerifier returns the authenticated user for an API key or token, or
// nil when it is invalid.
type KeyVerifier func(key string) any

// VerifyUser accepts exactly one username and password and returns the
// username as the user.
func VerifyUser(username, password string) BasicVerifier {
	return func(u, p string) any {
		userOK := subtle.ConstantTimeCompare([]byte(u), []byte(username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(p), []byte(password)) == 1
		if userOK && passOK {
			return u
		}
		return nil
	}
}

// VerifyHashed accepts username with a password matching the bcrypt hash.
func VerifyHashed(username string, hash []byte) BasicVerifier {
	return func(u, p string) any {
		if subtle.ConstantTimeCompare([]byte(u), []byte(username)) != 1 {
			return nil
		}
		if bcrypt.CompareHashAndPassword(hash, []byte(p)) != nil {
			return nil
		}
		return u
	}
}

// Basic authenticates with HTTP Basic credentials.
func Basic(verify BasicVerifier, realm string) expose.Requirement {
	if realm == "" {
		realm = "simple"
	}
	challenge := fmt.Sprintf("Basic realm=%q", realm)

	return func(c *expose.Call) any {
		if c.Request == nil {
			return unauthorized(c, challenge, "Authentication required")
		}
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			return unauthorized(c, challenge, "Authentication required")
		}
		user := verify(username, password)
		if user == nil {
			return unauthorized(c, challenge, "Invalid Authentication")
		}
		c.User = user
		return nil
	}
}

// APIKey authenticates with a key read from header, "X-Api-Key" if empty.
func APIKey(verify KeyVerifier, header string) expose.Requirement {
	if header == "" {
		header = "X-Api-Key"
	}
	return func(c *expose.Call) any {
		return checkKey(c, verify, c.Request, header, "API key")
	}
}

// Token authenticates with the raw value of the Authorization header.
func Token(verify KeyVerifier) expose.Requirement {
	return func(c *expose.Call) any {
		return checkKey(c, verify, c.Request, "Authorization", "token")
	}
}

func checkKey(c *expose.Call, verify KeyVerifier, r *http.Request, header, what string) any {
	challenge := "Token"
	if r == nil || r.Header.Get(header) == "" {
		return unauthorized(c, challenge, "Authentication required")
	}
	user := verify(r.Header.Get(header))
	if user == nil {
		return unauthorized(c, challenge, fmt.Sprintf("Invalid %s", what))
	}
	c.User = user
	return nil
}

// JWT authenticates with an HS256 bearer token signed with secret. The
// token's jwt.MapClaims become the user.
func JWT(secret []byte, opts ...jwt.ParserOption) expose.Requirement {
	challenge := `Bearer realm="api"`
	opts = append([]jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name})}, opts...)

	return func(c *expose.Call) any {
		if c.Request == nil {
			return unauthorized(c, challenge, "Authentication required")
		}
		raw, ok := strings.CutPrefix(c.Request.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			return unauthorized(c, challenge, "Authentication required")
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		}, opts...)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return unauthorized(c, challenge+`, error="invalid_token"`, "Token expired")
		case err != nil:
			return unauthorized(c, challenge+`, error="invalid_token"`, "Invalid token")
		}
		c.User = claims
		return nil
	}
}

func unauthorized(c *expose.Call, challenge, detail string) *expose.ProblemDetail {
	if c.Response != nil {
		c.Response.Header.Set("WWW-Authenticate", challenge)
	}
	return &expose.ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(http.StatusUnauthorized),
		Status: http.StatusUnauthorized,
		Detail: detail,
	}
}
