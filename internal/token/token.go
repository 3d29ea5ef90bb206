// Package token issues and checks the signed tokens KeepUp embeds in
// emails: account verification links sent to company admins and password
// reset links.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Purpose separates the two email token kinds so a reset link can never be
// replayed as a verification link.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

const (
	verifyValidity = 24 * time.Hour
	resetValidity  = time.Hour
)

type Claims struct {
	jwt.RegisteredClaims
	Email     string  `json:"email"`
	FirstName string  `json:"fname,omitempty"`
	LastName  string  `json:"lname,omitempty"`
	Purpose   Purpose `json:"purpose"`
}

// NewVerify creates the 24h account-verification token. Name fields ride
// along so the confirmation page can greet the new user without a lookup.
func NewVerify(secret []byte, email, fname, lname string) (string, error) {
	return sign(secret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(verifyValidity)),
		},
		Email:     email,
		FirstName: fname,
		LastName:  lname,
		Purpose:   PurposeVerify,
	})
}

// NewReset creates the 1h password-reset token.
func NewReset(secret []byte, email string) (string, error) {
	return sign(secret, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(resetValidity)),
		},
		Email:   email,
		Purpose: PurposeReset,
	})
}

func sign(secret []byte, claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Parse checks signature, expiry and purpose, and returns the claims.
func Parse(secret []byte, tokenString string, purpose Purpose) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !tok.Valid || claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
