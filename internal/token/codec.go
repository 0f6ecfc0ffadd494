// Package token implements the signed access token codec and lifecycle.
package token

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/warden-auth/warden/internal/scope"
)

// Payload is the decoded content of an access token.
type Payload struct {
	TokenID   uuid.UUID
	Subject   uuid.UUID
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Scopes    []scope.Scope
}

type accessClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// Codec signs and verifies access tokens. The signing key is immutable after
// construction and safe for concurrent use.
type Codec struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

// NewCodec builds a codec around an RSA private key.
func NewCodec(key *rsa.PrivateKey) *Codec {
	return &Codec{private: key, public: &key.PublicKey}
}

// NewCodecFromPEM parses a PEM-encoded RSA private key (PKCS#1 or PKCS#8).
func NewCodecFromPEM(pemBytes []byte) (*Codec, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("token: parse signing key: %w", err)
	}
	return NewCodec(key), nil
}

// PublicKeyPEM returns the PEM-encoded public key for third-party
// verification.
func (c *Codec) PublicKeyPEM() string {
	der, err := x509.MarshalPKIXPublicKey(c.public)
	if err != nil {
		return ""
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// Encode signs a payload into its wire form.
func (c *Codec) Encode(p Payload) (string, error) {
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        p.TokenID.String(),
			Subject:   p.Subject.String(),
			Audience:  jwt.ClaimStrings(p.Audience),
			IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
		Scopes: scope.FormatAll(p.Scopes),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.private)
}

// Decode verifies a token and returns its payload.
//
// On *ExpiredTokenError the payload is still returned so introspection can
// report the decoded identity and scopes of an expired token.
func (c *Codec) Decode(text string, now time.Time) (Payload, error) {
	var claims accessClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(text, &claims, func(t *jwt.Token) (any, error) {
		return c.public, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Payload{}, &SignatureInvalidError{}
		}
		return Payload{}, &MalformedTokenError{Reason: err.Error()}
	}

	payload, err := claimsToPayload(&claims)
	if err != nil {
		return Payload{}, err
	}
	if now.Before(payload.IssuedAt) {
		return Payload{}, &MalformedTokenError{Reason: "token used before its issue time"}
	}
	if !now.Before(payload.ExpiresAt) {
		return payload, &ExpiredTokenError{ExpiresAt: payload.ExpiresAt}
	}
	return payload, nil
}

func claimsToPayload(claims *accessClaims) (Payload, error) {
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return Payload{}, &MalformedTokenError{Reason: "missing issued-at or expiry claim"}
	}
	tokenID, err := uuid.Parse(claims.ID)
	if err != nil {
		return Payload{}, &MalformedTokenError{Reason: "token id is not a valid uuid"}
	}
	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Payload{}, &MalformedTokenError{Reason: "subject is not a valid uuid"}
	}
	scopes, err := scope.ParseAll(claims.Scopes)
	if err != nil {
		return Payload{}, &MalformedTokenError{Reason: fmt.Sprintf("embedded scope: %v", err)}
	}
	return Payload{
		TokenID:   tokenID,
		Subject:   subject,
		Audience:  claims.Audience,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		Scopes:    scopes,
	}, nil
}
