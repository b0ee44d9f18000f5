// Package token issues and verifies the Execution-Token Claim (§3, §6): the
// signed bearer credential a remote container presents back to the core on
// its webhook callbacks, scoped to one execution id with a short lifetime.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
)

const (
	issuer   = "foundry"
	audience = "foundry-container"
	typ      = "execution"

	// MaxLifetime is the upper bound on a claim's validity window (§3: "Lifetime ≤ 1 hour").
	MaxLifetime = time.Hour
)

// Claims is the Execution-Token Claim payload (§3, §6).
type Claims struct {
	ExecutionID string `json:"executionId"`
	WorkflowID  string `json:"workflowId"`
	Type        string `json:"type"`
	jwt.RegisteredClaims
}

// Signer mints and verifies Execution-Token Claims with a process-wide
// HS256 secret (§5: "The encryption key is process-wide, immutable after
// startup"; the signing secret follows the same lifecycle).
type Signer struct {
	secret []byte
}

// NewSigner constructs a Signer from the process-wide signing secret.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Issue mints a new claim for executionID/workflowID with the given
// lifetime, clamped to MaxLifetime.
func (s *Signer) Issue(executionID, workflowID string, lifetime time.Duration) (string, time.Time, error) {
	if lifetime <= 0 || lifetime > MaxLifetime {
		lifetime = MaxLifetime
	}
	now := time.Now()
	expiresAt := now.Add(lifetime)
	claims := Claims{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		Type:        typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(apperrors.KindInternalError, "token.Issue", err)
	}
	return signed, expiresAt, nil
}

// Verify parses raw and checks signature, issuer, audience, type, and
// expiry, then asserts the executionId claim matches expectedExecutionID
// (the §8 property 8 "token for A rejected at endpoint for B" contract).
// Any failure returns apperrors.KindUnauthorizedWebhook.
func (s *Signer) Verify(raw, expectedExecutionID string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.New(apperrors.KindUnauthorizedWebhook, "token.Verify", "unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithAudience(audience))
	if err != nil || !parsed.Valid {
		return nil, apperrors.Wrap(apperrors.KindUnauthorizedWebhook, "token.Verify", err)
	}
	if claims.Type != typ {
		return nil, apperrors.New(apperrors.KindUnauthorizedWebhook, "token.Verify", "unexpected claim type")
	}
	if claims.ExecutionID != expectedExecutionID {
		return nil, apperrors.Errorf(apperrors.KindUnauthorizedWebhook, "token.Verify", "token scoped to execution %q does not match %q", claims.ExecutionID, expectedExecutionID)
	}
	return claims, nil
}
