package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/bookinghq/go-token-service/internal/errors"
)

// PrincipalType distinguishes the three principals the marketplace issues
// tokens to.
type PrincipalType string

const (
	PrincipalCustomer PrincipalType = "customer"
	PrincipalProvider PrincipalType = "provider"
	PrincipalAdmin    PrincipalType = "admin"
)

// Claims is the caller-supplied identity baked into every issued token.
// Phone and Email are optional; the marketplace has phone-only customers and
// email-only providers.
type Claims struct {
	Subject string
	Type    PrincipalType
	Phone   string
	Email   string
}

// VerifiedToken is the decoded view of a token whose signature and expiry
// have already been checked. Family is only set for refresh tokens.
type VerifiedToken struct {
	ID        string // jti
	Family    string
	Subject   string
	Type      PrincipalType
	Phone     string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (v *VerifiedToken) Claims() Claims {
	return Claims{
		Subject: v.Subject,
		Type:    PrincipalType(v.Type),
		Phone:   v.Phone,
		Email:   v.Email,
	}
}

// verifiedFromMapClaims extracts the typed view from verified claims. A token
// that passed signature verification but is missing its identifying claims is
// malformed, which is a distinct condition from an invalid signature.
func verifiedFromMapClaims(claims jwt.MapClaims, requireFamily bool) (*VerifiedToken, error) {
	jti, _ := claims["jti"].(string)
	sub, _ := claims["sub"].(string)
	if jti == "" || sub == "" {
		return nil, apperrors.Wrapf(apperrors.ErrTokenMalformed, "missing jti or sub claim")
	}

	family, _ := claims["fam"].(string)
	if requireFamily && family == "" {
		return nil, apperrors.Wrapf(apperrors.ErrTokenMalformed, "missing fam claim")
	}

	typ, _ := claims["typ"].(string)
	phone, _ := claims["phone"].(string)
	email, _ := claims["email"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	return &VerifiedToken{
		ID:        jti,
		Family:    family,
		Subject:   sub,
		Type:      PrincipalType(typ),
		Phone:     phone,
		Email:     email,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}
