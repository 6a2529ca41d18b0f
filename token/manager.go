package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bookinghq/go-token-service/internal/config"
	apperrors "github.com/bookinghq/go-token-service/internal/errors"
	"github.com/bookinghq/go-token-service/token/rotation"
)

// Manager mints access and refresh tokens and drives the refresh rotation
// protocol against a rotation.Store. It never validates credentials - that is
// the caller's job. Construct one at startup and share it across handlers.
type Manager struct {
	accessSigner  Signer
	refreshSigner Signer
	store         rotation.Store
	issuer        string
	audience      string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	nowFunc       func() time.Time
	logger        zerolog.Logger
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithTokenExpiry(accessExpiry, refreshExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessExpiry = accessExpiry
		m.refreshExpiry = refreshExpiry
	}
}

// New derives the signing keys from the configured master secret and builds a
// Manager. An absent secret is a configuration error: the caller should
// refuse to start rather than fail per-request.
func New(cfg config.TokenConfig, store rotation.Store, options ...ManagerOption) (*Manager, error) {
	accessKey, refreshKey, err := DeriveKeys(cfg.GetSigningSecret())
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrConfiguration, "no signing secret available: %v", err)
	}

	m := &Manager{
		accessSigner:  NewHMACSigner(accessKey),
		refreshSigner: NewHMACSigner(refreshKey),
		store:         store,
		issuer:        cfg.GetIssuer(),
		audience:      cfg.GetAudience(),
		accessExpiry:  cfg.GetAccessTokenExpiry(),
		refreshExpiry: cfg.GetRefreshTokenExpiry(),
		nowFunc:       time.Now,
		logger:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// IssueAccessToken mints a short-lived signed access token. Pure function of
// the claims and current time; nothing is persisted - revocation happens via
// the blacklist, keyed by the jti this bakes in.
func (m *Manager) IssueAccessToken(claims Claims) (string, error) {
	now := m.nowFunc()
	mapClaims := m.baseClaims(claims, now, m.accessExpiry)
	return m.accessSigner.Sign(mapClaims)
}

// IssuedRefreshToken is the result of minting a refresh token: the signed
// token for the client plus the id/family bookkeeping for the caller.
type IssuedRefreshToken struct {
	Token     string
	ID        string
	Family    string
	ExpiresAt time.Time
}

// IssueRefreshToken mints a long-lived refresh token. An empty family starts
// a new rotation lineage (original issuance at login); otherwise the token
// joins the given family. The rotation record is persisted before the token
// is returned - a refresh token whose record failed to write must never reach
// the client.
func (m *Manager) IssueRefreshToken(ctx context.Context, claims Claims, family string) (*IssuedRefreshToken, error) {
	issued, rec, err := m.mintRefreshToken(claims, family)
	if err != nil {
		return nil, err
	}
	if err := m.store.Insert(ctx, rec); err != nil {
		if apperrors.Is(err, apperrors.ErrPersistence) {
			return nil, err
		}
		return nil, apperrors.Wrapf(apperrors.ErrPersistence, "storing refresh token: %v", err)
	}
	return issued, nil
}

func (m *Manager) mintRefreshToken(claims Claims, family string) (*IssuedRefreshToken, *rotation.Record, error) {
	id := uuid.New().String()
	if family == "" {
		family = uuid.New().String()
	}

	now := m.nowFunc()
	expiresAt := now.Add(m.refreshExpiry)
	mapClaims := m.baseClaims(claims, now, m.refreshExpiry)
	mapClaims["jti"] = id
	mapClaims["fam"] = family

	signed, err := m.refreshSigner.Sign(mapClaims)
	if err != nil {
		return nil, nil, err
	}

	issued := &IssuedRefreshToken{
		Token:     signed,
		ID:        id,
		Family:    family,
		ExpiresAt: expiresAt,
	}
	rec := &rotation.Record{
		ID:        id,
		OwnerID:   claims.Subject,
		Family:    family,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}
	return issued, rec, nil
}

func (m *Manager) baseClaims(claims Claims, now time.Time, expiry time.Duration) jwt.MapClaims {
	mapClaims := jwt.MapClaims{
		"iss": m.issuer,
		"aud": m.audience,
		"sub": claims.Subject,
		"typ": string(claims.Type),
		"iat": now.Unix(),
		"exp": now.Add(expiry).Unix(),
		"jti": uuid.New().String(),
	}
	if claims.Phone != "" {
		mapClaims["phone"] = claims.Phone
	}
	if claims.Email != "" {
		mapClaims["email"] = claims.Email
	}
	return mapClaims
}

// VerifyAccessToken checks signature and expiry and returns the typed claims.
// Blacklist checking is the gateway's responsibility, on top of this.
func (m *Manager) VerifyAccessToken(rawToken string) (*VerifiedToken, error) {
	return m.verify(rawToken, m.accessSigner, false)
}

func (m *Manager) verify(rawToken string, signer Signer, requireFamily bool) (*VerifiedToken, error) {
	parsed, err := jwt.NewParser(jwt.WithTimeFunc(m.nowFunc)).Parse(rawToken, signer.GetVerificationKey)
	if err != nil {
		if apperrors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "%v", err)
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}
	return verifiedFromMapClaims(mapClaims, requireFamily)
}

// RotationResult carries the successor token, its bookkeeping ids, and the
// claims decoded from the presented token (so the caller can mint a matching
// access token without a second parse).
type RotationResult struct {
	RefreshToken string
	ID           string
	Family       string
	ExpiresAt    time.Time
	Presented    *VerifiedToken
}

// Rotate exchanges a presented refresh token for its successor in the same
// family. The revoke-presented/insert-successor pair is a single atomic unit
// at the store, so concurrent rotations of the same token produce exactly one
// success; the loser sees ErrTokenReused.
//
// A presented token that is already revoked is the primary theft signal: the
// entire family is revoked - including the successor minted by the earlier
// legitimate rotation - and ErrTokenReused is returned. The caller must map
// this to a generic re-authenticate response while logging it as a security
// event.
func (m *Manager) Rotate(ctx context.Context, presentedToken string) (*RotationResult, error) {
	presented, err := m.verify(presentedToken, m.refreshSigner, true)
	if err != nil {
		return nil, err
	}

	issued, rec, err := m.mintRefreshToken(presented.Claims(), presented.Family)
	if err != nil {
		return nil, err
	}

	switch err := m.store.Swap(ctx, presented.ID, rec); {
	case err == nil:
		return &RotationResult{
			RefreshToken: issued.Token,
			ID:           issued.ID,
			Family:       issued.Family,
			ExpiresAt:    issued.ExpiresAt,
			Presented:    presented,
		}, nil

	case apperrors.Is(err, apperrors.ErrTokenReused):
		if revokeErr := m.store.RevokeFamily(ctx, presented.Family); revokeErr != nil {
			m.logger.Error().Err(revokeErr).
				Str("family", presented.Family).
				Msg("failed to revoke token family after reuse")
		}
		m.logger.Warn().
			Str("security_event", "refresh_token_reuse").
			Str("subject", presented.Subject).
			Str("family", presented.Family).
			Msg("revoked refresh token presented again; family revoked")
		return nil, apperrors.ErrTokenReused

	case apperrors.Is(err, apperrors.ErrTokenNotFound):
		return nil, err

	default:
		return nil, err
	}
}
