package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kyc-consortium/kyc_consortium/internal/config"
	"github.com/kyc-consortium/kyc_consortium/internal/consortium"
)

const (
	// RoleAdmin identifies the fixed admin identity.
	RoleAdmin = "admin"
	// RoleBank identifies a registered consortium member.
	RoleBank = "bank"
)

// ErrInvalidCredentials is returned for any failed token request; callers are
// not told whether the address or the access key was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Identity is the verified caller extracted from an access token.
type Identity struct {
	Address string
	Role    string
}

// Token carries an issued access token.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies access tokens. The surrounding environment owns
// authentication; the consortium ledger only ever sees verified addresses.
type Service struct {
	cfg    config.Config
	ledger consortium.Ledger
}

// NewService builds the token service.
func NewService(cfg config.Config, ledger consortium.Ledger) *Service {
	return &Service{cfg: cfg, ledger: ledger}
}

// IssueToken validates the caller's access key and returns a signed token.
// The admin identity authenticates against the configured secret; banks
// authenticate against the bcrypt hash stored at registration.
func (s *Service) IssueToken(ctx context.Context, address, accessKey string) (Token, error) {
	role := RoleBank
	switch {
	case address == s.cfg.AdminAddress:
		if subtle.ConstantTimeCompare([]byte(accessKey), []byte(s.cfg.AdminSecret)) != 1 {
			return Token{}, ErrInvalidCredentials
		}
		role = RoleAdmin
	default:
		bank, err := s.ledger.BankDetails(ctx, address)
		if err != nil {
			return Token{}, ErrInvalidCredentials
		}
		if bcrypt.CompareHashAndPassword(bank.AccessKeyHash, []byte(accessKey)) != nil {
			return Token{}, ErrInvalidCredentials
		}
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
		},
	})
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresIn: int64(s.cfg.AccessTokenTTL.Seconds())}, nil
}

// Verify parses the token and returns the caller identity it encodes.
func (s *Service) Verify(tokenStr string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidCredentials
	}
	if c.Subject == "" {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{Address: c.Subject, Role: c.Role}, nil
}
