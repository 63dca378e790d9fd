package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lyzr/workflow-router/common/config"
	"github.com/lyzr/workflow-router/common/logger"
)

var (
	// ErrBadPassword is returned when the shared password does not match
	ErrBadPassword = errors.New("invalid password")

	// ErrInvalidToken is returned for a tampered, malformed or expired cookie
	ErrInvalidToken = errors.New("invalid access token")
)

// AccessClaims is the payload carried by the access cookie
type AccessClaims struct {
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	Nonce     string `json:"n"`
}

// Expired reports whether the claims are past their expiry at now
func (c AccessClaims) Expired(now time.Time) bool {
	return now.Unix() >= c.ExpiresAt
}

// AuthService guards the editor behind one shared password. A successful
// login yields a self-contained signed cookie, so nothing is stored.
type AuthService struct {
	cfg config.AuthConfig
	log *logger.Logger
	now func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(cfg config.AuthConfig, log *logger.Logger) *AuthService {
	return &AuthService{cfg: cfg, log: log, now: time.Now}
}

// Enabled reports whether a password is configured at all
func (s *AuthService) Enabled() bool {
	return s.cfg.Enabled()
}

// CookieName is the name of the access cookie
func (s *AuthService) CookieName() string {
	return s.cfg.CookieName
}

// MaxAge is the lifetime of an issued cookie
func (s *AuthService) MaxAge() time.Duration {
	return s.cfg.MaxAge
}

// Secure reports whether cookies are marked Secure
func (s *AuthService) Secure() bool {
	return s.cfg.Secure
}

// VerifyPassword checks password against the configured hash. A hash with
// the bcrypt prefix is checked with bcrypt, anything else is compared as
// hex SHA-256. With no hash configured the plain password is compared.
func (s *AuthService) VerifyPassword(password string) error {
	switch hash := strings.TrimSpace(s.cfg.PasswordHash); {
	case strings.HasPrefix(hash, "$2"):
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
			return ErrBadPassword
		}
		return nil

	case hash != "":
		sum := sha256.Sum256([]byte(password))
		got := hex.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(hash))) != 1 {
			return ErrBadPassword
		}
		return nil

	case s.cfg.Password != "":
		if subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) != 1 {
			return ErrBadPassword
		}
		return nil
	}
	return ErrBadPassword
}

// Issue signs a fresh access token
func (s *AuthService) Issue() (string, AccessClaims, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", AccessClaims{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.now()
	claims := AccessClaims{
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.cfg.MaxAge).Unix(),
		Nonce:     base64.RawURLEncoding.EncodeToString(nonce),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", AccessClaims{}, fmt.Errorf("failed to encode claims: %w", err)
	}

	body := base64.RawURLEncoding.EncodeToString(payload)
	token := body + "." + s.sign(body)
	s.log.Info("issued access token", "expires_at", time.Unix(claims.ExpiresAt, 0).UTC())
	return token, claims, nil
}

// Parse verifies the signature and expiry of a token
func (s *AuthService) Parse(token string) (AccessClaims, error) {
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || sig == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(body))) {
		return AccessClaims{}, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return AccessClaims{}, ErrInvalidToken
	}
	var claims AccessClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return AccessClaims{}, ErrInvalidToken
	}
	if claims.Expired(s.now()) {
		return AccessClaims{}, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) sign(body string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.CookieSecret))
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
