package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"review_action/internal/domain"
)

const (
	DefaultSessionTTL = 12 * time.Hour
	minPasswordLen    = 6
)

var businessIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{1,63}$`)

// AuthService owns tenant credentials and cache-backed sessions.
type AuthService struct {
	tenants domain.TenantRepository
	cache   domain.Cache
	ttl     time.Duration
	cost    int
	now     func() time.Time
}

func NewAuthService(t domain.TenantRepository, c domain.Cache, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{tenants: t, cache: c, ttl: ttl, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithHashCost lowers bcrypt work, e.g. for tests.
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.cost = cost
	return s
}

// Register creates a tenant. Business ids are lower-case slugs.
func (s *AuthService) Register(ctx context.Context, businessID, password string) error {
	if !businessIDPattern.MatchString(businessID) {
		return fmt.Errorf("%w: business id must be a lower-case slug of 2..64 chars", domain.ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must have at least %d characters", domain.ErrInvalidInput, minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.tenants.CreateTenant(ctx, domain.Tenant{BusinessID: businessID, PasswordHash: string(hash)}); err != nil {
		return err
	}
	log.Info().Str("tenant", businessID).Msg("tenant registered")
	return nil
}

// Login checks credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, businessID, password string) (domain.Session, error) {
	t, err := s.tenants.GetTenant(ctx, businessID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, domain.ErrUnauthorized
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load tenant: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(password)) != nil {
		log.Warn().Str("tenant", businessID).Msg("login rejected")
		return domain.Session{}, domain.ErrUnauthorized
	}

	sess := domain.Session{
		Token:      uuid.NewString(),
		BusinessID: t.BusinessID,
		ExpiresAt:  s.now().Add(s.ttl).UTC(),
	}
	if err := s.cache.Set(ctx, sessionKey(sess.Token), sess, int(s.ttl.Seconds())); err != nil {
		return domain.Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// Resolve maps a session token to its tenant.
func (s *AuthService) Resolve(ctx context.Context, token string) (string, error) {
	if _, err := uuid.Parse(token); err != nil {
		return "", domain.ErrUnauthorized
	}
	var sess domain.Session
	ok, err := s.cache.Get(ctx, sessionKey(token), &sess)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if !ok || !s.now().Before(sess.ExpiresAt) {
		return "", domain.ErrUnauthorized
	}
	return sess.BusinessID, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.cache.Del(ctx, sessionKey(token))
}
