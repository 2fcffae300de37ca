// Package services – AuthService
//
// This file implements API-key admission: credential verification against
// the hashed key registry, per-key hourly rate limiting on the counter
// store, soft monthly quota checks, and key lifecycle management (issue,
// list, revoke). Plaintext secrets exist only between generation and the
// single creation response; everything else operates on SHA-256 digests.
//
// Admission fails closed on credentials (any lookup doubt means
// ErrInvalidAPIKey) and fails open on rate limiting (a broken counter
// store admits traffic rather than taking the API down with it).
package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/romapi/go-directory-backend/internal/cache"
	"github.com/romapi/go-directory-backend/internal/domain"
)

// KeyPrefix is the plaintext marker on every issued secret. It lets
// operators recognize leaked keys in logs and scanners without storing
// anything reversible.
const KeyPrefix = "rapi_"

// keySecretBytes is the entropy per key; hex-encoded it yields 64 chars.
const keySecretBytes = 32

// DefaultRateWindow is the fixed rate-limit window when none is configured.
const DefaultRateWindow = time.Hour

// rateKeyPrefix namespaces hourly counters on the shared store.
const rateKeyPrefix = "ratelimit:"

// PlanLimits maps a subscription tier to its per-hour rate ceiling and
// per-month quota.
type PlanLimits struct {
	RatePerHour   int
	QuotaPerMonth int64
}

var planLimits = map[domain.Plan]PlanLimits{
	domain.PlanFree:       {RatePerHour: 100, QuotaPerMonth: 1_000},
	domain.PlanBasic:      {RatePerHour: 500, QuotaPerMonth: 10_000},
	domain.PlanPro:        {RatePerHour: 2_000, QuotaPerMonth: 100_000},
	domain.PlanEnterprise: {RatePerHour: 10_000, QuotaPerMonth: 1_000_000},
}

// LimitsForPlan returns the ceilings for a tier, defaulting unknown tiers
// to FREE.
func LimitsForPlan(p domain.Plan) PlanLimits {
	if l, ok := planLimits[p]; ok {
		return l
	}
	return planLimits[domain.PlanFree]
}

// KeyRepo defines the repository contract required by AuthService.
type KeyRepo interface {
	// CreateAPIKey inserts a new registry row.
	CreateAPIKey(ctx context.Context, db *gorm.DB, key *domain.APIKey) error

	// FindAPIKeyByHash fetches a key by secret digest, preloading the owner.
	FindAPIKeyByHash(ctx context.Context, db *gorm.DB, hash string) (*domain.APIKey, error)

	// ListAPIKeys returns all keys owned by userID, newest first.
	ListAPIKeys(ctx context.Context, db *gorm.DB, userID string) ([]domain.APIKey, error)

	// TouchAPIKeyUsage bumps the cumulative usage counter.
	TouchAPIKeyUsage(ctx context.Context, db *gorm.DB, id string, at time.Time) error

	// SetAPIKeyActive flips the active flag on a key owned by userID.
	SetAPIKeyActive(ctx context.Context, db *gorm.DB, id, userID string, active bool) error
}

// AuthorizedCaller is the admission result handed to handlers: the key that
// authenticated the request and its resolved owner.
type AuthorizedCaller struct {
	Key  *domain.APIKey
	User *domain.User
}

// AuthService performs admission control and API-key lifecycle management.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the key registry repository.
	Repo KeyRepo
	// Counters is the shared counter store for rate windows. A nil store
	// disables rate limiting entirely (fail open).
	Counters cache.Store

	// Window is the fixed rate-limit window length.
	Window time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewAuthService constructs an AuthService with the default hourly window.
func NewAuthService(db *gorm.DB, r KeyRepo, counters cache.Store) *AuthService {
	return &AuthService{
		DB:       db,
		Repo:     r,
		Counters: counters,
		Window:   DefaultRateWindow,
		now:      time.Now,
	}
}

// HashKey returns the hex SHA-256 digest of a plaintext secret. The digest
// is the only form that touches storage or logs.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateKey produces a fresh plaintext secret: the "rapi_" prefix
// followed by 64 hex characters of CSPRNG output.
func GenerateKey() (string, error) {
	buf := make([]byte, keySecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}

// Authenticate admits or rejects one request presenting the raw secret.
//
// The decision order is credential first, then rate: an invalid key is
// never reported as rate-limited. Unknown, revoked and expired keys all
// return ErrInvalidAPIKey so the registry cannot be probed. On success the
// window counter has already been charged and cumulative usage accounting
// is kicked off in the background.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*AuthorizedCaller, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		admissions.WithLabelValues("missing").Inc()
		return nil, ErrMissingAPIKey
	}

	key, err := s.Repo.FindAPIKeyByHash(ctx, s.DB, HashKey(raw))
	if err != nil {
		admissions.WithLabelValues("invalid").Inc()
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			// Registry unreachable: fail closed, same opaque error.
			bestEffort("auth.lookup", func() error { return err })
		}
		return nil, ErrInvalidAPIKey
	}
	if !key.Active || key.Expired(s.now()) {
		admissions.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidAPIKey
	}

	if err := s.chargeWindow(ctx, key); err != nil {
		admissions.WithLabelValues("rate_limited").Inc()
		return nil, err
	}

	// Cumulative usage is accounting, not admission: fire and forget so a
	// slow write never holds the request.
	go func(id string, at time.Time) {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		bestEffort("auth.touch_usage", func() error {
			return s.Repo.TouchAPIKeyUsage(bg, s.DB, id, at)
		})
	}(key.ID, s.now().UTC())

	admissions.WithLabelValues("allowed").Inc()
	return &AuthorizedCaller{Key: key, User: &key.User}, nil
}

// chargeWindow enforces the fixed-window hourly ceiling for one key. The
// window key encodes the hour bucket, so counters roll over naturally and
// expire one window after their last touch. Counter store errors admit the
// request.
func (s *AuthService) chargeWindow(ctx context.Context, key *domain.APIKey) error {
	if s.Counters == nil || key.RateLimit <= 0 {
		return nil
	}

	window := s.Window
	if window <= 0 {
		window = DefaultRateWindow
	}
	bucket := s.now().Unix() / int64(window/time.Second)
	counterKey := rateKeyPrefix + key.ID + ":" + strconv.FormatInt(bucket, 10)

	count, err := s.Counters.Count(ctx, counterKey)
	if err != nil {
		bestEffort("ratelimit.count", func() error { return err })
		return nil
	}
	if count >= int64(key.RateLimit) {
		return &RateLimitError{Limit: key.RateLimit}
	}

	n, err := s.Counters.Increment(ctx, counterKey)
	if err != nil {
		bestEffort("ratelimit.incr", func() error { return err })
		return nil
	}
	if n == 1 {
		bestEffort("ratelimit.expire", func() error {
			return s.Counters.Expire(ctx, counterKey, window)
		})
	}
	return nil
}

// OverQuota reports whether the key's cumulative usage has reached its
// monthly quota. Quota is advisory: handlers surface it in headers rather
// than rejecting traffic, so it lives outside Authenticate.
func (s *AuthService) OverQuota(key *domain.APIKey) bool {
	return key.QuotaLimit > 0 && key.UsageCount >= key.QuotaLimit
}

// CreateKey issues a new API key for userID on the given plan and returns
// the registry row together with the plaintext secret. The plaintext is
// returned exactly once and never stored.
func (s *AuthService) CreateKey(ctx context.Context, userID, name string, plan domain.Plan, expiresAt *time.Time) (*domain.APIKey, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "default"
	}

	raw, err := GenerateKey()
	if err != nil {
		return nil, "", err
	}

	limits := LimitsForPlan(plan)
	key := &domain.APIKey{
		ID:         uuid.NewString(),
		Name:       name,
		KeyHash:    HashKey(raw),
		UserID:     userID,
		Plan:       plan,
		Active:     true,
		ExpiresAt:  expiresAt,
		RateLimit:  limits.RatePerHour,
		QuotaLimit: limits.QuotaPerMonth,
	}
	if err := s.Repo.CreateAPIKey(ctx, s.DB, key); err != nil {
		return nil, "", err
	}
	return key, raw, nil
}

// ListKeys returns all keys owned by userID.
func (s *AuthService) ListKeys(ctx context.Context, userID string) ([]domain.APIKey, error) {
	return s.Repo.ListAPIKeys(ctx, s.DB, userID)
}

// Revoke soft-revokes a key owned by userID. The row survives for audit
// and the hash stays reserved.
func (s *AuthService) Revoke(ctx context.Context, userID, keyID string) error {
	err := s.Repo.SetAPIKeyActive(ctx, s.DB, keyID, userID, false)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrKeyNotFound
	}
	return err
}
