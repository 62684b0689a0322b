package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/models"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
)

type leaseStore interface {
	Acquire(ctx context.Context, token *models.StockAccessToken, ttl time.Duration) (bool, error)
	Lookup(ctx context.Context, token string) (*models.StockAccessToken, error)
	Release(ctx context.Context, token *models.StockAccessToken, outcome models.TokenOutcome) (bool, error)
	Outcome(ctx context.Context, token string) (models.TokenOutcome, error)
	Holder(ctx context.Context, key string) (string, error)
}

type trackedToken struct {
	token models.StockAccessToken
	timer *time.Timer
}

// settleTimeout bounds the store lookup made when a local expiry timer fires.
const settleTimeout = 5 * time.Second

// AccessTokenService grants exclusive, time-bounded access to inventory items and
// purchase orders. The lease store is authoritative for every token, so any instance
// sharing it can validate, release or cancel. The service also indexes the tokens it
// issued and evicts them when they expire.
type AccessTokenService struct {
	store     leaseStore
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	defaultTTL   time.Duration
	maxTTL       time.Duration
	waitInterval time.Duration
	maxWait      time.Duration
	now          func() time.Time

	mu      sync.Mutex
	byKey   map[string]*trackedToken
	byToken map[string]*trackedToken
}

// AccessTokenOption configures the service.
type AccessTokenOption func(*AccessTokenService)

// WithTokenTTL sets the default and maximum lease length.
func WithTokenTTL(defaultTTL, maxTTL time.Duration) AccessTokenOption {
	return func(s *AccessTokenService) {
		if defaultTTL > 0 {
			s.defaultTTL = defaultTTL
		}
		if maxTTL > 0 {
			s.maxTTL = maxTTL
		}
	}
}

// WithTokenWait sets how often a waiting request retries and the longest wait allowed.
func WithTokenWait(interval, maxWait time.Duration) AccessTokenOption {
	return func(s *AccessTokenService) {
		if interval > 0 {
			s.waitInterval = interval
		}
		if maxWait >= 0 {
			s.maxWait = maxWait
		}
	}
}

// WithTokenMetrics records token outcomes.
func WithTokenMetrics(metrics *MetricsService) AccessTokenOption {
	return func(s *AccessTokenService) {
		s.metrics = metrics
	}
}

// NewAccessTokenService constructs the service.
func NewAccessTokenService(store leaseStore, logger *zap.Logger, opts ...AccessTokenOption) *AccessTokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AccessTokenService{
		store:        store,
		validator:    validator.New(),
		logger:       logger,
		defaultTTL:   30 * time.Second,
		maxTTL:       5 * time.Minute,
		waitInterval: 100 * time.Millisecond,
		maxWait:      10 * time.Second,
		now:          time.Now,
		byKey:        make(map[string]*trackedToken),
		byToken:      make(map[string]*trackedToken),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	if svc.defaultTTL > svc.maxTTL {
		svc.defaultTTL = svc.maxTTL
	}
	return svc
}

// Request acquires a token for req.EntityID. When the entity is already leased the
// call fails with TOKEN_UNAVAILABLE, unless req.WaitMillis allows it to retry until
// the current holder lets go.
func (s *AccessTokenService) Request(ctx context.Context, req dto.AccessTokenRequest, holderID string) (*models.StockAccessToken, error) {
	req.EntityID = strings.TrimSpace(req.EntityID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid access token request")
	}
	if !req.Scope.AllowsOperation(req.Operation) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("operation %q is not allowed for %s tokens", req.Operation, req.Scope))
	}
	if holderID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token holder is required")
	}

	ttl := s.defaultTTL
	if req.TTLMillis > 0 {
		ttl = capMillis(req.TTLMillis, s.maxTTL)
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	wait := capMillis(req.WaitMillis, s.maxWait)

	tokenValue := uuid.NewString()
	deadline := s.now().Add(wait)

	for {
		issued := s.now().UTC()
		token := models.StockAccessToken{
			Token:     tokenValue,
			Scope:     req.Scope,
			EntityID:  req.EntityID,
			Operation: req.Operation,
			Quantity:  req.Quantity,
			Items:     req.Items,
			HolderID:  holderID,
			IssuedAt:  issued,
			ExpiresAt: issued.Add(ttl),
		}
		ok, err := s.store.Acquire(ctx, &token, ttl)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire access token")
		}
		if ok {
			if stale := s.track(token, ttl); stale != nil {
				s.lapse(ctx, stale.token)
			}
			s.metrics.RecordAccessToken(string(req.Scope), string(models.TokenGranted))
			s.logger.Info("access token granted",
				zap.String("scope", string(req.Scope)),
				zap.String("entity_id", req.EntityID),
				zap.String("operation", string(req.Operation)),
				zap.Int64("fence", token.Fence),
				zap.Duration("ttl", ttl))
			return &token, nil
		}

		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			s.metrics.RecordAccessToken(string(req.Scope), string(models.TokenDenied))
			return nil, appErrors.Clone(appErrors.ErrTokenUnavailable, fmt.Sprintf("%s %s is locked by another operation", req.Scope, req.EntityID))
		}
		pause := s.waitInterval
		if pause > remaining {
			pause = remaining
		}
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.metrics.RecordAccessToken(string(req.Scope), string(models.TokenDenied))
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrTokenUnavailable.Code, appErrors.ErrTokenUnavailable.Status, "gave up waiting for access token")
		case <-timer.C:
		}
	}
}

// Release ends a token after its operation completed.
func (s *AccessTokenService) Release(ctx context.Context, token, holderID string) error {
	return s.end(ctx, token, holderID, models.TokenReleased)
}

// Cancel ends a token whose operation was abandoned.
func (s *AccessTokenService) Cancel(ctx context.Context, token, holderID string) error {
	return s.end(ctx, token, holderID, models.TokenCancelled)
}

// Validate returns the live token when it covers entityID and operation.
func (s *AccessTokenService) Validate(ctx context.Context, token string, scope models.AccessTokenScope, entityID string, operation models.StockOperation) (*models.StockAccessToken, error) {
	t, err := s.store.Lookup(ctx, token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify access token")
	}
	if t == nil {
		s.settle(ctx, token)
		return nil, appErrors.Clone(appErrors.ErrNotFound, "access token not found or expired")
	}
	if t.Scope != scope || t.EntityID != entityID || t.Operation != operation {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access token does not cover this operation")
	}

	holder, err := s.store.Holder(ctx, t.LeaseKey())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify access token")
	}
	if holder != t.Token {
		s.settle(ctx, token)
		return nil, appErrors.Clone(appErrors.ErrNotFound, "access token not found or expired")
	}
	return t, nil
}

// Held returns the token this instance currently tracks for an entity.
func (s *AccessTokenService) Held(scope models.AccessTokenScope, entityID string) (*models.StockAccessToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byKey[models.LeaseKey(scope, entityID)]
	if !ok {
		return nil, false
	}
	t := entry.token
	return &t, true
}

// Close stops every expiry timer. Leases in the store still expire on their own.
func (s *AccessTokenService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.byKey {
		entry.timer.Stop()
		delete(s.byKey, key)
		delete(s.byToken, entry.token.Token)
	}
}

func (s *AccessTokenService) end(ctx context.Context, token, holderID string, outcome models.TokenOutcome) error {
	t, err := s.store.Lookup(ctx, token)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load access token")
	}
	if t == nil {
		s.settle(ctx, token)
		return appErrors.Clone(appErrors.ErrNotFound, "access token not found or expired")
	}
	if t.HolderID != holderID {
		return appErrors.Clone(appErrors.ErrForbidden, "access token belongs to another user")
	}

	released, err := s.store.Release(ctx, t, outcome)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release access token")
	}
	if !released {
		s.settle(ctx, token)
		return appErrors.Clone(appErrors.ErrNotFound, "access token not found or expired")
	}
	s.forget(token, nil)
	s.record(*t, outcome)
	return nil
}

// track indexes token and arms its expiry timer. It returns the entry previously
// indexed for the same lease, which the store has since handed out again.
func (s *AccessTokenService) track(token models.StockAccessToken, ttl time.Duration) *trackedToken {
	entry := &trackedToken{token: token}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := token.LeaseKey()
	stale, ok := s.byKey[key]
	if ok {
		stale.timer.Stop()
		delete(s.byToken, stale.token.Token)
	}
	entry.timer = time.AfterFunc(ttl, func() {
		ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
		defer cancel()
		if expired, ok := s.forget(token.Token, entry); ok {
			s.lapse(ctx, expired.token)
		}
	})
	s.byKey[key] = entry
	s.byToken[token.Token] = entry
	if !ok {
		return nil
	}
	return stale
}

// forget drops token from the local index. With want set, only that entry is dropped.
func (s *AccessTokenService) forget(token string, want *trackedToken) (*trackedToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byToken[token]
	if !ok || (want != nil && entry != want) {
		return nil, false
	}
	entry.timer.Stop()
	delete(s.byToken, token)
	if s.byKey[entry.token.LeaseKey()] == entry {
		delete(s.byKey, entry.token.LeaseKey())
	}
	return entry, true
}

// settle drops a token the store no longer holds from the local index.
func (s *AccessTokenService) settle(ctx context.Context, token string) {
	if entry, ok := s.forget(token, nil); ok {
		s.lapse(ctx, entry.token)
	}
}

// lapse records an expiry unless another instance released or cancelled the token,
// in which case that instance already recorded the outcome.
func (s *AccessTokenService) lapse(ctx context.Context, t models.StockAccessToken) {
	outcome, err := s.store.Outcome(ctx, t.Token)
	if err != nil {
		s.logger.Warn("read access token outcome", zap.String("entity_id", t.EntityID), zap.Error(err))
	}
	if outcome != "" {
		return
	}
	s.record(t, models.TokenExpired)
}

func (s *AccessTokenService) record(t models.StockAccessToken, outcome models.TokenOutcome) {
	s.metrics.RecordAccessToken(string(t.Scope), string(outcome))
	s.logger.Info("access token ended",
		zap.String("scope", string(t.Scope)),
		zap.String("entity_id", t.EntityID),
		zap.String("outcome", string(outcome)))
}

// capMillis converts ms to a duration no longer than limit without overflowing.
func capMillis(ms int, limit time.Duration) time.Duration {
	if int64(ms) >= limit.Milliseconds() {
		return limit
	}
	return time.Duration(ms) * time.Millisecond
}
