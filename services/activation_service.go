package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/anjiri1684/tutor_gateway/models"
	"github.com/anjiri1684/tutor_gateway/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ActivationAPI is the slice of the marketplace client the engine needs.
type ActivationAPI interface {
	CheckActivation(ctx context.Context, accessToken string) (map[string]interface{}, error)
	Activate(ctx context.Context, accessToken string) (map[string]interface{}, error)
}

const (
	activationKeyPrefix  = "activation:check:"
	defaultActivationTTL = 15 * time.Minute
)

// ActivationService derives the onboarding state for a teacher session. Reads
// hit the in-memory snapshot, then redis, then the upstream; all concurrent
// fetches for one session collapse into a single upstream call and every
// waiter gets the same result. Fetch failures leave the previous cached value
// in place.
type ActivationService struct {
	api   ActivationAPI
	cache storage.Cache
	log   *logrus.Logger

	group singleflight.Group

	mu       sync.RWMutex
	statuses map[string]models.ActivationStatus

	ttl time.Duration
}

func NewActivationService(api ActivationAPI, cache storage.Cache, log *logrus.Logger) *ActivationService {
	return &ActivationService{
		api:      api,
		cache:    cache,
		log:      log,
		statuses: make(map[string]models.ActivationStatus),
		ttl:      defaultActivationTTL,
	}
}

func activationKey(sessionToken string) string {
	return activationKeyPrefix + sessionToken
}

// Check returns the activation status for the session. force bypasses both
// cache layers and replaces them on success.
func (s *ActivationService) Check(ctx context.Context, session *models.Session, force bool) (models.ActivationStatus, error) {
	if !force {
		s.mu.RLock()
		status, ok := s.statuses[session.Token]
		s.mu.RUnlock()
		if ok {
			return status, nil
		}

		if cached, err := s.cache.Get(ctx, activationKey(session.Token)); err == nil {
			var status models.ActivationStatus
			if err := json.Unmarshal([]byte(cached), &status); err == nil {
				s.mu.Lock()
				s.statuses[session.Token] = status
				s.mu.Unlock()
				return status, nil
			}
		}
	}

	result, err, _ := s.group.Do(session.Token, func() (interface{}, error) {
		raw, err := s.api.CheckActivation(ctx, session.AccessToken)
		if err != nil {
			return nil, err
		}

		status := models.NormalizeActivation(raw)
		status.CheckedAt = time.Now()
		s.store(ctx, session.Token, status)
		return status, nil
	})
	if err != nil {
		s.log.WithError(err).Warn("activation check failed")
		return models.ActivationStatus{}, err
	}
	return result.(models.ActivationStatus), nil
}

// Activate submits the final onboarding step and re-derives state with a
// forced check so the cache can never report a stale inactive status.
func (s *ActivationService) Activate(ctx context.Context, session *models.Session) (models.ActivationStatus, error) {
	raw, err := s.api.Activate(ctx, session.AccessToken)
	if err != nil {
		return models.ActivationStatus{}, err
	}

	status := models.NormalizeActivation(raw)
	status.CheckedAt = time.Now()
	s.store(ctx, session.Token, status)

	if !status.IsActive {
		return s.Check(ctx, session, true)
	}
	return status, nil
}

func (s *ActivationService) NextRoute(ctx context.Context, session *models.Session) (string, error) {
	status, err := s.Check(ctx, session, false)
	if err != nil {
		return "", err
	}
	return status.NextRoute(), nil
}

// Invalidate drops both cache layers, used on logout and after a step
// completes elsewhere.
func (s *ActivationService) Invalidate(ctx context.Context, sessionToken string) {
	s.mu.Lock()
	delete(s.statuses, sessionToken)
	s.mu.Unlock()
	if err := s.cache.Del(ctx, activationKey(sessionToken)); err != nil {
		s.log.WithError(err).Warn("failed to drop activation cache key")
	}
}

func (s *ActivationService) store(ctx context.Context, sessionToken string, status models.ActivationStatus) {
	s.mu.Lock()
	s.statuses[sessionToken] = status
	s.mu.Unlock()

	encoded, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, activationKey(sessionToken), string(encoded), s.ttl); err != nil {
		s.log.WithError(err).Warn("failed to cache activation status")
	}
}
