package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anjiri1684/tutor_gateway/models"
	"github.com/anjiri1684/tutor_gateway/repository"
	"github.com/anjiri1684/tutor_gateway/upstream"
	"github.com/anjiri1684/tutor_gateway/utils"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// AuthAPI is the slice of the marketplace client the session service needs.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*upstream.TokenPayload, error)
	RefreshToken(ctx context.Context, refreshToken string) (*upstream.TokenPayload, error)
}

var ErrSessionExpired = errors.New("session expired")

const defaultSessionTTL = 72 * time.Hour

// SessionService owns the token store. The repository row is the single
// source of truth; snapshots is a read replica replaced wholesale whenever a
// row mutates. All refresh traffic for one session is coalesced so several
// simultaneous 401-driven callers share one upstream call.
type SessionService struct {
	repo repository.SessionRepository
	api  AuthAPI
	log  *logrus.Logger

	mu        sync.RWMutex
	snapshots map[string]*models.Session

	group singleflight.Group
	ttl   time.Duration
}

func NewSessionService(repo repository.SessionRepository, api AuthAPI, log *logrus.Logger) *SessionService {
	return &SessionService{
		repo:      repo,
		api:       api,
		log:       log,
		snapshots: make(map[string]*models.Session),
		ttl:       defaultSessionTTL,
	}
}

func (s *SessionService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	payload, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := validateTokenPayload(payload); err != nil {
		return nil, err
	}

	token, err := utils.GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	session := sessionFromPayload(payload)
	session.Token = token
	session.ExpiresAt = time.Now().Add(s.ttl)

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.snapshots[token] = session
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"email": session.Email, "role": session.Role}).Info("session created")
	return session, nil
}

// Get resolves a gateway token to its session, serving the in-memory replica
// when present.
func (s *SessionService) Get(ctx context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	snapshot, ok := s.snapshots[token]
	s.mu.RUnlock()
	if ok {
		if snapshot.Expired(time.Now()) {
			return nil, ErrSessionExpired
		}
		return snapshot, nil
	}

	session, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Expired(time.Now()) {
		return nil, ErrSessionExpired
	}

	s.mu.Lock()
	s.snapshots[token] = session
	s.mu.Unlock()
	return session, nil
}

func (s *SessionService) GetAccessToken(ctx context.Context, token string) string {
	session, err := s.Get(ctx, token)
	if err != nil {
		return ""
	}
	return session.AccessToken
}

// RefreshIfNeeded refreshes the upstream tokens only when the session has no
// preference id yet and a refresh token exists; anything else is a no-op. The
// new field values are staged from the validated response and committed in a
// single row write, so a bad response leaves every field as it was. Callers
// that race on the same session share one flight.
func (s *SessionService) RefreshIfNeeded(ctx context.Context, token string) (bool, error) {
	session, err := s.Get(ctx, token)
	if err != nil {
		return false, err
	}
	if session.PreferenceID != nil || session.RefreshToken == "" {
		return false, nil
	}

	result, err, _ := s.group.Do("refresh:"+token, func() (interface{}, error) {
		current, err := s.repo.FindByToken(ctx, token)
		if err != nil {
			return false, err
		}
		// a flight that just finished may already have filled this in
		if current.PreferenceID != nil {
			return false, nil
		}

		payload, err := s.api.RefreshToken(ctx, current.RefreshToken)
		if err != nil {
			return false, err
		}
		if err := validateTokenPayload(payload); err != nil {
			return false, err
		}

		staged := *current
		applyPayload(&staged, payload)

		if err := s.repo.Replace(ctx, &staged); err != nil {
			return false, err
		}

		s.mu.Lock()
		s.snapshots[token] = &staged
		s.mu.Unlock()

		s.log.WithField("email", staged.Email).Info("session tokens refreshed")
		return true, nil
	})
	if err != nil {
		s.log.WithError(err).Warn("token refresh failed, keeping existing session")
		return false, err
	}
	return result.(bool), nil
}

func (s *SessionService) Logout(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.snapshots, token)
	s.mu.Unlock()
	return s.repo.DeleteByToken(ctx, token)
}

func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	now := time.Now()
	s.mu.Lock()
	for token, session := range s.snapshots {
		if session.Expired(now) {
			delete(s.snapshots, token)
		}
	}
	s.mu.Unlock()
	return s.repo.PurgeExpired(ctx, now)
}

func validateTokenPayload(payload *upstream.TokenPayload) error {
	if payload.AccessToken == "" || payload.RefreshToken == "" || payload.Email == "" {
		return fmt.Errorf("%w: token payload missing required fields", upstream.ErrBadPayload)
	}
	return nil
}

func sessionFromPayload(payload *upstream.TokenPayload) *models.Session {
	session := &models.Session{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		Email:        payload.Email,
		FirstName:    payload.FirstName,
		LastName:     payload.LastName,
		Role:         payload.Role,
		Status:       payload.Status,
		PreferenceID: payload.PreferenceID,
	}
	fillFromClaims(session)
	return session
}

// applyPayload overwrites every claim-bearing field from a validated refresh
// response. Identity fields stay: only what the upstream reissues changes.
func applyPayload(session *models.Session, payload *upstream.TokenPayload) {
	session.AccessToken = payload.AccessToken
	session.RefreshToken = payload.RefreshToken
	session.Email = payload.Email
	session.FirstName = payload.FirstName
	session.LastName = payload.LastName
	session.Role = payload.Role
	session.Status = payload.Status
	session.PreferenceID = payload.PreferenceID
	fillFromClaims(session)
}

// fillFromClaims backfills role/status/preference from the JWT claims when
// the response body omitted them. The token is decoded, not verified: the
// upstream signed it and the gateway never grants anything based on it alone.
func fillFromClaims(session *models.Session) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(session.AccessToken, claims); err != nil {
		claims = jwt.MapClaims{}
	}
	if session.Role == "" {
		if role, ok := claims["role"].(string); ok {
			session.Role = role
		}
	}
	if session.Status == "" {
		if status, ok := claims["status"].(string); ok {
			session.Status = status
		}
	}
	if session.Status == "" {
		session.Status = models.StatusUnknown
	}
	if session.PreferenceID == nil {
		if pref, ok := claims["preference_id"].(float64); ok {
			id := int(pref)
			session.PreferenceID = &id
		}
	}
}
