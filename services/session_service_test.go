package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/tutor_gateway/models"
	"github.com/anjiri1684/tutor_gateway/repository"
	"github.com/anjiri1684/tutor_gateway/upstream"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSessionRepo stores full copies so a partial write would be visible.
type memSessionRepo struct {
	mu      sync.Mutex
	byToken map[string]models.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byToken: make(map[string]models.Session)}
}

func (r *memSessionRepo) Create(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byToken[session.Token] = *session
	return nil
}

func (r *memSessionRepo) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.byToken[token]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &session, nil
}

func (r *memSessionRepo) Replace(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byToken[session.Token] = *session
	return nil
}

func (r *memSessionRepo) DeleteByToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byToken, token)
	return nil
}

func (r *memSessionRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged int64
	for token, session := range r.byToken {
		if session.Expired(now) {
			delete(r.byToken, token)
			purged++
		}
	}
	return purged, nil
}

func (r *memSessionRepo) row(token string) models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byToken[token]
}

type fakeAuthAPI struct {
	mu             sync.Mutex
	loginPayload   *upstream.TokenPayload
	refreshPayload *upstream.TokenPayload
	refreshErr     error
	refreshCalls   int
	gate           chan struct{}
}

func (f *fakeAuthAPI) Login(ctx context.Context, email, password string) (*upstream.TokenPayload, error) {
	if f.loginPayload == nil {
		return nil, upstream.ErrUnauthorized
	}
	payload := *f.loginPayload
	return &payload, nil
}

func (f *fakeAuthAPI) RefreshToken(ctx context.Context, refreshToken string) (*upstream.TokenPayload, error) {
	f.mu.Lock()
	f.refreshCalls++
	gate, err := f.gate, f.refreshErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	payload := *f.refreshPayload
	return &payload, nil
}

func (f *fakeAuthAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func payloadFixture() *upstream.TokenPayload {
	return &upstream.TokenPayload{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Email:        "teacher@example.com",
		FirstName:    "Ada",
		LastName:     "Mwangi",
		Role:         models.RoleTeacher,
		Status:       models.StatusPending,
	}
}

func TestLoginCreatesSession(t *testing.T) {
	repo := newMemSessionRepo()
	api := &fakeAuthAPI{loginPayload: payloadFixture()}
	svc := NewSessionService(repo, api, testLogger())

	session, err := svc.Login(context.Background(), "teacher@example.com", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, models.RoleTeacher, session.Role)
	assert.Equal(t, models.StatusPending, session.Status)

	stored := repo.row(session.Token)
	assert.Equal(t, "access-1", stored.AccessToken)
}

func TestLoginBackfillsRoleFromClaims(t *testing.T) {
	payload := payloadFixture()
	payload.Role = ""
	payload.Status = ""
	payload.AccessToken = signedToken(t, jwt.MapClaims{
		"role":          models.RoleTeacher,
		"status":        models.StatusActive,
		"preference_id": float64(7),
	})

	svc := NewSessionService(newMemSessionRepo(), &fakeAuthAPI{loginPayload: payload}, testLogger())

	session, err := svc.Login(context.Background(), "teacher@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, session.Role)
	assert.Equal(t, models.StatusActive, session.Status)
	require.NotNil(t, session.PreferenceID)
	assert.Equal(t, 7, *session.PreferenceID)
}

func TestRefreshSkippedWhenPreferencePresent(t *testing.T) {
	repo := newMemSessionRepo()
	api := &fakeAuthAPI{refreshPayload: payloadFixture()}
	svc := NewSessionService(repo, api, testLogger())

	pref := 3
	session := &models.Session{
		Token:        "tok-a",
		AccessToken:  "access-0",
		RefreshToken: "refresh-0",
		Email:        "teacher@example.com",
		PreferenceID: &pref,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), session))

	refreshed, err := svc.RefreshIfNeeded(context.Background(), "tok-a")
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, 0, api.calls())
}

func TestRefreshSkippedWithoutRefreshToken(t *testing.T) {
	repo := newMemSessionRepo()
	api := &fakeAuthAPI{refreshPayload: payloadFixture()}
	svc := NewSessionService(repo, api, testLogger())

	session := &models.Session{
		Token:       "tok-b",
		AccessToken: "access-0",
		Email:       "teacher@example.com",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), session))

	refreshed, err := svc.RefreshIfNeeded(context.Background(), "tok-b")
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, 0, api.calls())
}

func TestRefreshReplacesEveryField(t *testing.T) {
	repo := newMemSessionRepo()
	pref := 9
	fresh := payloadFixture()
	fresh.AccessToken = "access-2"
	fresh.RefreshToken = "refresh-2"
	fresh.Status = models.StatusActive
	fresh.PreferenceID = &pref
	api := &fakeAuthAPI{refreshPayload: fresh}
	svc := NewSessionService(repo, api, testLogger())

	session := &models.Session{
		Token:        "tok-c",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Email:        "teacher@example.com",
		Role:         models.RoleTeacher,
		Status:       models.StatusPending,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), session))

	refreshed, err := svc.RefreshIfNeeded(context.Background(), "tok-c")
	require.NoError(t, err)
	assert.True(t, refreshed)

	stored := repo.row("tok-c")
	assert.Equal(t, "access-2", stored.AccessToken)
	assert.Equal(t, "refresh-2", stored.RefreshToken)
	assert.Equal(t, models.StatusActive, stored.Status)
	require.NotNil(t, stored.PreferenceID)
	assert.Equal(t, 9, *stored.PreferenceID)

	// the read replica was swapped in the same step
	snapshot, err := svc.Get(context.Background(), "tok-c")
	require.NoError(t, err)
	assert.Equal(t, "access-2", snapshot.AccessToken)
}

func TestRefreshAtomicOnIncompletePayload(t *testing.T) {
	repo := newMemSessionRepo()
	incomplete := payloadFixture()
	incomplete.RefreshToken = ""
	api := &fakeAuthAPI{refreshPayload: incomplete}
	svc := NewSessionService(repo, api, testLogger())

	session := &models.Session{
		Token:        "tok-d",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Email:        "teacher@example.com",
		Role:         models.RoleTeacher,
		Status:       models.StatusPending,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), session))
	before := repo.row("tok-d")

	refreshed, err := svc.RefreshIfNeeded(context.Background(), "tok-d")
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream.ErrBadPayload)
	assert.False(t, refreshed)

	after := repo.row("tok-d")
	assert.Equal(t, before, after, "a rejected payload must not touch any persisted field")
}

func TestRefreshFailureKeepsCredentials(t *testing.T) {
	repo := newMemSessionRepo()
	api := &fakeAuthAPI{refreshErr: errors.New("gateway timeout")}
	svc := NewSessionService(repo, api, testLogger())

	session := &models.Session{
		Token:        "tok-e",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Email:        "teacher@example.com",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), session))

	_, err := svc.RefreshIfNeeded(context.Background(), "tok-e")
	require.Error(t, err)

	stored := repo.row("tok-e")
	assert.Equal(t, "access-1", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
}

func TestRefreshCoalescesConcurrentCallers(t *testing.T) {
	repo := newMemSessionRepo()
	pref := 2
	fresh := payloadFixture()
	fresh.PreferenceID = &pref
	gate := make(chan struct{})
	api := &fakeAuthAPI{refreshPayload: fresh, gate: gate}
	svc := NewSessionService(repo, api, testLogger())

	session := &models.Session{
		Token:        "tok-f",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Email:        "teacher@example.com",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), session))

	var wg sync.WaitGroup
	results := make([]bool, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.RefreshIfNeeded(context.Background(), "tok-f")
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, results[0])
	assert.True(t, results[1])
	assert.Equal(t, 1, api.calls(), "simultaneous refreshes must share one upstream call")
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := newMemSessionRepo()
	api := &fakeAuthAPI{loginPayload: payloadFixture()}
	svc := NewSessionService(repo, api, testLogger())

	session, err := svc.Login(context.Background(), "teacher@example.com", "secret")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), session.Token))

	_, err = svc.Get(context.Background(), session.Token)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestPurgeExpiredDropsSnapshots(t *testing.T) {
	repo := newMemSessionRepo()
	svc := NewSessionService(repo, &fakeAuthAPI{}, testLogger())

	session := &models.Session{
		Token:        "tok-old",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Email:        "teacher@example.com",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), session))

	// warm the replica, then expire the session behind it
	_, err := svc.Get(context.Background(), "tok-old")
	require.NoError(t, err)
	session.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Replace(context.Background(), session))
	svc.mu.Lock()
	svc.snapshots["tok-old"].ExpiresAt = session.ExpiresAt
	svc.mu.Unlock()

	purged, err := svc.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = svc.Get(context.Background(), "tok-old")
	require.Error(t, err)
}
