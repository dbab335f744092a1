package session

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/entitykeeper/internal/client/models"
	"github.com/dmitrijs2005/entitykeeper/internal/client/storage"
	"github.com/dmitrijs2005/entitykeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	mu sync.Mutex

	signInResp *models.SignInResponse
	signInErr  error

	refreshResp *models.RefreshResponse
	refreshErr  error

	lastUsername, lastPassword string
	lastRefreshToken           string
}

func (f *fakeAuth) SignIn(ctx context.Context, username, password string) (*models.SignInResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUsername, f.lastPassword = username, password
	return f.signInResp, f.signInErr
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*models.RefreshResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRefreshToken = refreshToken
	return f.refreshResp, f.refreshErr
}

func adminResponse(token string) *models.SignInResponse {
	return &models.SignInResponse{
		ID:           1,
		Username:     "admin",
		FirstName:    "Admin",
		LastName:     "User",
		Email:        "admin@example.com",
		Roles:        []string{common.RoleAdmin},
		AccessToken:  token,
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
	}
}

func openDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.db")
	db, err := storage.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

func jwtWithExpiry(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func countNotifications(s *Store) *atomic.Int32 {
	var n atomic.Int32
	s.Subscribe(func() { n.Add(1) })
	return &n
}

func TestSignIn_PersistsSessionAndNotifies(t *testing.T) {
	db, _ := openDB(t)
	auth := &fakeAuth{signInResp: adminResponse("abc")}
	s := NewStore(db, auth)
	notified := countNotifications(s)
	ctx := context.Background()

	sess, err := s.SignIn(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "admin", auth.lastUsername)
	assert.Equal(t, "admin123", auth.lastPassword)

	assert.True(t, s.IsAuthenticated(ctx))
	assert.Equal(t, []string{common.RoleAdmin}, s.Roles(ctx))
	assert.Equal(t, "abc", s.AccessToken(ctx))

	cur := s.CurrentUser(ctx)
	require.NotNil(t, cur)
	assert.Equal(t, *sess, *cur)
	assert.Equal(t, "admin@example.com", cur.Email)
	assert.Equal(t, int32(1), notified.Load())
}

func TestSignIn_InvalidCredentialsKeepsExistingSession(t *testing.T) {
	db, _ := openDB(t)
	auth := &fakeAuth{signInResp: adminResponse("abc")}
	s := NewStore(db, auth)
	ctx := context.Background()

	_, err := s.SignIn(ctx, "admin", "admin123")
	require.NoError(t, err)
	notified := countNotifications(s)

	auth.signInResp, auth.signInErr = nil, common.ErrInvalidCredentials
	_, err = s.SignIn(ctx, "admin", "wrong")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)

	assert.True(t, s.IsAuthenticated(ctx))
	assert.Equal(t, "abc", s.AccessToken(ctx))
	assert.Zero(t, notified.Load())
}

func TestSignIn_MalformedResponseIsUnavailable(t *testing.T) {
	db, _ := openDB(t)
	resp := adminResponse("")
	s := NewStore(db, &fakeAuth{signInResp: resp})
	ctx := context.Background()

	_, err := s.SignIn(ctx, "admin", "admin123")
	require.ErrorIs(t, err, common.ErrUnavailable)
	require.ErrorIs(t, err, common.ErrMalformedResponse)
	assert.False(t, s.IsAuthenticated(ctx))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM metadata`).Scan(&n))
	assert.Zero(t, n, "nothing may be persisted")
}

func TestSignOut_IsIdempotent(t *testing.T) {
	db, _ := openDB(t)
	s := NewStore(db, &fakeAuth{signInResp: adminResponse("abc")})
	ctx := context.Background()

	_, err := s.SignIn(ctx, "admin", "admin123")
	require.NoError(t, err)
	notified := countNotifications(s)

	require.NoError(t, s.SignOut(ctx))
	assert.False(t, s.IsAuthenticated(ctx))
	assert.Nil(t, s.CurrentUser(ctx))
	assert.Empty(t, s.Roles(ctx))
	assert.NotNil(t, s.Roles(ctx))
	assert.Equal(t, "", s.AccessToken(ctx))

	require.NoError(t, s.SignOut(ctx))
	assert.False(t, s.IsAuthenticated(ctx))
	assert.Equal(t, int32(1), notified.Load())
}

func TestStore_SurvivesReload(t *testing.T) {
	db, path := openDB(t)
	ctx := context.Background()
	s := NewStore(db, &fakeAuth{signInResp: adminResponse("abc")})
	_, err := s.SignIn(ctx, "admin", "admin123")
	require.NoError(t, err)
	before := s.CurrentUser(ctx)
	require.NoError(t, db.Close())

	db2, err := storage.Open(ctx, path)
	require.NoError(t, err)
	defer db2.Close()

	reloaded := NewStore(db2, &fakeAuth{})
	assert.Equal(t, before, reloaded.CurrentUser(ctx))
	assert.Equal(t, []string{common.RoleAdmin}, reloaded.Roles(ctx))
}

func TestCorruptStoredProfile_ReadsAsLoggedOut(t *testing.T) {
	db, _ := openDB(t)
	s := NewStore(db, &fakeAuth{signInResp: adminResponse("abc")})
	ctx := context.Background()

	_, err := s.SignIn(ctx, "admin", "admin123")
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE metadata SET value = '{not json' WHERE key = ?`, KeyUser)
	require.NoError(t, err)

	assert.Nil(t, s.CurrentUser(ctx))
	assert.False(t, s.IsAuthenticated(ctx))
	assert.Empty(t, s.Roles(ctx))
	assert.Equal(t, "", s.AccessToken(ctx))
}

func TestCorruptStoredTokens_ReadsAsLoggedOut(t *testing.T) {
	db, _ := openDB(t)
	s := NewStore(db, &fakeAuth{signInResp: adminResponse("abc")})
	ctx := context.Background()

	_, err := s.SignIn(ctx, "admin", "admin123")
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE metadata SET value = '{"accessToken":""}' WHERE key = ?`, KeyTokens)
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated(ctx))

	_, err = db.Exec(`DELETE FROM metadata WHERE key = ?`, KeyTokens)
	require.NoError(t, err)
	assert.Nil(t, s.CurrentUser(ctx), "profile without token is not a session")
}

func TestPolicyExpiry_ExpiredTokenEndsSession(t *testing.T) {
	db, _ := openDB(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	token := jwtWithExpiry(t, now.Add(-time.Minute))
	s := NewStore(db, &fakeAuth{signInResp: adminResponse(token)}, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := s.SignIn(ctx, "admin", "admin123")
	require.NoError(t, err)
	notified := countNotifications(s)

	assert.False(t, s.IsAuthenticated(ctx))
	assert.Equal(t, int32(1), notified.Load())

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM metadata WHERE key IN (?, ?)`, KeyUser, KeyTokens).Scan(&n))
	assert.Zero(t, n)
}

func TestPolicyExpiry_ValidAndOpaqueTokens(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := WithClock(func() time.Time { return now })

	cases := map[string]struct {
		token string
		opts  []Option
		want  bool
	}{
		"future exp":         {token: jwtWithExpiry(t, now.Add(time.Hour)), want: true},
		"opaque token":       {token: "abc", want: true},
		"past exp":           {token: jwtWithExpiry(t, now.Add(-time.Second)), want: false},
		"past exp in leeway": {token: jwtWithExpiry(t, now.Add(-time.Second)), opts: []Option{WithLeeway(time.Minute)}, want: true},
		"presence policy":    {token: jwtWithExpiry(t, now.Add(-time.Hour)), opts: []Option{WithPolicy(PolicyPresence)}, want: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db, _ := openDB(t)
			opts := append([]Option{clock}, tc.opts...)
			s := NewStore(db, &fakeAuth{signInResp: adminResponse(tc.token)}, opts...)
			ctx := context.Background()

			_, err := s.SignIn(ctx, "admin", "admin123")
			require.NoError(t, err)
			assert.Equal(t, tc.want, s.IsAuthenticated(ctx))
			assert.Equal(t, tc.want, s.AccessToken(ctx) != "")
		})
	}
}

func TestInvalidate_ConcurrentCallsRemoveOnce(t *testing.T) {
	db, _ := openDB(t)
	s := NewStore(db, &fakeAuth{signInResp: adminResponse("abc")})
	ctx := context.Background()
	_, err := s.SignIn(ctx, "admin", "admin123")
	require.NoError(t, err)
	notified := countNotifications(s)

	var (
		wg      sync.WaitGroup
		removed atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Invalidate(ctx)
			assert.NoError(t, err)
			if ok {
				removed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), removed.Load())
	assert.Equal(t, int32(1), notified.Load())
	assert.False(t, s.IsAuthenticated(ctx))
}

func TestRefresh_ReplacesTokensOnly(t *testing.T) {
	db, _ := openDB(t)
	auth := &fakeAuth{
		signInResp:  adminResponse("abc"),
		refreshResp: &models.RefreshResponse{AccessToken: "def"},
	}
	s := NewStore(db, auth)
	ctx := context.Background()
	_, err := s.SignIn(ctx, "admin", "admin123")
	require.NoError(t, err)
	before := s.CurrentUser(ctx)

	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, "refresh-1", auth.lastRefreshToken)

	after := s.CurrentUser(ctx)
	require.NotNil(t, after)
	assert.Equal(t, before.User, after.User)
	assert.Equal(t, "def", after.AccessToken)
	assert.Equal(t, "refresh-1", after.RefreshToken, "unrotated refresh token is kept")
	assert.Equal(t, "Bearer", after.TokenType)

	auth.refreshResp = &models.RefreshResponse{AccessToken: "ghi", RefreshToken: "refresh-2"}
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, "refresh-2", s.CurrentUser(ctx).RefreshToken)
}

func TestRefresh_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("logged out", func(t *testing.T) {
		db, _ := openDB(t)
		s := NewStore(db, &fakeAuth{})
		require.ErrorIs(t, s.Refresh(ctx), common.ErrNotAuthenticated)
	})

	t.Run("no refresh token", func(t *testing.T) {
		db, _ := openDB(t)
		resp := adminResponse("abc")
		resp.RefreshToken = ""
		s := NewStore(db, &fakeAuth{signInResp: resp})
		_, err := s.SignIn(ctx, "admin", "admin123")
		require.NoError(t, err)
		require.ErrorIs(t, s.Refresh(ctx), common.ErrNoRefreshToken)
		assert.True(t, s.IsAuthenticated(ctx))
	})

	t.Run("rejected", func(t *testing.T) {
		db, _ := openDB(t)
		s := NewStore(db, &fakeAuth{signInResp: adminResponse("abc"), refreshErr: common.ErrInvalidCredentials})
		_, err := s.SignIn(ctx, "admin", "admin123")
		require.NoError(t, err)

		err = s.Refresh(ctx)
		require.ErrorIs(t, err, common.ErrSessionExpired)
		assert.False(t, s.IsAuthenticated(ctx))
	})

	t.Run("unreachable", func(t *testing.T) {
		db, _ := openDB(t)
		s := NewStore(db, &fakeAuth{signInResp: adminResponse("abc"), refreshErr: common.ErrUnavailable})
		_, err := s.SignIn(ctx, "admin", "admin123")
		require.NoError(t, err)

		require.ErrorIs(t, s.Refresh(ctx), common.ErrUnavailable)
		assert.True(t, s.IsAuthenticated(ctx))
	})

	t.Run("empty token", func(t *testing.T) {
		db, _ := openDB(t)
		s := NewStore(db, &fakeAuth{signInResp: adminResponse("abc"), refreshResp: &models.RefreshResponse{}})
		_, err := s.SignIn(ctx, "admin", "admin123")
		require.NoError(t, err)

		err = s.Refresh(ctx)
		require.ErrorIs(t, err, common.ErrMalformedResponse)
		assert.Equal(t, "abc", s.AccessToken(ctx))
	})
}

func TestUpdateProfile(t *testing.T) {
	db, _ := openDB(t)
	s := NewStore(db, &fakeAuth{signInResp: adminResponse("abc")})
	ctx := context.Background()

	require.ErrorIs(t, s.UpdateProfile(ctx, "A", "B", "a@b.io"), common.ErrNotAuthenticated)

	_, err := s.SignIn(ctx, "admin", "admin123")
	require.NoError(t, err)
	notified := countNotifications(s)

	require.NoError(t, s.UpdateProfile(ctx, "Ada", "Lovelace", "ada@example.com"))

	cur := s.CurrentUser(ctx)
	require.NotNil(t, cur)
	assert.Equal(t, "Ada", cur.FirstName)
	assert.Equal(t, "Lovelace", cur.LastName)
	assert.Equal(t, "ada@example.com", cur.Email)
	assert.Equal(t, "admin", cur.Username)
	assert.Equal(t, int64(1), cur.ID)
	assert.Equal(t, []string{common.RoleAdmin}, cur.Roles)
	assert.Equal(t, "abc", cur.AccessToken)
	assert.Equal(t, int32(1), notified.Load())
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	db, _ := openDB(t)
	s := NewStore(db, &fakeAuth{signInResp: adminResponse("abc")})
	ctx := context.Background()

	var calls []string
	unsubA := s.Subscribe(func() { calls = append(calls, "a") })
	s.Subscribe(func() { calls = append(calls, "b") })

	_, err := s.SignIn(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, calls)

	unsubA()
	unsubA()
	require.NoError(t, s.SignOut(ctx))
	assert.Equal(t, []string{"a", "b", "b"}, calls)
}

func TestSubscriber_SeesStateAlreadyChanged(t *testing.T) {
	db, _ := openDB(t)
	s := NewStore(db, &fakeAuth{signInResp: adminResponse("abc")})
	ctx := context.Background()

	var seen []bool
	s.Subscribe(func() { seen = append(seen, s.IsAuthenticated(ctx)) })

	_, err := s.SignIn(ctx, "admin", "admin123")
	require.NoError(t, err)
	require.NoError(t, s.SignOut(ctx))

	assert.Equal(t, []bool{true, false}, seen)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyExpiry, p)

	p, err = ParsePolicy("Presence")
	require.NoError(t, err)
	assert.Equal(t, PolicyPresence, p)
	assert.Equal(t, "presence", p.String())

	_, err = ParsePolicy("never")
	require.Error(t, err)
}

func TestSignIn_StorageFailureIsReported(t *testing.T) {
	db, _ := openDB(t)
	s := NewStore(db, &fakeAuth{signInResp: adminResponse("abc")})
	require.NoError(t, db.Close())

	_, err := s.SignIn(context.Background(), "admin", "admin123")
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrInvalidCredentials))
	assert.Contains(t, err.Error(), "persist session")
}
