// Package session holds the durable record of who is signed in.
//
// A Store is the only writer of the session entries in the local database.
// Everything else (the HTTP gateway, the route guard, the CLI) reads through
// its accessors, which always go to storage so a sign-out is visible to the
// very next read. Corrupt or missing entries read as logged out.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/entitykeeper/internal/client/models"
	"github.com/dmitrijs2005/entitykeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/entitykeeper/internal/common"
	"github.com/dmitrijs2005/entitykeeper/internal/dbx"
	"github.com/dmitrijs2005/entitykeeper/internal/logging"
)

// Storage keys.
const (
	KeyUser       = "auth_user"
	KeyTokens     = "auth_tokens"
	KeyGeneration = "auth_generation"
)

// Authenticator talks to the authentication endpoints.
type Authenticator interface {
	SignIn(ctx context.Context, username, password string) (*models.SignInResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.RefreshResponse, error)
}

type Option func(*Store)

func WithPolicy(p Policy) Option { return func(s *Store) { s.policy = p } }

// WithLeeway extends token lifetime to absorb clock skew.
func WithLeeway(d time.Duration) Option { return func(s *Store) { s.leeway = d } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithLogger(l logging.Logger) Option { return func(s *Store) { s.log = l } }

type subscriber struct {
	fn func()
}

type Store struct {
	db     *sql.DB
	repo   *metadata.SQLiteRepository
	auth   Authenticator
	policy Policy
	leeway time.Duration
	now    func() time.Time
	log    logging.Logger

	// mu serializes writers. generation is the last value this store wrote
	// or observed and is guarded by mu.
	mu         sync.Mutex
	generation int64

	subsMu sync.Mutex
	subs   []*subscriber
}

// NewStore creates a store over a migrated database.
func NewStore(db *sql.DB, auth Authenticator, opts ...Option) *Store {
	s := &Store{
		db:     db,
		repo:   metadata.NewSQLiteRepository(db),
		auth:   auth,
		policy: PolicyExpiry,
		now:    time.Now,
		log:    logging.Discard(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SignIn authenticates against the server and persists the returned profile
// and tokens together. Stored state is left untouched on any failure.
func (s *Store) SignIn(ctx context.Context, username, password string) (*models.Session, error) {
	resp, err := s.auth.SignIn(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}

	sess := resp.Session()
	user, err := json.Marshal(sess.User)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	tokens, err := json.Marshal(sess.Tokens)
	if err != nil {
		return nil, fmt.Errorf("encode tokens: %w", err)
	}

	s.mu.Lock()
	_, err = s.commit(ctx, func(ctx context.Context, repo *metadata.SQLiteRepository) (bool, error) {
		if err := repo.Set(ctx, KeyUser, user); err != nil {
			return false, err
		}
		if err := repo.Set(ctx, KeyTokens, tokens); err != nil {
			return false, err
		}
		return true, nil
	})
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	s.log.Info(ctx, "signed in", "username", sess.Username, "roles", sess.Roles)
	s.notify()
	return sess, nil
}

// SignOut removes the stored session. Signing out while logged out changes
// nothing and notifies nobody.
func (s *Store) SignOut(ctx context.Context) error {
	_, err := s.Invalidate(ctx)
	return err
}

// Invalidate is SignOut that also reports whether a session was removed.
// Of several concurrent calls at most one reports true.
func (s *Store) Invalidate(ctx context.Context) (bool, error) {
	s.mu.Lock()
	removed, err := s.commit(ctx, func(ctx context.Context, repo *metadata.SQLiteRepository) (bool, error) {
		n, err := repo.Delete(ctx, KeyUser, KeyTokens)
		return n > 0, err
	})
	s.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("sign out: %w", err)
	}

	if removed {
		s.log.Info(ctx, "signed out")
		s.notify()
	}
	return removed, nil
}

// CurrentUser returns the stored session, or nil when logged out.
func (s *Store) CurrentUser(ctx context.Context) *models.Session {
	return s.load(ctx)
}

func (s *Store) IsAuthenticated(ctx context.Context) bool {
	return s.load(ctx) != nil
}

// Roles returns a copy of the session roles; empty when logged out.
func (s *Store) Roles(ctx context.Context) []string {
	sess := s.load(ctx)
	if sess == nil {
		return []string{}
	}
	return slices.Clone(sess.Roles)
}

// AccessToken returns the bearer token, or "" when logged out.
func (s *Store) AccessToken(ctx context.Context) string {
	sess := s.load(ctx)
	if sess == nil {
		return ""
	}
	return sess.AccessToken
}

// Refresh exchanges the stored refresh token for new credentials. Only the
// token entry changes. A refresh the server rejects ends the session.
func (s *Store) Refresh(ctx context.Context) error {
	stored, err := s.read(ctx)
	if err != nil {
		return err
	}
	if stored == nil {
		return common.ErrNotAuthenticated
	}
	if stored.RefreshToken == "" {
		return common.ErrNoRefreshToken
	}

	resp, err := s.auth.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			if _, sErr := s.Invalidate(ctx); sErr != nil {
				s.log.Error(ctx, "sign out after rejected refresh", "error", sErr)
			}
			return fmt.Errorf("%w: %w", common.ErrSessionExpired, err)
		}
		return err
	}
	if resp == nil || resp.AccessToken == "" {
		return fmt.Errorf("%w: %w: refresh response has no access token", common.ErrUnavailable, common.ErrMalformedResponse)
	}

	next := models.Tokens{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = stored.RefreshToken
	}
	if next.TokenType == "" {
		next.TokenType = stored.TokenType
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		current, err := decodeTokens(ctx, repo)
		if err != nil && !errors.Is(err, errCorrupt) {
			return err
		}
		// signed out or replaced by another sign-in while the call was in flight
		if current == nil || current.RefreshToken != stored.RefreshToken {
			return common.ErrSessionExpired
		}
		if err := repo.Set(ctx, KeyTokens, raw); err != nil {
			return err
		}
		s.log.Debug(ctx, "access token refreshed")
		return nil
	})
}

// UpdateProfile replaces the stored profile with one whose name and email
// fields are changed. Identity and roles are kept.
func (s *Store) UpdateProfile(ctx context.Context, firstName, lastName, email string) error {
	s.mu.Lock()
	changed, err := s.commit(ctx, func(ctx context.Context, repo *metadata.SQLiteRepository) (bool, error) {
		raw, err := repo.Get(ctx, KeyUser)
		if err != nil {
			return false, err
		}
		var u models.User
		if raw == nil || json.Unmarshal(raw, &u) != nil {
			return false, common.ErrNotAuthenticated
		}
		u.FirstName, u.LastName, u.Email = firstName, lastName, email

		next, err := json.Marshal(u)
		if err != nil {
			return false, fmt.Errorf("encode profile: %w", err)
		}
		return true, repo.Set(ctx, KeyUser, next)
	})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if changed {
		s.notify()
	}
	return nil
}

// Subscribe registers fn to run after every sign-in, sign-out and profile
// change, including those made by other processes while Watch runs.
// Listeners are called synchronously and must not block.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	sub := &subscriber{fn: fn}

	s.subsMu.Lock()
	s.subs = append(s.subs, sub)
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			s.subs = slices.DeleteFunc(s.subs, func(x *subscriber) bool { return x == sub })
		})
	}
}

func (s *Store) notify() {
	s.subsMu.Lock()
	subs := slices.Clone(s.subs)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.fn()
	}
}

// commit runs fn in a transaction and bumps the stored generation when fn
// reports a change. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, fn func(ctx context.Context, repo *metadata.SQLiteRepository) (bool, error)) (bool, error) {
	var (
		changed bool
		gen     int64
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)

		var err error
		changed, err = fn(ctx, repo)
		if err != nil || !changed {
			return err
		}

		gen, err = readGeneration(ctx, repo)
		if err != nil {
			return err
		}
		gen++
		return repo.Set(ctx, KeyGeneration, []byte(strconv.FormatInt(gen, 10)))
	})
	if err != nil {
		return false, err
	}
	if changed {
		s.generation = gen
	}
	return changed, nil
}

// load reads the session and applies the token policy. An expired token ends
// the session here.
func (s *Store) load(ctx context.Context) *models.Session {
	sess, err := s.read(ctx)
	if err != nil {
		s.log.Error(ctx, "read session", "error", err)
		return nil
	}
	if sess == nil {
		return nil
	}

	if s.policy.expired(sess.AccessToken, s.now(), s.leeway) {
		s.log.Info(ctx, "access token expired", "username", sess.Username)
		if _, err := s.Invalidate(ctx); err != nil {
			s.log.Error(ctx, "sign out expired session", "error", err)
		}
		return nil
	}
	return sess
}

// read returns the stored session without the policy check. Missing,
// undecodable or incomplete entries yield (nil, nil).
func (s *Store) read(ctx context.Context) (*models.Session, error) {
	rawUser, err := s.repo.Get(ctx, KeyUser)
	if err != nil {
		return nil, err
	}
	tokens, err := decodeTokens(ctx, s.repo)
	if errors.Is(err, errCorrupt) {
		s.log.Warn(ctx, "corrupt stored tokens", "key", KeyTokens, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rawUser == nil || tokens == nil {
		return nil, nil
	}

	var u models.User
	if err := json.Unmarshal(rawUser, &u); err != nil {
		s.log.Warn(ctx, "corrupt stored profile", "key", KeyUser, "error", err)
		return nil, nil
	}
	if u.Username == "" {
		s.log.Warn(ctx, "stored profile has no username", "key", KeyUser)
		return nil, nil
	}
	if u.Roles == nil {
		u.Roles = []string{}
	}

	return &models.Session{User: u, Tokens: *tokens}, nil
}

var errCorrupt = errors.New("corrupt stored state")

func decodeTokens(ctx context.Context, repo metadata.Repository) (*models.Tokens, error) {
	raw, err := repo.Get(ctx, KeyTokens)
	if err != nil || raw == nil {
		return nil, err
	}
	var t models.Tokens
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("%w: %w", errCorrupt, err)
	}
	if t.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", errCorrupt)
	}
	return &t, nil
}

func readGeneration(ctx context.Context, repo metadata.Repository) (int64, error) {
	raw, err := repo.Get(ctx, KeyGeneration)
	if err != nil || raw == nil {
		return 0, err
	}
	gen, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		// a garbled counter restarts; watchers still see a change
		return 0, nil
	}
	return gen, nil
}
