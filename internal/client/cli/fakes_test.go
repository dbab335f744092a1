package cli

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/entitykeeper/internal/client/api"
	"github.com/dmitrijs2005/entitykeeper/internal/client/models"
	"github.com/dmitrijs2005/entitykeeper/internal/client/session"
	"github.com/dmitrijs2005/entitykeeper/internal/common"
)

var (
	_ SessionService = (*session.Store)(nil)
	_ EntityService  = (*api.Client)(nil)
	_ Registrar      = (*api.AuthClient)(nil)
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type account struct {
	password string
	user     models.User
}

type fakeSession struct {
	mu         sync.Mutex
	accounts   map[string]account
	current    *models.Session
	subs       map[int]func()
	nextSub    int
	refreshErr error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		accounts: map[string]account{
			"alice": {password: "secret", user: models.User{ID: 1, Username: "alice", FirstName: "Alice", LastName: "Smith", Email: "alice@example.com", Roles: []string{common.RoleUser}}},
			"root":  {password: "toor", user: models.User{ID: 2, Username: "root", FirstName: "Ada", LastName: "Admin", Email: "root@example.com", Roles: []string{common.RoleAdmin}}},
		},
		subs: map[int]func(){},
	}
}

func (f *fakeSession) SignIn(_ context.Context, username, password string) (*models.Session, error) {
	f.mu.Lock()
	acc, ok := f.accounts[username]
	if !ok || acc.password != password {
		f.mu.Unlock()
		return nil, common.ErrInvalidCredentials
	}
	u := acc.user
	u.Roles = slices.Clone(u.Roles)
	f.current = &models.Session{User: u, Tokens: models.Tokens{AccessToken: "tok-" + username}}
	s := *f.current
	f.mu.Unlock()
	f.notify()
	return &s, nil
}

// signInAs puts a session in place without notifying, as if it had been
// restored from disk at startup.
func (f *fakeSession) signInAs(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.accounts[username].user
	f.current = &models.Session{User: u, Tokens: models.Tokens{AccessToken: "tok-" + username}}
}

func (f *fakeSession) SignOut(context.Context) error {
	f.expire()
	return nil
}

// expire drops the session and notifies, like an invalidation after 401.
func (f *fakeSession) expire() {
	f.mu.Lock()
	had := f.current != nil
	f.current = nil
	f.mu.Unlock()
	if had {
		f.notify()
	}
}

func (f *fakeSession) CurrentUser(context.Context) *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil
	}
	s := *f.current
	s.Roles = slices.Clone(s.Roles)
	return &s
}

func (f *fakeSession) IsAuthenticated(ctx context.Context) bool {
	return f.CurrentUser(ctx) != nil
}

func (f *fakeSession) Roles(ctx context.Context) []string {
	if s := f.CurrentUser(ctx); s != nil {
		return s.Roles
	}
	return []string{}
}

func (f *fakeSession) Refresh(ctx context.Context) error {
	if f.CurrentUser(ctx) == nil {
		return common.ErrNotAuthenticated
	}
	return f.refreshErr
}

func (f *fakeSession) UpdateProfile(_ context.Context, first, last, email string) error {
	f.mu.Lock()
	if f.current == nil {
		f.mu.Unlock()
		return common.ErrNotAuthenticated
	}
	f.current.FirstName, f.current.LastName, f.current.Email = first, last, email
	f.mu.Unlock()
	f.notify()
	return nil
}

func (f *fakeSession) Subscribe(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeSession) notify() {
	f.mu.Lock()
	subs := make([]func(), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

type fakeRegistrar struct {
	got *models.SignUpRequest
	msg string
	err error
}

func (f *fakeRegistrar) SignUp(_ context.Context, req models.SignUpRequest) (string, error) {
	f.got = &req
	return f.msg, f.err
}

type fakeEntities struct {
	entities []models.Entity

	// err is returned from every call; before, when set, runs first.
	err    error
	before func()

	created  *models.Entity
	updated  *models.Entity
	deleted  []int64
	profile  *models.ProfileUpdate
	exported api.Format
	imported struct {
		format   api.Format
		filename string
		data     string
	}
	reports  []api.ReportRequest
	download api.Download
}

func (f *fakeEntities) fail() error {
	if f.before != nil {
		f.before()
	}
	return f.err
}

func (f *fakeEntities) ListEntities(context.Context) ([]models.Entity, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.entities, nil
}

func (f *fakeEntities) GetEntity(_ context.Context, id int64) (*models.Entity, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	for _, e := range f.entities {
		if e.ID == id {
			e.CustomColumns = slices.Clone(e.CustomColumns)
			return &e, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeEntities) CreateEntity(_ context.Context, e *models.Entity) (*models.Entity, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	c := *e
	c.ID = 100
	f.created = &c
	return &c, nil
}

func (f *fakeEntities) UpdateEntity(_ context.Context, id int64, e *models.Entity) (*models.Entity, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	u := *e
	u.ID = id
	f.updated = &u
	return &u, nil
}

func (f *fakeEntities) DeleteEntity(_ context.Context, id int64) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeEntities) UpdateProfile(_ context.Context, p models.ProfileUpdate) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.profile = &p
	return nil
}

func (f *fakeEntities) Export(_ context.Context, format api.Format) (*api.Download, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.exported = format
	d := f.download
	return &d, nil
}

func (f *fakeEntities) Import(_ context.Context, format api.Format, filename string, r io.Reader) (string, error) {
	if err := f.fail(); err != nil {
		return "", err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.imported.format, f.imported.filename, f.imported.data = format, filename, string(b)
	return "Imported 2 entities", nil
}

func (f *fakeEntities) Report(_ context.Context, r api.ReportRequest) (*api.Download, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.reports = append(f.reports, r)
	return &api.Download{ContentType: "application/pdf", Data: []byte("%PDF-1.4")}, nil
}

type savedArtifact struct {
	name, contentType string
	data              []byte
}

type fakeSink struct {
	saved []savedArtifact
}

func (f *fakeSink) Save(_ context.Context, name, contentType string, data []byte) (string, error) {
	f.saved = append(f.saved, savedArtifact{name: name, contentType: contentType, data: data})
	return "mem://" + name, nil
}

// stubPasswords makes getPassword return the given values in order.
func stubPasswords(t *testing.T, pw ...string) {
	t.Helper()
	orig := getPassword
	var mu sync.Mutex
	getPassword = func(io.Writer, string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(pw) == 0 {
			return "", io.EOF
		}
		p := pw[0]
		pw = pw[1:]
		return p, nil
	}
	t.Cleanup(func() { getPassword = orig })
}

type harness struct {
	app  *App
	out  *bytes.Buffer
	sess *fakeSession
	ents *fakeEntities
	reg  *fakeRegistrar
	sink *fakeSink
}

func newHarness(t *testing.T, lines ...string) *harness {
	t.Helper()
	h := &harness{
		out:  &bytes.Buffer{},
		sess: newFakeSession(),
		ents: &fakeEntities{},
		reg:  &fakeRegistrar{},
		sink: &fakeSink{},
	}
	input := strings.Join(lines, "\n")
	if len(lines) > 0 {
		input += "\n"
	}
	h.app = NewApp(Deps{
		Session:   h.sess,
		Registrar: h.reg,
		Entities:  h.ents,
		Sink:      h.sink,
	}, strings.NewReader(input), h.out)
	h.app.now = func() time.Time { return fixedNow }
	return h
}

func ptime(t time.Time) *time.Time { return &t }
