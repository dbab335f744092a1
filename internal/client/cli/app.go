package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/entitykeeper/internal/client/api"
	"github.com/dmitrijs2005/entitykeeper/internal/client/artifacts"
	"github.com/dmitrijs2005/entitykeeper/internal/client/guard"
	"github.com/dmitrijs2005/entitykeeper/internal/client/models"
	"github.com/dmitrijs2005/entitykeeper/internal/common"
	"github.com/dmitrijs2005/entitykeeper/internal/logging"
)

// SessionService is the session store as the CLI uses it.
type SessionService interface {
	SignIn(ctx context.Context, username, password string) (*models.Session, error)
	SignOut(ctx context.Context) error
	CurrentUser(ctx context.Context) *models.Session
	IsAuthenticated(ctx context.Context) bool
	Roles(ctx context.Context) []string
	Refresh(ctx context.Context) error
	UpdateProfile(ctx context.Context, firstName, lastName, email string) error
	Subscribe(fn func()) (unsubscribe func())
}

// Registrar creates accounts.
type Registrar interface {
	SignUp(ctx context.Context, req models.SignUpRequest) (string, error)
}

// EntityService is the authenticated part of the API.
type EntityService interface {
	ListEntities(ctx context.Context) ([]models.Entity, error)
	GetEntity(ctx context.Context, id int64) (*models.Entity, error)
	CreateEntity(ctx context.Context, e *models.Entity) (*models.Entity, error)
	UpdateEntity(ctx context.Context, id int64, e *models.Entity) (*models.Entity, error)
	DeleteEntity(ctx context.Context, id int64) error
	UpdateProfile(ctx context.Context, p models.ProfileUpdate) error
	Export(ctx context.Context, f api.Format) (*api.Download, error)
	Import(ctx context.Context, f api.Format, filename string, r io.Reader) (string, error)
	Report(ctx context.Context, r api.ReportRequest) (*api.Download, error)
}

// Deps are the collaborators an App is built from.
type Deps struct {
	Session   SessionService
	Registrar Registrar
	Entities  EntityService
	Sink      artifacts.Sink
	Logger    logging.Logger
}

type App struct {
	session   SessionService
	registrar Registrar
	entities  EntityService
	sink      artifacts.Sink
	guard     *guard.Guard
	log       logging.Logger

	reader *bufio.Reader
	out    io.Writer
	now    func() time.Time

	// path is the screen the user is on.
	path string
	// shownUser is the username the user was last told about; "" when
	// signed out.
	shownUser   string
	authChanged atomic.Bool
}

func NewApp(d Deps, in io.Reader, out io.Writer) *App {
	log := d.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &App{
		session:   d.Session,
		registrar: d.Registrar,
		entities:  d.Entities,
		sink:      d.Sink,
		guard:     guard.New(guard.DefaultTable(), d.Session),
		log:       log,
		reader:    bufio.NewReader(in),
		out:       out,
		now:       time.Now,
		path:      guard.PathHome,
	}
}

// Run starts the REPL and blocks until the user exits, input ends or ctx
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	unsubscribe := a.session.Subscribe(func() { a.authChanged.Store(true) })
	defer unsubscribe()

	fmt.Fprintln(a.out, "Entity Management CLI (type 'help' for commands)")
	if a.shownUser = a.username(ctx); a.shownUser != "" {
		fmt.Fprintf(a.out, "Signed in as %s.\n", a.shownUser)
	} else {
		a.path = guard.PathLogin
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		runREPL(ctx, a, a.reader, a.out)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	return a.session.IsAuthenticated(ctx)
}

func (a *App) username(ctx context.Context) string {
	if s := a.session.CurrentUser(ctx); s != nil {
		return s.Username
	}
	return ""
}

func (a *App) prompt(ctx context.Context) string {
	if u := a.username(ctx); u != "" {
		return fmt.Sprintf("ems (%s) %s> ", u, a.path)
	}
	return fmt.Sprintf("ems %s> ", a.path)
}

// announce reports session changes that happened behind the user's back:
// another process signing in or out, or a token running out.
func (a *App) announce(ctx context.Context) {
	if !a.authChanged.Swap(false) {
		return
	}
	cur := a.username(ctx)
	if cur == a.shownUser {
		return
	}
	if cur == "" {
		fmt.Fprintln(a.out, "You have been signed out.")
		a.path = guard.PathLogin
	} else {
		fmt.Fprintf(a.out, "Session changed: now signed in as %s.\n", cur)
	}
	a.shownUser = cur
}

// navigate moves to path if the guard allows it. A signed-out user is asked
// to sign in first and, on success, resumes on path.
func (a *App) navigate(ctx context.Context, path string) bool {
	for attempt := 0; ; attempt++ {
		route, d := a.guard.Decide(ctx, path)
		switch d.Kind {
		case guard.Render:
			a.path = route.Path
			return true
		case guard.RedirectToUnauthorized:
			a.path = d.Target(route.Path)
			fmt.Fprintf(a.out, "You are not authorized to open %s.\n", route.Path)
			return false
		}

		a.path = guard.PathLogin
		if attempt > 0 {
			return false
		}
		fmt.Fprintln(a.out, "Please sign in to continue.")
		if err := a.signIn(ctx, ""); err != nil {
			a.showError(err)
			return false
		}
		path = guard.Resume(d)
	}
}

func (a *App) showError(err error) {
	var apiErr *api.Error
	switch {
	case errors.Is(err, common.ErrSessionExpired):
		a.shownUser = ""
		a.path = guard.PathLogin
		fmt.Fprintln(a.out, "session expired, please sign in again")
	case errors.Is(err, common.ErrNotAuthenticated), errors.Is(err, common.ErrNoRefreshToken):
		fmt.Fprintln(a.out, "Not signed in.")
	case errors.Is(err, common.ErrInvalidCredentials):
		fmt.Fprintln(a.out, "Invalid username or password.")
	case errors.Is(err, common.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable, please try again later.")
	case errors.Is(err, common.ErrForbidden):
		fmt.Fprintln(a.out, "You are not allowed to do that.")
	case errors.As(err, &apiErr) && apiErr.Message != "":
		fmt.Fprintf(a.out, "Error: %s\n", apiErr.Message)
	default:
		fmt.Fprintf(a.out, "Error: %s\n", err)
	}
	a.log.Debug(context.Background(), "command failed", "error", err)
}

func (a *App) ask(prompt string) (string, error) {
	return GetSimpleText(a.reader, prompt, a.out)
}

// askDefault shows the current value and keeps it on an empty answer.
func (a *App) askDefault(prompt, current string) (string, error) {
	if current != "" {
		prompt = fmt.Sprintf("%s [%s]", prompt, current)
	}
	v, err := a.ask(prompt)
	if err != nil || v == "" {
		return current, err
	}
	return v, nil
}

func (a *App) confirm(prompt string) (bool, error) {
	v, err := a.ask(prompt + " [y/N]")
	if err != nil {
		return false, err
	}
	return v == "y" || v == "Y" || v == "yes", nil
}

// argOrAsk returns args[0] or prompts for it.
func (a *App) argOrAsk(args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return a.ask(prompt)
}
