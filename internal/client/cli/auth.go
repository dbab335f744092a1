package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/entitykeeper/internal/client/guard"
	"github.com/dmitrijs2005/entitykeeper/internal/client/models"
	"github.com/dmitrijs2005/entitykeeper/internal/common"
	"github.com/gosuri/uitable"
)

// getPassword is an indirection over GetPassword so tests can feed
// passwords without a terminal.
var getPassword = GetPassword

// Signup registers a new account. It does not sign in.
func (a *App) Signup(ctx context.Context, args []string) error {
	a.path = guard.PathSignup

	var req models.SignUpRequest
	var err error
	if req.Username, err = a.argOrAsk(args, "Enter username"); err != nil {
		return err
	}
	if req.FirstName, err = a.ask("Enter first name"); err != nil {
		return err
	}
	if req.LastName, err = a.ask("Enter last name"); err != nil {
		return err
	}
	if req.Email, err = a.ask("Enter email"); err != nil {
		return err
	}
	if req.Password, err = getPassword(a.out, "Enter password"); err != nil {
		return err
	}
	confirm, err := getPassword(a.out, "Repeat password")
	if err != nil {
		return err
	}
	if confirm != req.Password {
		return fmt.Errorf("%w: passwords do not match", common.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	msg, err := a.registrar.SignUp(ctx, req)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Registration successful! Please sign in."
	}
	fmt.Fprintln(a.out, msg)
	a.path = guard.PathLogin
	return nil
}

// Login signs in and opens the home screen.
func (a *App) Login(ctx context.Context, args []string) error {
	a.path = guard.PathLogin
	username := ""
	if len(args) > 0 {
		username = args[0]
	}
	if err := a.signIn(ctx, username); err != nil {
		return err
	}
	a.navigate(ctx, guard.PathHome)
	return nil
}

func (a *App) signIn(ctx context.Context, username string) error {
	var err error
	if username == "" {
		if username, err = a.ask("Enter username"); err != nil {
			return err
		}
	}
	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}

	sess, err := a.session.SignIn(ctx, username, password)
	if err != nil {
		return err
	}
	a.shownUser = sess.Username
	fmt.Fprintf(a.out, "Welcome, %s!\n", sess.DisplayName())
	return nil
}

func (a *App) Logout(ctx context.Context, _ []string) error {
	if err := a.session.SignOut(ctx); err != nil {
		return err
	}
	a.shownUser = ""
	a.path = guard.PathLogin
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *App) Whoami(ctx context.Context, _ []string) error {
	s := a.session.CurrentUser(ctx)
	if s == nil {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}

	table := uitable.New()
	table.AddRow("USERNAME", s.Username)
	table.AddRow("NAME", s.DisplayName())
	table.AddRow("EMAIL", s.Email)
	table.AddRow("ROLES", strings.Join(s.Roles, ", "))
	fmt.Fprintln(a.out, table)
	return nil
}

// Refresh trades the stored refresh token for a new access token.
func (a *App) Refresh(ctx context.Context, _ []string) error {
	if err := a.session.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Token refreshed.")
	return nil
}

// Profile edits the signed-in user's name, email and optionally password.
func (a *App) Profile(ctx context.Context, _ []string) error {
	if !a.navigate(ctx, guard.PathProfile) {
		return nil
	}
	cur := a.session.CurrentUser(ctx)
	if cur == nil {
		return common.ErrNotAuthenticated
	}

	upd := models.ProfileUpdate{}
	var err error
	if upd.FirstName, err = a.askDefault("First name", cur.FirstName); err != nil {
		return err
	}
	if upd.LastName, err = a.askDefault("Last name", cur.LastName); err != nil {
		return err
	}
	if upd.Email, err = a.askDefault("Email", cur.Email); err != nil {
		return err
	}

	change, err := a.confirm("Change password?")
	if err != nil {
		return err
	}
	if change {
		if upd.CurrentPassword, err = getPassword(a.out, "Current password"); err != nil {
			return err
		}
		if upd.NewPassword, err = getPassword(a.out, "New password"); err != nil {
			return err
		}
		repeat, err := getPassword(a.out, "Repeat new password")
		if err != nil {
			return err
		}
		if repeat != upd.NewPassword {
			return fmt.Errorf("%w: passwords do not match", common.ErrValidation)
		}
	}
	if err := upd.Validate(); err != nil {
		return err
	}

	if err := a.entities.UpdateProfile(ctx, upd); err != nil {
		return err
	}
	if err := a.session.UpdateProfile(ctx, upd.FirstName, upd.LastName, upd.Email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Profile updated.")
	return nil
}
