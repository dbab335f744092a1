// Package cli provides the interactive entitykeeper command-line client.
//
// The REPL is started with App.Run, which blocks until the user exits or
// the context is cancelled. Every command that opens a protected screen
// goes through the route guard first: a signed-out user is asked to sign
// in and then lands where they were heading, and a user without the
// required role gets the unauthorized notice instead.
//
// Sign-ins and sign-outs made by other processes sharing the session
// database are announced before the next prompt.
package cli
