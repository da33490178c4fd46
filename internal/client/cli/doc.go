// Package cli provides the interactive gophauth command-line client.
//
// It wires configuration, logging, the local SQLite store and the auth
// service behind a small REPL. On start it restores the session left by a
// previous run, so a logged-in user stays logged in across relaunches.
//
// Key features:
//   - Register / Login / Logout
//   - Show and update the profile, change the profile picture
//   - Delete the account
//   - List registered users
//   - Reset the local database
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
