package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/common"
)

// getSimpleText, getWithDefault, confirm and getPassword are indirections
// used to facilitate testing. They point to interactive input helpers and
// can be swapped in tests.
var (
	getSimpleText  = GetSimpleText
	getWithDefault = GetWithDefault
	confirm        = Confirm
	getPassword    = GetPassword
)

// Register prompts for the username, password and every profile field, then
// creates the account via the AuthService. It does not log the user in.
//
// The password byte slice is wiped before returning. A duplicate username
// or email prints "Username or Email already exists".
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	reg := models.Registration{Username: username, Password: password}

	fields := []struct {
		prompt string
		dst    *string
	}{
		{"Enter first name", &reg.FirstName},
		{"Enter last name", &reg.LastName},
		{"Enter email", &reg.Email},
		{"Enter contact number", &reg.ContactNumber},
		{"Enter address", &reg.Address},
		{"Enter profile picture (path or URL)", &reg.ProfilePicture},
	}
	for _, f := range fields {
		if *f.dst, err = getSimpleText(a.reader, f.prompt, a.out); err != nil {
			return err
		}
	}

	id, err := a.authService.Register(ctx, reg)
	if err != nil {
		a.report(err)
		return err
	}

	a.log.Debug(ctx, "registered from cli", "id", id)
	printlnFn("Success! You can now log in.")
	return nil
}

// Login prompts for credentials and starts a session. Wrong credentials
// print "Invalid username or password" and leave the user logged out.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	s, err := a.authService.Login(ctx, username, password)
	if err != nil {
		a.report(err)
		return err
	}
	if s == nil {
		printlnFn(msgInvalidCredentials)
		return nil
	}

	a.session = s
	printlnFn(fmt.Sprintf("Welcome, %s!", s.User.DisplayName()))
	return nil
}

// Logout ends the session. It never fails; storage problems are logged by
// the service.
func (a *App) Logout(ctx context.Context) error {
	a.authService.Logout(ctx)
	a.session = nil
	printlnFn("Logged out")
	return nil
}
