package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
)

// Profile prints the logged-in user's cached profile.
func (a *App) Profile(ctx context.Context) error {
	u, err := a.authService.LoggedInUser(ctx)
	if err != nil {
		a.report(err)
		return err
	}
	if u == nil {
		printlnFn("Not logged in")
		return nil
	}

	printlnFn(formatUser(u))
	return nil
}

// UpdateProfile walks through the profile fields, keeping any the user
// leaves empty, stores them and refreshes the cached snapshot.
func (a *App) UpdateProfile(ctx context.Context) error {
	u := a.session.User
	p := u.Profile()

	fields := []struct {
		prompt string
		dst    *string
	}{
		{"First name", &p.FirstName},
		{"Last name", &p.LastName},
		{"Email", &p.Email},
		{"Contact number", &p.ContactNumber},
		{"Address", &p.Address},
		{"Profile picture", &p.ProfilePicture},
	}
	for _, f := range fields {
		v, err := getWithDefault(a.reader, f.prompt, *f.dst, a.out)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	if err := a.authService.UpdateProfile(ctx, u.ID, p); err != nil {
		a.report(err)
		return err
	}
	if err := a.authService.RefreshSession(ctx, u.ID); err != nil {
		a.log.Warn(ctx, "session snapshot not refreshed", "error", err)
	}

	u.ApplyProfile(p)
	printlnFn("Profile updated")
	return nil
}

// ChangePicture replaces only the profile picture.
func (a *App) ChangePicture(ctx context.Context) error {
	picture, err := getSimpleText(a.reader, "Enter new profile picture (path or URL)", a.out)
	if err != nil {
		return err
	}
	if picture == "" {
		printlnFn("Picture unchanged")
		return nil
	}

	u, err := a.authService.ChangeProfilePicture(ctx, a.session.User.ID, picture)
	if err != nil {
		a.report(err)
		return err
	}
	if err := a.authService.RefreshSession(ctx, u.ID); err != nil {
		a.log.Warn(ctx, "session snapshot not refreshed", "error", err)
	}

	a.session.User = u
	printlnFn("Profile picture updated")
	return nil
}

// DeleteAccount removes the logged-in user after confirmation and logs out.
func (a *App) DeleteAccount(ctx context.Context) error {
	ok, err := confirm(a.reader, "Delete your account permanently?", a.out)
	if err != nil {
		return err
	}
	if !ok {
		printlnFn("Cancelled")
		return nil
	}

	if err := a.authService.DeleteAccount(ctx, a.session.User.ID); err != nil {
		a.report(err)
		return err
	}

	// deletion leaves the session cache alone; drop it here
	a.authService.Logout(ctx)
	a.session = nil
	printlnFn("Account deleted")
	return nil
}

// ListUsers prints every registered user, one per line.
func (a *App) ListUsers(ctx context.Context) error {
	list, err := a.authService.ListUsers(ctx)
	if err != nil {
		a.report(err)
		return err
	}
	if len(list) == 0 {
		printlnFn("No users")
		return nil
	}

	for _, u := range list {
		printlnFn(fmt.Sprintf("%d\t%s\t%s\t%s", u.ID, u.Username, u.DisplayName(), u.Email))
	}
	return nil
}

// Reset wipes the local database after confirmation.
func (a *App) Reset(ctx context.Context) error {
	ok, err := confirm(a.reader, "Delete ALL users and sessions?", a.out)
	if err != nil {
		return err
	}
	if !ok {
		printlnFn("Cancelled")
		return nil
	}

	if err := a.authService.Reset(ctx); err != nil {
		a.report(err)
		return err
	}

	a.session = nil
	printlnFn("Database reset")
	return nil
}

func formatUser(u *models.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:              %d\n", u.ID)
	fmt.Fprintf(&b, "Username:        %s\n", u.Username)
	fmt.Fprintf(&b, "Name:            %s %s\n", u.FirstName, u.LastName)
	fmt.Fprintf(&b, "Email:           %s\n", u.Email)
	fmt.Fprintf(&b, "Contact number:  %s\n", u.ContactNumber)
	fmt.Fprintf(&b, "Address:         %s\n", u.Address)
	fmt.Fprintf(&b, "Profile picture: %s", u.ProfilePicture)
	return b.String()
}
