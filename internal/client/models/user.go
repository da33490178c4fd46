// Package models defines the data types shared by the gophauth storage,
// service and CLI layers.
package models

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// User is one row of the users table.
type User struct {
	// ID is assigned by the store on insert and never reused.
	ID int64 `json:"id" db:"id"`

	// Username is the unique login name, compared verbatim.
	Username string `json:"username" db:"username"`

	// PasswordHash is the encoded argon2id hash (column "password").
	// It is never serialized into the session cache.
	PasswordHash string `json:"-" db:"password"`

	FirstName      string `json:"firstName" db:"firstName"`
	LastName       string `json:"lastName" db:"lastName"`
	Email          string `json:"email" db:"email"`
	ContactNumber  string `json:"contactNumber" db:"contactNumber"`
	Address        string `json:"address" db:"address"`
	ProfilePicture string `json:"profilePicture" db:"profilePicture"`
}

// Profile returns the updatable part of u.
func (u *User) Profile() Profile {
	return Profile{
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		ContactNumber:  u.ContactNumber,
		Address:        u.Address,
		ProfilePicture: u.ProfilePicture,
	}
}

// ApplyProfile overwrites the profile fields of u with p.
func (u *User) ApplyProfile(p Profile) {
	u.FirstName = p.FirstName
	u.LastName = p.LastName
	u.Email = p.Email
	u.ContactNumber = p.ContactNumber
	u.Address = p.Address
	u.ProfilePicture = p.ProfilePicture
}

// WithoutPassword returns a copy of u with the password hash cleared.
func (u *User) WithoutPassword() *User {
	c := *u
	c.PasswordHash = ""
	return &c
}

// DisplayName is "First Last", falling back to the username.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Profile holds the fields a user may change after registration.
// Username and password are deliberately absent.
type Profile struct {
	FirstName      string
	LastName       string
	Email          string
	ContactNumber  string
	Address        string
	ProfilePicture string
}

// Registration is the input of a sign-up. All fields are required; the
// profile picture is a local path or URL.
type Registration struct {
	Username string
	Password []byte
	Profile
}

// Validate reports every missing required field in one error wrapping
// common.ErrValidation.
func (r *Registration) Validate() error {
	var missing []string

	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	check("username", r.Username)
	if len(r.Password) == 0 {
		missing = append(missing, "password")
	}
	check("firstName", r.FirstName)
	check("lastName", r.LastName)
	check("email", r.Email)
	check("contactNumber", r.ContactNumber)
	check("address", r.Address)
	check("profilePicture", r.ProfilePicture)

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", common.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}
