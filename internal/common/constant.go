// Package common contains shared constants, sentinel errors and small helpers
// used across gophauth components.
package common

// Session cache keys stored in the metadata table.
const (
	KeyIsLoggedIn    = "isLoggedIn"
	KeyLoggedInUser  = "loggedInUser"
	KeySessionToken  = "sessionToken"
	KeySessionSecret = "sessionSecret"
)

// LoggedInValue is the string form of a set session flag.
const LoggedInValue = "true"
