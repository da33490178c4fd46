// Package metadata implements the device-local key-value store on top of the
// metadata table. The session package keeps the login flag, the cached user
// snapshot and the session token here.
//
// All driver failures are wrapped with common.ErrStorageUnavailable.
package metadata
