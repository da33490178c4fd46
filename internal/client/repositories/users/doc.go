// Package users implements the relational user store: one users table with
// unique username and email columns.
//
// Lookups that find nothing return common.ErrorNotFound; uniqueness
// violations return *common.DuplicateError naming the conflicting column;
// every other driver failure is wrapped with common.ErrStorageUnavailable.
package users
