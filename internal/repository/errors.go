// Package repository persists accounts and claims in MySQL.  This file
// defines sentinel errors shared across repositories so that handlers can
// translate storage failures into the API error taxonomy without inspecting
// driver error strings.
package repository

import "errors"

// ErrEmailExists is returned when an insert violates the unique email index.
// Handlers translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a referenced account or claim does not exist
// from the caller's perspective (including expired token lookups).
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an update loses a race or targets a record
// in a state that forbids it, such as a status change on a finalized claim.
var ErrConflict = errors.New("conflict")
