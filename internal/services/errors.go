// Package services implements the business logic for identity, carry
// requests, offers, routes, and the notification feed. This file centralizes
// service-level error values so handlers can map them to HTTP results
// consistently.
package services

import "errors"

// Identity errors.
var (
	// ErrInvalidToken means a bearer token verified but no user identity
	// could be derived from its claims.
	ErrInvalidToken = errors.New("token carries no usable identity")

	// ErrInvalidCredentials is returned for unknown username or wrong password.
	ErrInvalidCredentials = errors.New("incorrect username or password")

	// ErrUsernameTaken is returned when registration collides with an
	// existing username or email.
	ErrUsernameTaken = errors.New("username already registered")
)

// Domain errors.
var (
	ErrRequestNotFound = errors.New("request not found")
	ErrOfferNotFound   = errors.New("offer not found")
	ErrRouteNotFound   = errors.New("route not found")
	ErrUserNotFound    = errors.New("user not found")

	// ErrForbidden is returned when the caller does not own the resource.
	ErrForbidden = errors.New("not allowed to modify this resource")

	// ErrValidation wraps input that passed binding but breaks a business rule.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidTransition is returned for a known status that cannot follow
	// the current one.
	ErrInvalidTransition = errors.New("status transition not allowed")

	// ErrUnsupported is returned when the attached schema lacks a column the
	// operation needs.
	ErrUnsupported = errors.New("operation not supported by database schema")
)
