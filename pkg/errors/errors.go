package errors

import "errors"

// Account errors
var (
	// ErrParentNotFound is returned when no parent account matches
	ErrParentNotFound = errors.New("parent not found")

	// ErrChildNotFound is returned when no child record matches
	ErrChildNotFound = errors.New("child not found")

	// ErrEmailExists is returned when registering an already used email
	ErrEmailExists = errors.New("email already exists")

	// ErrEmailNotVerified is returned when an action requires a verified email
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrInvalidCredentials is returned on a failed login
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrCodeExpired is returned when a verification code is past its expiry
	ErrCodeExpired = errors.New("verification code has expired")

	// ErrInvalidCode is returned when a verification code does not match
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrChildAlreadyLinked is returned when a connection string is linked twice
	ErrChildAlreadyLinked = errors.New("child connection already added")
)

// Relay errors
var (
	// ErrConnClosed is returned when writing to a closed relay connection
	ErrConnClosed = errors.New("connection closed")

	// ErrNotRegistered is returned when an update references an unknown id
	ErrNotRegistered = errors.New("not registered")

	// ErrNegativeDistance is returned when a location update carries a
	// negative distance delta
	ErrNegativeDistance = errors.New("negative distance delta")
)

// Auth errors
var (
	// ErrInvalidToken is returned when a JWT is malformed or expired
	ErrInvalidToken = errors.New("invalid token")
)

// Storage errors
var (
	// ErrStorageNotInitialized is returned when storage is not initialized
	ErrStorageNotInitialized = errors.New("storage not initialized")

	// ErrTaskNotFound is returned when no task matches
	ErrTaskNotFound = errors.New("task not found")
)

// Configuration errors
var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)
