package permkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for permkit operations.
//
// Permission denials are NOT errors: decision functions return a Decision
// value carrying a reason code instead, so callers can branch on "denied"
// without exception-style handling. Only structurally invalid input (an
// unknown instance, a malformed grant) surfaces as an error.
var (
	// ErrInstanceNotFound is returned when the referenced instance does not
	// exist. Nothing can be resolved without a tenant, so this is fatal to
	// the calling operation.
	ErrInstanceNotFound = errors.New("permkit: instance not found")

	// ErrRoleNotFound is returned when a referenced role does not exist.
	ErrRoleNotFound = errors.New("permkit: role not found")

	// ErrInvalidModel is returned when a model type is not one of the
	// known domain models.
	ErrInvalidModel = errors.New("permkit: invalid model type")

	// ErrInvalidLevel is returned when a permission level string or value
	// is not one of none/read/write.
	ErrInvalidLevel = errors.New("permkit: invalid permission level")

	// ErrInvalidGrant is returned when a grant is structurally
	// contradictory, e.g. a field grant that would exceed its model grant.
	ErrInvalidGrant = errors.New("permkit: invalid grant")

	// ErrRoleInUse is returned when deleting a role that assignments still
	// reference.
	ErrRoleInUse = errors.New("permkit: role still referenced by assignments")

	// ErrDefaultRoleInUse is returned when deleting the role an instance
	// uses as its default.
	ErrDefaultRoleInUse = errors.New("permkit: role is the instance default")

	// ErrAlreadyAssigned is returned when a user already holds a role in
	// the instance. A user holds at most one role per instance.
	ErrAlreadyAssigned = errors.New("permkit: user already has a role in this instance")

	// ErrNotAssigned is returned when revoking an assignment that does not
	// exist.
	ErrNotAssigned = errors.New("permkit: user has no role in this instance")

	// ErrNoUserID is returned when a user ID is required but missing from
	// context.
	ErrNoUserID = errors.New("permkit: no user ID in context")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("permkit: database error")
)

// Error wraps a sentinel error with the identifiers involved.
type Error struct {
	Err        error  // Underlying sentinel error
	Message    string // Additional context
	InstanceID string // Instance involved
	RoleID     string // Role involved (if applicable)
	UserID     string // User involved (if applicable)
	Model      string // Model type involved (if applicable)
	Field      string // Field name involved (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithInstance adds the instance to the error.
func (e *Error) WithInstance(instanceID string) *Error {
	e.InstanceID = instanceID
	return e
}

// WithRole adds the role to the error.
func (e *Error) WithRole(roleID string) *Error {
	e.RoleID = roleID
	return e
}

// WithUser adds the user to the error.
func (e *Error) WithUser(userID string) *Error {
	e.UserID = userID
	return e
}

// WithModel adds the model type (and optional field) to the error.
func (e *Error) WithModel(model ModelType, field string) *Error {
	e.Model = string(model)
	e.Field = field
	return e
}

// IsInstanceNotFound checks if an error is a missing-instance error.
func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}

// IsRoleNotFound checks if an error is a missing-role error.
func IsRoleNotFound(err error) bool {
	return errors.Is(err, ErrRoleNotFound)
}

// IsInvalidGrant checks if an error is a contradictory-grant error.
func IsInvalidGrant(err error) bool {
	return errors.Is(err, ErrInvalidGrant)
}

// IsRoleInUse checks if an error is a role-still-referenced error.
func IsRoleInUse(err error) bool {
	return errors.Is(err, ErrRoleInUse) || errors.Is(err, ErrDefaultRoleInUse)
}
