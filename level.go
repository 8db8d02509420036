package permkit

import (
	"database/sql/driver"
	"fmt"
)

// Level is the permission level a grant confers on a model or field.
// Levels are ordered: none < read < write. Combining a field-level grant
// with its model-level grant always takes the minimum of the two, so a
// field can never be more permissive than its model.
type Level uint8

const (
	// LevelNone grants nothing. It is the zero value and the fallback for
	// any model or field a role has no grant for.
	LevelNone Level = iota

	// LevelRead allows viewing a model or field.
	LevelRead

	// LevelWrite allows creating, updating and deleting. Write implies read.
	LevelWrite
)

var levelNames = map[Level]string{
	LevelNone:  "none",
	LevelRead:  "read",
	LevelWrite: "write",
}

// String returns the storage/display name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// Valid reports whether the level is one of the defined constants.
func (l Level) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// AtLeast reports whether the level meets or exceeds the required level.
func (l Level) AtLeast(required Level) bool {
	return l >= required
}

// Clamp returns the level limited to the given ceiling. This is how the
// field-grant-never-exceeds-model-grant invariant is enforced at read
// time: a contradictory stored grant resolves to the model ceiling
// instead of erroring.
func (l Level) Clamp(ceiling Level) Level {
	if l > ceiling {
		return ceiling
	}
	return l
}

// Value implements driver.Valuer so levels are stored as text.
func (l Level) Value() (driver.Value, error) {
	if !l.Valid() {
		return nil, NewError(ErrInvalidLevel, fmt.Sprintf("cannot store level %d", uint8(l)))
	}
	return l.String(), nil
}

// Scan implements sql.Scanner for text columns.
func (l *Level) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseLevel(v)
		if err != nil {
			return err
		}
		*l = parsed
		return nil
	case []byte:
		return l.Scan(string(v))
	case nil:
		*l = LevelNone
		return nil
	default:
		return NewError(ErrInvalidLevel, fmt.Sprintf("cannot scan %T into Level", src))
	}
}

// ParseLevel converts a storage string into a Level.
func ParseLevel(s string) (Level, error) {
	for level, name := range levelNames {
		if name == s {
			return level, nil
		}
	}
	return LevelNone, NewError(ErrInvalidLevel, fmt.Sprintf("unknown permission level %q", s))
}

// MaxLevel returns the higher of two levels.
func MaxLevel(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

// Action is an operation a caller wants to perform on a domain object.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether the action is one of the defined constants.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Requires returns the grant level the action needs. Read-class actions
// need at least read; every mutation needs write.
func (a Action) Requires() Level {
	if a == ActionRead {
		return LevelRead
	}
	return LevelWrite
}

// String returns the action name.
func (a Action) String() string {
	return string(a)
}
