package permkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAuditFilter(t *testing.T) {
	f := NewAuditFilter()
	assert.Equal(t, 100, f.Limit)
	assert.Zero(t, f.Offset)
	assert.Empty(t, f.ActorID)
}

func TestAuditFilterBuilder(t *testing.T) {
	since := time.Now().Add(-time.Hour)
	until := time.Now()

	f := NewAuditFilter().
		WithActor("admin-1").
		WithTargetUser("user-1").
		WithInstance("instance-1").
		WithRole("role-1").
		WithAction(AuditGrantAdded).
		WithTimeRange(since, until).
		WithPagination(25, 50)

	assert.Equal(t, "admin-1", f.ActorID)
	assert.Equal(t, "user-1", f.TargetUserID)
	assert.Equal(t, "instance-1", f.InstanceID)
	assert.Equal(t, "role-1", f.RoleID)
	assert.Equal(t, "grant.added", f.Action)
	assert.Equal(t, since, f.Since)
	assert.Equal(t, until, f.Until)
	assert.Equal(t, 25, f.Limit)
	assert.Equal(t, 50, f.Offset)
}

func TestAuditFilterValueSemantics(t *testing.T) {
	// Each With call returns a copy; the base filter stays untouched.
	base := NewAuditFilter()
	derived := base.WithInstance("instance-1").WithLimit(10)

	assert.Empty(t, base.InstanceID)
	assert.Equal(t, 100, base.Limit)
	assert.Equal(t, "instance-1", derived.InstanceID)
	assert.Equal(t, 10, derived.Limit)
}
