package permkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// Service is the storage path for instances, roles, grants and
// assignments, and the Loader behind the role registry. It is the only
// component that touches the database: decision functions receive
// already-resolved data and never perform I/O.
//
// Every mutation validates the schema invariants (one default role per
// instance, one assignment per user and instance, field grants within
// their model grant), writes an audit row, and invalidates the affected
// instance's registry snapshot.
//
// Error Handling:
// Database operations use dbkit's chainable error wrapping so failures
// carry the operation name and preserve the original error type for
// classification:
//
//	err := service.Assign(ctx, userID, instanceID, roleID)
//	if err != nil {
//	    if dbkit.IsDuplicate(err) {
//	        // concurrent assignment of the same user
//	    }
//	    if permkit.IsRoleInUse(err) {
//	        // role cannot be deleted while assignments reference it
//	    }
//	}
type Service struct {
	db        dbkit.IDB
	registry  *Registry
	txMonitor *transactionMonitor
}

// NewService creates a permkit service over a database handle. The
// service backs its own registry; use Registry() to resolve contexts.
//
// Example:
//
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	service := permkit.NewService(db)
//	pc, _ := service.GetContext(ctx, userID, instanceID)
func NewService(db dbkit.IDB) *Service {
	s := &Service{
		db:        db,
		txMonitor: newTransactionMonitor(),
	}
	s.registry = NewRegistry(s)
	return s
}

// Registry returns the role registry backed by this service.
func (s *Service) Registry() *Registry {
	return s.registry
}

// GetContext resolves the permission context for one operation.
func (s *Service) GetContext(ctx context.Context, userID, instanceID string) (*PermissionContext, error) {
	return ResolveContext(ctx, s.registry, userID, instanceID)
}

// GetChecker resolves a context and wraps it in a Checker for storage in
// a request context.
func (s *Service) GetChecker(ctx context.Context, userID, instanceID string) (*Checker, error) {
	pc, err := s.GetContext(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	return NewChecker(pc), nil
}

// logAudit writes one audit row, filling request metadata from context.
func (s *Service) logAudit(ctx context.Context, entry *AuditEntry) error {
	ac := GetAuditContext(ctx)
	if entry.ActorID == "" {
		entry.ActorID = ac.ActorID
	}
	entry.IPAddress = ac.IPAddress
	entry.UserAgent = ac.UserAgent
	entry.RequestID = ac.RequestID

	_, err := s.db.NewInsert().Model(entry.ToModel()).Exec(ctx)
	return dbkit.WithErr1(err, "LogAudit").Err()
}

// GetAuditLog retrieves audit log entries with optional filters.
func (s *Service) GetAuditLog(ctx context.Context, filter AuditFilter) ([]GrantAudit, error) {
	var logs []GrantAudit
	q := s.db.NewSelect().Model(&logs)
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.TargetUserID != "" {
		q = q.Where("target_user_id = ?", filter.TargetUserID)
	}
	if filter.InstanceID != "" {
		q = q.Where("instance_id = ?", filter.InstanceID)
	}
	if filter.RoleID != "" {
		q = q.Where("role_id = ?", filter.RoleID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("timestamp <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 100 // Default limit
	}
	q = q.Limit(limit)

	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	q = q.Order("timestamp DESC")
	err := dbkit.WithErr1(q.Scan(ctx), "GetAuditLog").Err()
	if err != nil {
		return nil, err
	}

	return logs, nil
}
