package permkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// ASSIGNMENT OPERATIONS
// ============================================================================

// Assign binds a user to a role within the role's instance. A user holds
// at most one role per instance; assigning a second returns
// ErrAlreadyAssigned (use Reassign to change roles).
//
// Example:
//
//	err := service.Assign(ctx, userID, instanceID, editorRoleID)
func (s *Service) Assign(ctx context.Context, userID, instanceID, roleID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.InstanceID != instanceID {
		return NewError(ErrRoleNotFound, "role belongs to a different instance").
			WithInstance(instanceID).
			WithRole(roleID)
	}

	existing, err := s.LoadAssignment(ctx, userID, instanceID)
	if err != nil {
		return err
	}
	if existing != nil {
		return NewError(ErrAlreadyAssigned, "use Reassign to change roles").
			WithInstance(instanceID).
			WithUser(userID)
	}

	assignment := &Assignment{
		UserID:     userID,
		InstanceID: instanceID,
		RoleID:     roleID,
	}
	result, err := s.db.NewInsert().Model(assignment).Exec(ctx)
	if err != nil {
		if dbkit.IsDuplicate(err) {
			// Lost a race with a concurrent Assign for the same pair.
			return NewError(ErrAlreadyAssigned, "concurrent assignment").
				WithInstance(instanceID).
				WithUser(userID)
		}
		return dbkit.WithErr(result, err, "Assign").Err()
	}

	if err := s.logAudit(ctx, &AuditEntry{
		Action:       AuditRoleAssigned,
		InstanceID:   instanceID,
		RoleID:       roleID,
		RoleName:     role.Name,
		TargetUserID: userID,
	}); err != nil {
		return err
	}

	s.registry.Invalidate(instanceID)
	return nil
}

// Reassign changes the role a user holds in an instance.
func (s *Service) Reassign(ctx context.Context, userID, instanceID, roleID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.InstanceID != instanceID {
		return NewError(ErrRoleNotFound, "role belongs to a different instance").
			WithInstance(instanceID).
			WithRole(roleID)
	}

	assignment, err := s.LoadAssignment(ctx, userID, instanceID)
	if err != nil {
		return err
	}
	if assignment == nil {
		return NewError(ErrNotAssigned, "assign a role first").
			WithInstance(instanceID).
			WithUser(userID)
	}

	assignment.RoleID = roleID
	result, err := s.db.NewUpdate().Model(assignment).
		Column("role_id", "updated_at").
		WherePK().
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "Reassign").Err(); err != nil {
		return err
	}

	if err := s.logAudit(ctx, &AuditEntry{
		Action:       AuditRoleAssigned,
		InstanceID:   instanceID,
		RoleID:       roleID,
		RoleName:     role.Name,
		TargetUserID: userID,
		Metadata:     map[string]interface{}{"reassigned": true},
	}); err != nil {
		return err
	}

	s.registry.Invalidate(instanceID)
	return nil
}

// Revoke removes a user's assignment from an instance. The user falls
// back to the instance's default role afterwards.
func (s *Service) Revoke(ctx context.Context, userID, instanceID string) error {
	assignment, err := s.LoadAssignment(ctx, userID, instanceID)
	if err != nil {
		return err
	}
	if assignment == nil {
		return NewError(ErrNotAssigned, "nothing to revoke").
			WithInstance(instanceID).
			WithUser(userID)
	}

	result, err := s.db.NewDelete().Model((*Assignment)(nil)).
		Where("user_id = ? AND instance_id = ?", userID, instanceID).
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "Revoke").Err(); err != nil {
		return err
	}

	if err := s.logAudit(ctx, &AuditEntry{
		Action:       AuditRoleRevoked,
		InstanceID:   instanceID,
		RoleID:       assignment.RoleID,
		TargetUserID: userID,
	}); err != nil {
		return err
	}

	s.registry.Invalidate(instanceID)
	return nil
}

// GetInstanceMembers retrieves every assignment in an instance.
func (s *Service) GetInstanceMembers(ctx context.Context, instanceID string) ([]Assignment, error) {
	var assignments []Assignment
	err := dbkit.WithErr1(
		s.db.NewSelect().Model(&assignments).
			Where("a.instance_id = ?", instanceID).
			Order("a.created_at ASC").
			Scan(ctx),
		"GetInstanceMembers").Err()
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// GetMembersWithRole retrieves every assignment of one role.
func (s *Service) GetMembersWithRole(ctx context.Context, roleID string) ([]Assignment, error) {
	var assignments []Assignment
	err := dbkit.WithErr1(
		s.db.NewSelect().Model(&assignments).
			Where("a.role_id = ?", roleID).
			Scan(ctx),
		"GetMembersWithRole").Err()
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// GetUserInstances returns the instance IDs where a user holds an
// explicit assignment.
func (s *Service) GetUserInstances(ctx context.Context, userID string) ([]string, error) {
	var instanceIDs []string
	err := dbkit.WithErr1(
		s.db.NewRaw("SELECT DISTINCT instance_id FROM assignments WHERE user_id = ?", userID).
			Scan(ctx, &instanceIDs),
		"GetUserInstances").Err()
	if err != nil {
		return nil, err
	}
	return instanceIDs, nil
}
