package permkit

import (
	"context"
	"fmt"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// ROLE AND GRANT OPERATIONS
// ============================================================================

// CreateRole creates a role in an instance. Roles start with no grants.
//
// Example:
//
//	editor, err := service.CreateRole(ctx, instanceID, "editor")
func (s *Service) CreateRole(ctx context.Context, instanceID, name string) (*Role, error) {
	// Instance must exist; this also yields ErrInstanceNotFound early.
	if _, err := s.LoadInstance(ctx, instanceID); err != nil {
		return nil, err
	}

	role := &Role{
		InstanceID: instanceID,
		Name:       name,
	}
	result, err := s.db.NewInsert().Model(role).Returning("*").Exec(ctx)
	if err := dbkit.WithErr(result, err, "CreateRole").Err(); err != nil {
		return nil, err
	}

	if err := s.logAudit(ctx, &AuditEntry{
		Action:     AuditRoleCreated,
		InstanceID: instanceID,
		RoleID:     role.ID,
		RoleName:   name,
	}); err != nil {
		return nil, err
	}

	s.registry.Invalidate(instanceID)
	return role, nil
}

// GetRole returns a role with its grants, or ErrRoleNotFound.
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	role := new(Role)
	err := s.db.NewSelect().Model(role).
		Relation("Grants").
		Where("r.id = ?", roleID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrRoleNotFound, "no role with this id").WithRole(roleID)
		}
		return nil, dbkit.WithErr1(err, "GetRole").Err()
	}
	return role, nil
}

// DeleteRole removes a role and its grants. Refused while any assignment
// references the role or while it is the instance default; callers must
// reassign users and pick a new default first.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	instance, err := s.LoadInstance(ctx, role.InstanceID)
	if err != nil {
		return err
	}
	if instance.DefaultRoleID == roleID {
		return NewError(ErrDefaultRoleInUse, "pick a new default role first").
			WithInstance(role.InstanceID).
			WithRole(roleID)
	}

	count, err := s.db.NewSelect().Model((*Assignment)(nil)).
		Where("a.role_id = ?", roleID).
		Count(ctx)
	if err != nil {
		return dbkit.WithErr1(err, "CountRoleAssignments").Err()
	}
	if count > 0 {
		return NewError(ErrRoleInUse, fmt.Sprintf("%d assignments reference this role", count)).
			WithInstance(role.InstanceID).
			WithRole(roleID)
	}

	err = s.Transaction(ctx, func(ctx context.Context) error {
		result, err := s.db.NewDelete().Model((*RoleGrant)(nil)).
			Where("role_id = ?", roleID).
			Exec(ctx)
		if err := dbkit.WithErr(result, err, "DeleteRoleGrants").Err(); err != nil {
			return err
		}

		result, err = s.db.NewDelete().Model((*Role)(nil)).
			Where("id = ?", roleID).
			Exec(ctx)
		if err := dbkit.WithErr(result, err, "DeleteRole").Err(); err != nil {
			return err
		}

		return s.logAudit(ctx, &AuditEntry{
			Action:     AuditRoleDeleted,
			InstanceID: role.InstanceID,
			RoleID:     roleID,
			RoleName:   role.Name,
		})
	})
	if err != nil {
		return err
	}

	s.registry.Invalidate(role.InstanceID)
	return nil
}

// SetDefaultRole makes a role the instance default, the one applied to
// users with no explicit assignment. At most one default exists per
// instance; the previous default loses the flag.
func (s *Service) SetDefaultRole(ctx context.Context, instanceID, roleID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.InstanceID != instanceID {
		return NewError(ErrRoleNotFound, "role belongs to a different instance").
			WithInstance(instanceID).
			WithRole(roleID)
	}

	err = s.Transaction(ctx, func(ctx context.Context) error {
		result, err := s.db.NewUpdate().Model((*Role)(nil)).
			Set("is_default = (id = ?)", roleID).
			Where("instance_id = ?", instanceID).
			Exec(ctx)
		if err := dbkit.WithErr(result, err, "SetDefaultFlag").Err(); err != nil {
			return err
		}

		result, err = s.db.NewUpdate().Model((*Instance)(nil)).
			Set("default_role_id = ?", roleID).
			Where("id = ?", instanceID).
			Exec(ctx)
		if err := dbkit.WithErr(result, err, "SetInstanceDefaultRole").Err(); err != nil {
			return err
		}

		return s.logAudit(ctx, &AuditEntry{
			Action:     AuditDefaultRoleChanged,
			InstanceID: instanceID,
			RoleID:     roleID,
			RoleName:   role.Name,
		})
	})
	if err != nil {
		return err
	}

	s.registry.Invalidate(instanceID)
	return nil
}

// AddGrant adds a grant to a role. Contradictory grants are rejected
// before they reach the registry: the model type and field name must
// exist, the level must be valid, and a field grant may not exceed the
// role's current model-level grant.
//
// Example:
//
//	// Editors may write trees, but only the diameter field of plots.
//	err := service.AddGrant(ctx, editorID, permkit.RoleGrant{
//	    Model: permkit.ModelTree, Level: permkit.LevelWrite,
//	})
//	err = service.AddGrant(ctx, editorID, permkit.RoleGrant{
//	    Model: permkit.ModelPlot, Field: "width", Level: permkit.LevelWrite,
//	})
func (s *Service) AddGrant(ctx context.Context, roleID string, grant RoleGrant) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	if err := validateGrant(role, grant); err != nil {
		return err
	}

	grant.ID = ""
	grant.RoleID = roleID
	result, err := s.db.NewInsert().Model(&grant).Returning("*").Exec(ctx)
	if err := dbkit.WithErr(result, err, "AddGrant").Err(); err != nil {
		return err
	}

	if err := s.logAudit(ctx, &AuditEntry{
		Action:     AuditGrantAdded,
		InstanceID: role.InstanceID,
		RoleID:     roleID,
		RoleName:   role.Name,
		Model:      grant.Model,
		Field:      grant.Field,
		Level:      grant.Level,
	}); err != nil {
		return err
	}

	s.registry.Invalidate(role.InstanceID)
	return nil
}

// RemoveGrant removes one grant from a role.
func (s *Service) RemoveGrant(ctx context.Context, roleID, grantID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	var removed *RoleGrant
	for _, g := range role.Grants {
		if g.ID == grantID {
			removed = g
			break
		}
	}
	if removed == nil {
		return NewError(ErrInvalidGrant, "grant does not belong to this role").WithRole(roleID)
	}

	result, err := s.db.NewDelete().Model((*RoleGrant)(nil)).
		Where("id = ? AND role_id = ?", grantID, roleID).
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "RemoveGrant").Err(); err != nil {
		return err
	}

	if err := s.logAudit(ctx, &AuditEntry{
		Action:     AuditGrantRemoved,
		InstanceID: role.InstanceID,
		RoleID:     roleID,
		RoleName:   role.Name,
		Model:      removed.Model,
		Field:      removed.Field,
		Level:      removed.Level,
	}); err != nil {
		return err
	}

	s.registry.Invalidate(role.InstanceID)
	return nil
}

// validateGrant checks a grant against the role's existing grants.
func validateGrant(role *Role, grant RoleGrant) error {
	if !grant.Model.Valid() {
		return NewError(ErrInvalidModel, fmt.Sprintf("unknown model type %q", grant.Model)).
			WithRole(role.ID).
			WithModel(grant.Model, grant.Field)
	}
	if !grant.Level.Valid() {
		return NewError(ErrInvalidLevel, fmt.Sprintf("unknown level %d", uint8(grant.Level))).
			WithRole(role.ID).
			WithModel(grant.Model, grant.Field)
	}
	if grant.IsModelGrant() {
		return nil
	}

	if !KnownField(grant.Model, grant.Field) {
		return NewError(ErrInvalidGrant, fmt.Sprintf("%s has no field %q", grant.Model, grant.Field)).
			WithRole(role.ID).
			WithModel(grant.Model, grant.Field)
	}

	// A field grant may not exceed the role's model-level grant. The
	// resolver clamps at read time regardless, but contradictory grants
	// never reach storage in the first place.
	baseLevel, ownerLevel := LevelNone, LevelNone
	for _, g := range role.Grants {
		if !g.IsModelGrant() || g.Model != grant.Model {
			continue
		}
		if g.OwnerOnly {
			ownerLevel = MaxLevel(ownerLevel, g.Level)
		} else {
			baseLevel = MaxLevel(baseLevel, g.Level)
			ownerLevel = MaxLevel(ownerLevel, g.Level)
		}
	}
	modelLevel := baseLevel
	if grant.OwnerOnly {
		modelLevel = ownerLevel
	}
	if grant.Level > modelLevel {
		return NewError(ErrInvalidGrant,
			fmt.Sprintf("field grant %s exceeds model grant %s", grant.Level, modelLevel)).
			WithRole(role.ID).
			WithModel(grant.Model, grant.Field)
	}
	return nil
}
