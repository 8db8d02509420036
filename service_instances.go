package permkit

import (
	"context"
	"strings"

	"github.com/fernandezvara/dbkit"
)

// ============================================================================
// INSTANCE OPERATIONS
// ============================================================================

// CreateInstance creates an instance together with its default role in
// one transaction. Instances and roles reference each other, so both
// sides are written before the transaction commits. The default role
// starts with no grants; administrators add grants afterwards.
//
// Example:
//
//	instance, err := service.CreateInstance(ctx, "Greenville Trees", "greenville",
//	    permkit.FeaturePhotos)
func (s *Service) CreateInstance(ctx context.Context, name, urlName string, features ...string) (*Instance, error) {
	instance := &Instance{
		Name:     name,
		URLName:  strings.ToLower(urlName),
		Features: features,
	}

	err := s.Transaction(ctx, func(ctx context.Context) error {
		result, err := s.db.NewInsert().Model(instance).Returning("*").Exec(ctx)
		if err := dbkit.WithErr(result, err, "CreateInstance").Err(); err != nil {
			return err
		}

		role := &Role{
			InstanceID: instance.ID,
			Name:       "default",
			IsDefault:  true,
		}
		result, err = s.db.NewInsert().Model(role).Returning("*").Exec(ctx)
		if err := dbkit.WithErr(result, err, "CreateDefaultRole").Err(); err != nil {
			return err
		}

		instance.DefaultRoleID = role.ID
		result, err = s.db.NewUpdate().Model(instance).
			Column("default_role_id").
			WherePK().
			Exec(ctx)
		if err := dbkit.WithErr(result, err, "SetDefaultRoleID").Err(); err != nil {
			return err
		}

		return s.logAudit(ctx, &AuditEntry{
			Action:     AuditInstanceCreated,
			InstanceID: instance.ID,
			RoleID:     role.ID,
			RoleName:   role.Name,
		})
	})
	if err != nil {
		return nil, err
	}

	return instance, nil
}

// GetInstance returns an instance by ID, or ErrInstanceNotFound.
func (s *Service) GetInstance(ctx context.Context, instanceID string) (*Instance, error) {
	return s.LoadInstance(ctx, instanceID)
}

// GetInstanceByURLName returns an instance by its URL name.
func (s *Service) GetInstanceByURLName(ctx context.Context, urlName string) (*Instance, error) {
	instance := new(Instance)
	err := s.db.NewSelect().Model(instance).
		Where("i.url_name = ?", strings.ToLower(urlName)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrInstanceNotFound, "no instance with this url name")
		}
		return nil, dbkit.WithErr1(err, "GetInstanceByURLName").Err()
	}
	return instance, nil
}

// SetFeatureEnabled enables or disables an optional feature on an
// instance and invalidates its cached snapshot so the change takes
// effect on the next check.
func (s *Service) SetFeatureEnabled(ctx context.Context, instanceID, feature string, enabled bool) error {
	instance, err := s.LoadInstance(ctx, instanceID)
	if err != nil {
		return err
	}

	features := instance.Features[:0:0]
	for _, f := range instance.Features {
		if f != feature {
			features = append(features, f)
		}
	}
	if enabled {
		features = append(features, feature)
	}
	instance.Features = features

	result, err := s.db.NewUpdate().Model(instance).
		Column("features", "updated_at").
		WherePK().
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "SetFeatureEnabled").Err(); err != nil {
		return err
	}

	if err := s.logAudit(ctx, &AuditEntry{
		Action:     AuditFeatureChanged,
		InstanceID: instanceID,
		Metadata:   map[string]interface{}{"feature": feature, "enabled": enabled},
	}); err != nil {
		return err
	}

	s.registry.Invalidate(instanceID)
	return nil
}

// InstanceAccessible reports whether a user may see an instance at all:
// public instances are open to everyone, private ones require an
// assignment. This guards the outer map view; per-object checks still
// apply inside.
func (s *Service) InstanceAccessible(ctx context.Context, userID, instanceID string) (bool, error) {
	instance, err := s.LoadInstance(ctx, instanceID)
	if err != nil {
		return false, err
	}
	if instance.IsPublic {
		return true, nil
	}
	if userID == "" {
		return false, nil
	}
	assignment, err := s.LoadAssignment(ctx, userID, instanceID)
	if err != nil {
		return false, err
	}
	return assignment != nil, nil
}
