package permkit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// Service implements Loader: it is the single place instance, role and
// assignment records are read from storage on behalf of the registry.

// LoadInstance returns the instance record, or ErrInstanceNotFound.
func (s *Service) LoadInstance(ctx context.Context, instanceID string) (*Instance, error) {
	instance := new(Instance)
	err := s.db.NewSelect().Model(instance).Where("i.id = ?", instanceID).Limit(1).Scan(ctx)
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrInstanceNotFound, "no instance with this id").WithInstance(instanceID)
		}
		return nil, dbkit.WithErr1(err, "LoadInstance").Err()
	}
	return instance, nil
}

// LoadRoles returns every role of the instance with grants populated.
func (s *Service) LoadRoles(ctx context.Context, instanceID string) ([]*Role, error) {
	var roles []*Role
	err := dbkit.WithErr1(
		s.db.NewSelect().Model(&roles).
			Relation("Grants").
			Where("r.instance_id = ?", instanceID).
			Order("r.created_at ASC").
			Scan(ctx),
		"LoadRoles").Err()
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// LoadAssignment returns the user's assignment in the instance, or
// (nil, nil) when none exists.
func (s *Service) LoadAssignment(ctx context.Context, userID, instanceID string) (*Assignment, error) {
	assignment := new(Assignment)
	err := s.db.NewSelect().Model(assignment).
		Where("a.user_id = ? AND a.instance_id = ?", userID, instanceID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, nil
		}
		return nil, dbkit.WithErr1(err, "LoadAssignment").Err()
	}
	return assignment, nil
}
