package permkit

import "context"

// ============================================================================
// PERMISSION CHECKING CONVENIENCE
// ============================================================================

// Convenience wrappers that resolve a context and run one check. Views
// handling several objects per request should resolve the context once
// via GetContext or GetChecker and reuse it instead.

// Can checks whether a user may perform an action on an object.
// Resolution failures (unknown instance) read as denied.
func (s *Service) Can(ctx context.Context, userID, instanceID string, action Action, obj interface{}) bool {
	pc, err := s.GetContext(ctx, userID, instanceID)
	if err != nil {
		return false
	}
	return Can(pc, action, obj)
}

// Decide checks an action against an object and returns the full
// decision. Unknown instances surface as an error, not a denial.
func (s *Service) Decide(ctx context.Context, userID, instanceID string, action Action, obj interface{}) (Decision, error) {
	pc, err := s.GetContext(ctx, userID, instanceID)
	if err != nil {
		return Decision{}, err
	}
	return Decide(pc, action, obj), nil
}

// FieldPermission returns the effective level a user holds for one field
// of a model in an instance.
func (s *Service) FieldPermission(ctx context.Context, userID, instanceID string, model ModelType, field string) (Level, error) {
	pc, err := s.GetContext(ctx, userID, instanceID)
	if err != nil {
		return LevelNone, err
	}
	return FieldPermission(pc, model, field), nil
}

// WritableFields returns the fields of a model a user may edit in an
// instance.
func (s *Service) WritableFields(ctx context.Context, userID, instanceID string, model ModelType) ([]string, error) {
	pc, err := s.GetContext(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	return WritableFields(pc, model), nil
}
