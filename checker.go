package permkit

// Object-level permission decisions.
//
// All authorization logic that has to walk relationships between model
// types lives here, in one auditable place: the checker dereferences the
// object (its instance, its owner) rather than asking each domain model
// to check itself. Decisions are pure functions of the already-resolved
// context and object; they perform no I/O and never log.

// Reason explains why an action was denied. Denial is data, not an
// error: callers branch on the Decision and use the reason to produce an
// accurate user-facing message.
type Reason string

const (
	// ReasonCrossInstance: the object belongs to a different instance
	// than the context. Absolute; no grant can override it.
	ReasonCrossInstance Reason = "cross-instance"

	// ReasonInsufficientModelGrant: the role's model-level grant does not
	// cover the action.
	ReasonInsufficientModelGrant Reason = "insufficient-model-grant"

	// ReasonInsufficientFieldGrant: the role's field-level grant does not
	// cover the action on this field.
	ReasonInsufficientFieldGrant Reason = "insufficient-field-grant"

	// ReasonNotOwner: an owner-scoped grant would allow the action, but
	// the requester does not own the object.
	ReasonNotOwner Reason = "not-owner"

	// ReasonFeatureDisabled: the object's model requires an instance
	// feature that is not enabled.
	ReasonFeatureDisabled Reason = "feature-disabled"

	// ReasonUnknownModel: the object is not one of the known domain
	// models. Fail closed.
	ReasonUnknownModel Reason = "unknown-model"
)

// Decision is the outcome of one permission check. An action is either
// fully authorized or fully denied; there is no partial success.
type Decision struct {
	Allowed bool
	Reason  Reason // empty when allowed
	Action  Action
	Model   ModelType
	Field   string // set for field-level decisions
}

func allowed(action Action, model ModelType) Decision {
	return Decision{Allowed: true, Action: action, Model: model}
}

func denied(action Action, model ModelType, reason Reason) Decision {
	return Decision{Action: action, Model: model, Reason: reason}
}

// Decide checks whether the context may perform an action on a concrete
// domain object. Checks short-circuit cheapest and most authoritative
// first: tenant isolation, then the instance feature gate, then the
// role's grant with ownership escalation.
func Decide(pc *PermissionContext, action Action, obj interface{}) Decision {
	ref, ok := refOf(obj)
	if !ok {
		return denied(action, "", ReasonUnknownModel)
	}
	return decideRef(pc, action, ref)
}

// Can is the boolean form of Decide.
func Can(pc *PermissionContext, action Action, obj interface{}) bool {
	return Decide(pc, action, obj).Allowed
}

// DecideCreate checks whether the context may create objects of a model
// type in its own instance. Creation has no existing object to walk, so
// only the feature gate and the model grant apply; owner-scoped grants
// count because the creator owns what it creates.
func DecideCreate(pc *PermissionContext, model ModelType) Decision {
	if !model.Valid() {
		return denied(ActionCreate, model, ReasonUnknownModel)
	}
	if d, blocked := featureGate(pc, ActionCreate, model); blocked {
		return d
	}
	entry := pc.Role.modelEntry(model)
	level := entry.level
	if !pc.Anonymous() {
		level = entry.ownerLevel
	}
	if level.AtLeast(LevelWrite) {
		return allowed(ActionCreate, model)
	}
	return denied(ActionCreate, model, ReasonInsufficientModelGrant)
}

// DecideField checks an action against one field of a concrete object.
// The field level is already clamped to the model level, so a field
// check subsumes the model gate; tenant isolation and the feature gate
// still apply first.
func DecideField(pc *PermissionContext, action Action, obj interface{}, field string) Decision {
	ref, ok := refOf(obj)
	if !ok {
		d := denied(action, "", ReasonUnknownModel)
		d.Field = field
		return d
	}

	withField := func(d Decision) Decision {
		d.Field = field
		return d
	}

	if ref.instanceID != pc.Instance.ID {
		return withField(denied(action, ref.model, ReasonCrossInstance))
	}
	if d, blocked := featureGate(pc, action, ref.model); blocked {
		return withField(d)
	}

	need := action.Requires()
	owner := pc.ownsObject(ref)
	if fieldLevel(pc.Role, ref.model, field, owner).AtLeast(need) {
		return withField(allowed(action, ref.model))
	}

	// Would an owner-escalated grant have sufficed?
	if !owner && ref.hasOwner && fieldLevel(pc.Role, ref.model, field, true).AtLeast(need) {
		return withField(denied(action, ref.model, ReasonNotOwner))
	}

	reason := ReasonInsufficientFieldGrant
	if !pc.Role.modelEntry(ref.model).levelFor(owner).AtLeast(need) {
		reason = ReasonInsufficientModelGrant
	}
	return withField(denied(action, ref.model, reason))
}

func decideRef(pc *PermissionContext, action Action, ref objectRef) Decision {
	// Tenant isolation comes first and is absolute.
	if ref.instanceID != pc.Instance.ID {
		return denied(action, ref.model, ReasonCrossInstance)
	}

	if d, blocked := featureGate(pc, action, ref.model); blocked {
		return d
	}

	need := action.Requires()
	entry := pc.Role.modelEntry(ref.model)

	if entry.level.AtLeast(need) {
		return allowed(action, ref.model)
	}

	// Ownership escalation: an owner-scoped grant applies only after
	// dereferencing the object's owner relationship.
	if entry.ownerLevel.AtLeast(need) && ref.hasOwner {
		if pc.ownsObject(ref) {
			return allowed(action, ref.model)
		}
		return denied(action, ref.model, ReasonNotOwner)
	}

	return denied(action, ref.model, ReasonInsufficientModelGrant)
}

func featureGate(pc *PermissionContext, action Action, model ModelType) (Decision, bool) {
	feature, gated := modelFeatures[model]
	if gated && !pc.Instance.FeatureEnabled(feature) {
		return denied(action, model, ReasonFeatureDisabled), true
	}
	return Decision{}, false
}

// Checker bundles a resolved PermissionContext for storage in a request
// context. Handlers retrieve it once and run every check in the request
// against the same resolved state.
type Checker struct {
	pc *PermissionContext
}

// NewChecker creates a Checker bound to a resolved context.
func NewChecker(pc *PermissionContext) *Checker {
	return &Checker{pc: pc}
}

// Context returns the underlying PermissionContext.
func (c *Checker) Context() *PermissionContext {
	return c.pc
}

// Can checks an action against an object.
func (c *Checker) Can(action Action, obj interface{}) bool {
	return Can(c.pc, action, obj)
}

// Decide checks an action against an object and returns the full
// decision.
func (c *Checker) Decide(action Action, obj interface{}) Decision {
	return Decide(c.pc, action, obj)
}

// CanCreate checks whether the context may create objects of a model
// type.
func (c *Checker) CanCreate(model ModelType) bool {
	return DecideCreate(c.pc, model).Allowed
}

// DecideField checks an action against one field of an object.
func (c *Checker) DecideField(action Action, obj interface{}, field string) Decision {
	return DecideField(c.pc, action, obj, field)
}

// FieldPermission returns the effective level for a field of a model.
func (c *Checker) FieldPermission(model ModelType, field string) Level {
	return FieldPermission(c.pc, model, field)
}

// VisibleFields returns the fields of a model the user may render.
func (c *Checker) VisibleFields(model ModelType) []string {
	return VisibleFields(c.pc, model)
}

// WritableFields returns the fields of a model the user may edit.
func (c *Checker) WritableFields(model ModelType) []string {
	return WritableFields(c.pc, model)
}
