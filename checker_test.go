package permkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideModelGrant(t *testing.T) {
	instance := testInstance()
	pc := testContext("user-1", instance, modelGrant(ModelPlot, LevelWrite))
	plot := &Plot{ID: "plot-1", InstanceID: instance.ID}

	assert.True(t, Can(pc, ActionRead, plot))
	assert.True(t, Can(pc, ActionUpdate, plot))
	assert.True(t, Can(pc, ActionDelete, plot))
}

func TestDecideViewerCannotWrite(t *testing.T) {
	instance := testInstance()
	pc := testContext("user-1", instance, modelGrant(ModelPlot, LevelRead))
	plot := &Plot{ID: "plot-1", InstanceID: instance.ID}

	assert.True(t, Can(pc, ActionRead, plot))

	d := Decide(pc, ActionUpdate, plot)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInsufficientModelGrant, d.Reason)
	assert.Equal(t, ActionUpdate, d.Action)
	assert.Equal(t, ModelPlot, d.Model)
}

func TestDecideNoGrant(t *testing.T) {
	instance := testInstance()
	pc := testContext("user-1", instance)
	plot := &Plot{ID: "plot-1", InstanceID: instance.ID}

	d := Decide(pc, ActionRead, plot)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInsufficientModelGrant, d.Reason)
}

func TestDecideCrossInstanceAbsolute(t *testing.T) {
	// Even a full write grant never reaches across the tenant boundary.
	instance := testInstance()
	pc := testContext("user-1", instance, modelGrant(ModelPlot, LevelWrite))
	foreign := &Plot{ID: "plot-1", InstanceID: "some-other-instance"}

	for _, action := range []Action{ActionRead, ActionUpdate, ActionDelete} {
		d := Decide(pc, action, foreign)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonCrossInstance, d.Reason)
	}
}

func TestDecideOwnershipEscalation(t *testing.T) {
	instance := testInstance()
	pc := testContext("user-1", instance,
		modelGrant(ModelTree, LevelRead),
		ownerGrant(ModelTree, LevelWrite),
	)

	mine := &Tree{ID: "tree-1", InstanceID: instance.ID, OwnerID: "user-1"}
	theirs := &Tree{ID: "tree-2", InstanceID: instance.ID, OwnerID: "user-2"}

	assert.True(t, Can(pc, ActionUpdate, mine))
	assert.True(t, Can(pc, ActionRead, theirs))

	d := Decide(pc, ActionUpdate, theirs)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotOwner, d.Reason)
}

func TestDecideAnonymousNoEscalation(t *testing.T) {
	// Anonymous callers never own anything, even when the object's
	// owner id happens to be empty too.
	instance := testInstance()
	pc := testContext("", instance,
		modelGrant(ModelTree, LevelRead),
		ownerGrant(ModelTree, LevelWrite),
	)
	tree := &Tree{ID: "tree-1", InstanceID: instance.ID, OwnerID: ""}

	d := Decide(pc, ActionUpdate, tree)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotOwner, d.Reason)
}

func TestDecideOwnerGrantOnOwnerlessModel(t *testing.T) {
	// Plots have no owner, so an owner-scoped grant never applies.
	instance := testInstance()
	pc := testContext("user-1", instance, ownerGrant(ModelPlot, LevelWrite))
	plot := &Plot{ID: "plot-1", InstanceID: instance.ID}

	d := Decide(pc, ActionUpdate, plot)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInsufficientModelGrant, d.Reason)
}

func TestDecideFeatureDisabled(t *testing.T) {
	instance := testInstance() // photos feature off
	pc := testContext("user-1", instance, modelGrant(ModelPhoto, LevelWrite))
	photo := &Photo{ID: "photo-1", InstanceID: instance.ID, OwnerID: "user-1"}

	d := Decide(pc, ActionRead, photo)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonFeatureDisabled, d.Reason)
}

func TestDecideFeatureEnabled(t *testing.T) {
	instance := testInstance(FeaturePhotos)
	pc := testContext("user-1", instance, modelGrant(ModelPhoto, LevelWrite))
	photo := &Photo{ID: "photo-1", InstanceID: instance.ID, OwnerID: "user-2"}

	assert.True(t, Can(pc, ActionUpdate, photo))
}

func TestDecideUnknownModel(t *testing.T) {
	pc := testContext("user-1", testInstance(), modelGrant(ModelPlot, LevelWrite))

	d := Decide(pc, ActionRead, &Instance{ID: "x"})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUnknownModel, d.Reason)
}

func TestDecideIdempotent(t *testing.T) {
	instance := testInstance()
	pc := testContext("user-1", instance, modelGrant(ModelTree, LevelRead))
	tree := &Tree{ID: "tree-1", InstanceID: instance.ID, OwnerID: "user-2"}

	first := Decide(pc, ActionUpdate, tree)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Decide(pc, ActionUpdate, tree))
	}
}

func TestDecideCreate(t *testing.T) {
	instance := testInstance()
	editor := testContext("user-1", instance, modelGrant(ModelPlot, LevelWrite))
	viewer := testContext("user-2", instance, modelGrant(ModelPlot, LevelRead))

	assert.True(t, DecideCreate(editor, ModelPlot).Allowed)

	d := DecideCreate(viewer, ModelPlot)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInsufficientModelGrant, d.Reason)
	assert.Equal(t, ActionCreate, d.Action)
}

func TestDecideCreateOwnerGrant(t *testing.T) {
	// The creator owns what it creates, so an owner-scoped write grant
	// allows creation for authenticated users only.
	instance := testInstance()
	member := testContext("user-1", instance, ownerGrant(ModelTree, LevelWrite))
	anon := testContext("", instance, ownerGrant(ModelTree, LevelWrite))

	assert.True(t, DecideCreate(member, ModelTree).Allowed)
	assert.False(t, DecideCreate(anon, ModelTree).Allowed)
}

func TestDecideCreateFeatureGate(t *testing.T) {
	instance := testInstance()
	pc := testContext("user-1", instance, modelGrant(ModelPhoto, LevelWrite))

	d := DecideCreate(pc, ModelPhoto)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonFeatureDisabled, d.Reason)
}

func TestDecideCreateUnknownModel(t *testing.T) {
	pc := testContext("user-1", testInstance())
	d := DecideCreate(pc, ModelType("Boundary"))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUnknownModel, d.Reason)
}

func TestDecideFieldAllowed(t *testing.T) {
	instance := testInstance()
	pc := testContext("user-1", instance,
		modelGrant(ModelTree, LevelWrite),
		fieldGrant(ModelTree, "species", LevelRead),
	)
	tree := &Tree{ID: "tree-1", InstanceID: instance.ID}

	d := DecideField(pc, ActionUpdate, tree, "diameter")
	assert.True(t, d.Allowed)
	assert.Equal(t, "diameter", d.Field)
}

func TestDecideFieldInsufficientFieldGrant(t *testing.T) {
	instance := testInstance()
	pc := testContext("user-1", instance,
		modelGrant(ModelTree, LevelWrite),
		fieldGrant(ModelTree, "species", LevelRead),
	)
	tree := &Tree{ID: "tree-1", InstanceID: instance.ID}

	d := DecideField(pc, ActionUpdate, tree, "species")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInsufficientFieldGrant, d.Reason)
	assert.Equal(t, "species", d.Field)
}

func TestDecideFieldInsufficientModelGrant(t *testing.T) {
	// When the model grant itself is what falls short, the denial says
	// so instead of blaming the field.
	instance := testInstance()
	pc := testContext("user-1", instance, modelGrant(ModelTree, LevelRead))
	tree := &Tree{ID: "tree-1", InstanceID: instance.ID}

	d := DecideField(pc, ActionUpdate, tree, "species")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInsufficientModelGrant, d.Reason)
}

func TestDecideFieldOwnerEscalation(t *testing.T) {
	instance := testInstance()
	pc := testContext("user-1", instance,
		modelGrant(ModelTree, LevelRead),
		ownerGrant(ModelTree, LevelWrite),
	)
	mine := &Tree{ID: "tree-1", InstanceID: instance.ID, OwnerID: "user-1"}
	theirs := &Tree{ID: "tree-2", InstanceID: instance.ID, OwnerID: "user-2"}

	assert.True(t, DecideField(pc, ActionUpdate, mine, "height").Allowed)

	d := DecideField(pc, ActionUpdate, theirs, "height")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotOwner, d.Reason)
}

func TestDecideFieldCrossInstance(t *testing.T) {
	pc := testContext("user-1", testInstance(), modelGrant(ModelTree, LevelWrite))
	foreign := &Tree{ID: "tree-1", InstanceID: "some-other-instance"}

	d := DecideField(pc, ActionUpdate, foreign, "species")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonCrossInstance, d.Reason)
	assert.Equal(t, "species", d.Field)
}

func TestDecideFieldUnknownField(t *testing.T) {
	instance := testInstance()
	pc := testContext("user-1", instance, modelGrant(ModelTree, LevelWrite))
	tree := &Tree{ID: "tree-1", InstanceID: instance.ID}

	d := DecideField(pc, ActionUpdate, tree, "no_such_field")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInsufficientFieldGrant, d.Reason)
}

func TestChecker(t *testing.T) {
	instance := testInstance(FeaturePhotos)
	pc := testContext("user-1", instance,
		modelGrant(ModelPlot, LevelWrite),
		modelGrant(ModelTree, LevelRead),
	)
	checker := NewChecker(pc)

	plot := &Plot{ID: "plot-1", InstanceID: instance.ID}
	tree := &Tree{ID: "tree-1", InstanceID: instance.ID, OwnerID: "user-2"}

	assert.Same(t, pc, checker.Context())
	assert.True(t, checker.Can(ActionUpdate, plot))
	assert.False(t, checker.Can(ActionUpdate, tree))
	assert.True(t, checker.CanCreate(ModelPlot))
	assert.False(t, checker.CanCreate(ModelTree))
	assert.Equal(t, ReasonInsufficientModelGrant, checker.Decide(ActionUpdate, tree).Reason)
	assert.True(t, checker.DecideField(ActionRead, tree, "species").Allowed)
	assert.Equal(t, LevelWrite, checker.FieldPermission(ModelPlot, "width"))
	assert.Equal(t, ModelFields(ModelTree), checker.VisibleFields(ModelTree))
	assert.Empty(t, checker.WritableFields(ModelTree))
}
