package permkit

import (
	"time"

	"github.com/uptrace/bun"
)

// ModelType identifies one of the closed set of domain models the engine
// knows how to authorize. The checker dispatches over this set in one
// place rather than spreading per-type checks across the models.
type ModelType string

const (
	ModelPlot  ModelType = "Plot"
	ModelTree  ModelType = "Tree"
	ModelPhoto ModelType = "Photo"
)

// KnownModels lists every model type the engine authorizes.
var KnownModels = []ModelType{ModelPlot, ModelTree, ModelPhoto}

// Valid reports whether the model type is part of the known set.
func (m ModelType) Valid() bool {
	switch m {
	case ModelPlot, ModelTree, ModelPhoto:
		return true
	}
	return false
}

// String returns the model type name.
func (m ModelType) String() string {
	return string(m)
}

// modelFields maps each model type to its permission-checkable fields.
// Field grants referencing anything else are rejected at write time, and
// unknown fields resolve to no permission at read time.
var modelFields = map[ModelType][]string{
	ModelPlot:  {"address", "width", "length", "geometry"},
	ModelTree:  {"species", "diameter", "height", "date_planted"},
	ModelPhoto: {"caption", "image_url"},
}

// ModelFields returns the checkable field names of a model type.
func ModelFields(model ModelType) []string {
	return modelFields[model]
}

// KnownField reports whether a field name exists on a model type.
func KnownField(model ModelType, field string) bool {
	for _, f := range modelFields[model] {
		if f == field {
			return true
		}
	}
	return false
}

// modelFeatures maps model types to the instance feature that must be
// enabled before the model can be used at all. Models absent from the
// map are always available.
var modelFeatures = map[ModelType]string{
	ModelPhoto: FeaturePhotos,
}

// Plot is a planting site on the map. Plots have no owner: they belong
// to the instance as shared map data.
type Plot struct {
	bun.BaseModel `bun:"table:plots,alias:p"`

	ID         string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	InstanceID string    `bun:"instance_id,notnull"`
	Address    string    `bun:"address"`
	Width      float64   `bun:"width"`
	Length     float64   `bun:"length"`
	Geometry   string    `bun:"geometry"` // WKT point, srid 3857
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Tree is a tree planted in a plot. The user who recorded it is its
// owner for ownership-escalation purposes.
type Tree struct {
	bun.BaseModel `bun:"table:trees,alias:t"`

	ID          string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	InstanceID  string    `bun:"instance_id,notnull"`
	PlotID      string    `bun:"plot_id,notnull"`
	OwnerID     string    `bun:"owner_id"`
	Species     string    `bun:"species"`
	Diameter    float64   `bun:"diameter"`
	Height      float64   `bun:"height"`
	DatePlanted time.Time `bun:"date_planted,nullzero"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Photo is an uploaded photo of a map feature. Only available when the
// owning instance has the photos feature enabled.
type Photo struct {
	bun.BaseModel `bun:"table:photos,alias:ph"`

	ID         string    `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	InstanceID string    `bun:"instance_id,notnull"`
	TreeID     string    `bun:"tree_id"`
	OwnerID    string    `bun:"owner_id"`
	Caption    string    `bun:"caption"`
	ImageURL   string    `bun:"image_url"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// objectRef is the flattened view of a domain object the checker works
// with: what it is, which instance it belongs to, and who owns it.
type objectRef struct {
	model      ModelType
	instanceID string
	ownerID    string
	hasOwner   bool // type supports ownership at all
}

// refOf extracts an objectRef from a concrete domain object. This is the
// single dispatch point over the closed model set; adding a model type
// means adding a case here.
func refOf(obj interface{}) (objectRef, bool) {
	switch o := obj.(type) {
	case *Plot:
		return objectRef{model: ModelPlot, instanceID: o.InstanceID}, true
	case *Tree:
		return objectRef{model: ModelTree, instanceID: o.InstanceID, ownerID: o.OwnerID, hasOwner: true}, true
	case *Photo:
		return objectRef{model: ModelPhoto, instanceID: o.InstanceID, ownerID: o.OwnerID, hasOwner: true}, true
	}
	return objectRef{}, false
}
