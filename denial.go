package permkit

import (
	"fmt"
	"net/http"
)

// Denial is the structured value handed to the calling layer when a
// check comes back negative. The engine's job ends at producing it; the
// web layer renders it as a 403-class response or omits the denied
// field/action from output.
type Denial struct {
	Action     Action    `json:"action"`
	Model      ModelType `json:"model"`
	Field      string    `json:"field,omitempty"`
	Reason     Reason    `json:"reason"`
	UserID     string    `json:"user_id,omitempty"`
	InstanceID string    `json:"instance_id"`
	Message    string    `json:"message"`
}

var reasonMessages = map[Reason]string{
	ReasonCrossInstance:          "the object belongs to a different tree map",
	ReasonInsufficientModelGrant: "your role does not allow this action",
	ReasonInsufficientFieldGrant: "your role does not allow editing this field",
	ReasonNotOwner:               "only the owner may do this",
	ReasonFeatureDisabled:        "this feature is not enabled for this tree map",
	ReasonUnknownModel:           "unknown object type",
}

// ReportDenial translates a negative Decision into a Denial for the
// calling layer. Panics if the decision was actually allowed; that is a
// programming error in the caller.
func ReportDenial(d Decision, pc *PermissionContext) Denial {
	if d.Allowed {
		panic("permkit: ReportDenial called with an allowed decision")
	}
	message, ok := reasonMessages[d.Reason]
	if !ok {
		message = "permission denied"
	}
	denial := Denial{
		Action:  d.Action,
		Model:   d.Model,
		Field:   d.Field,
		Reason:  d.Reason,
		Message: message,
	}
	if pc != nil {
		denial.UserID = pc.UserID
		denial.InstanceID = pc.Instance.ID
	}
	return denial
}

// HTTPStatus returns the response status class for this denial.
func (d Denial) HTTPStatus() int {
	return http.StatusForbidden
}

// String renders the denial for logs kept by the calling layer.
func (d Denial) String() string {
	target := string(d.Model)
	if d.Field != "" {
		target = fmt.Sprintf("%s.%s", d.Model, d.Field)
	}
	return fmt.Sprintf("denied %s on %s (%s)", d.Action, target, d.Reason)
}
