package ports

import "context"

// Action names a mutating operation checked by an Authorizer.
type Action string

const (
	ActionCreateFlow  Action = "flow.create"
	ActionSaveVersion Action = "flow.save"
	ActionActivate    Action = "flow.activate"
	ActionPublish     Action = "flow.publish"
	ActionArchive     Action = "flow.archive"
)

// Authorizer decides whether the caller carried by ctx may perform action on
// the given flow of the given organization. Returning false yields domain.ErrForbidden.
type Authorizer interface {
	Allow(ctx context.Context, action Action, organizationID, flowID string) (bool, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, action Action, organizationID, flowID string) (bool, error)

func (f AuthorizerFunc) Allow(ctx context.Context, action Action, organizationID, flowID string) (bool, error) {
	return f(ctx, action, organizationID, flowID)
}

// AllowAll permits every action.
var AllowAll Authorizer = AuthorizerFunc(func(context.Context, Action, string, string) (bool, error) {
	return true, nil
})
