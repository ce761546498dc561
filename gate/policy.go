// Package gate is a small permission/policy authorization layer. A profile
// grants "resource:action" permissions (with wildcards); optional per-resource
// policies add record-level rules on top. It has no dependency on domain
// models: U is the subject type, typically a user id.
package gate

import "context"

// Policy defines record-level rules for a resource type.
// U is the subject type (e.g. string user id).
type Policy[U any] interface {
	// Can returns true if user may perform action on resource.
	// For list/create, resource may be nil (context-only check).
	Can(ctx context.Context, user U, action Action, resource any) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc[U any] func(ctx context.Context, user U, action Action, resource any) bool

func (f PolicyFunc[U]) Can(ctx context.Context, user U, action Action, resource any) bool {
	return f(ctx, user, action, resource)
}
