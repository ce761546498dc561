package policy

import (
	"context"

	"github.com/diewo77/go-crm/gate"
)

// Subject is implemented by resources that identify an account.
type Subject interface {
	SubjectID() string
}

// NotSelfPolicy denies the listed actions when the resource is the acting
// user's own account, so an admin cannot demote or deactivate themselves.
// Other actions, and resources that do not identify an account, are allowed.
type NotSelfPolicy struct {
	actions map[gate.Action]bool
}

func NewNotSelfPolicy(actions ...gate.Action) *NotSelfPolicy {
	p := &NotSelfPolicy{actions: make(map[gate.Action]bool, len(actions))}
	for _, a := range actions {
		p.actions[a] = true
	}
	return p
}

func (p *NotSelfPolicy) Can(_ context.Context, userID string, action gate.Action, resource any) bool {
	if !p.actions[action] {
		return true
	}
	s, ok := resource.(Subject)
	if !ok {
		return true
	}
	return s.SubjectID() != userID
}
