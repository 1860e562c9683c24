// Package policy decides whether a user may act on a resource. A Gate holds
// one Policy per resource type; the default policy is ownership.
package policy

import (
	"context"
	"errors"
	"sync"
)

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	ActionView   Action = "view"
	ActionList   Action = "list"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionPay    Action = "pay"
	ActionExport Action = "export"
)

// Resource type names registered on the gate.
const (
	ResourceInvoice     = "invoice"
	ResourcePayment     = "payment"
	ResourceClient      = "client"
	ResourceService     = "service"
	ResourceExpense     = "expense"
	ResourceBankAccount = "bank_account"
	ResourceCompany     = "company_settings"
)

// Sentinel errors returned by Gate.Authorize.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNoPolicyDefined = errors.New("no policy defined for resource")
)

// Policy defines authorization rules for a resource type. For list and
// create the resource is nil.
type Policy[U any] interface {
	Can(ctx context.Context, user U, action Action, resource any) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc[U any] func(ctx context.Context, user U, action Action, resource any) bool

func (f PolicyFunc[U]) Can(ctx context.Context, user U, action Action, resource any) bool {
	return f(ctx, user, action, resource)
}

// Gate is the central authorization checkpoint. U is the subject type and
// its zero value means anonymous.
type Gate[U comparable] struct {
	mu       sync.RWMutex
	policies map[string]Policy[U]
}

func NewGate[U comparable]() *Gate[U] {
	return &Gate[U]{policies: make(map[string]Policy[U])}
}

// Register sets the policy for a resource type, replacing any previous one.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.mu.Lock()
	g.policies[resourceType] = p
	g.mu.Unlock()
}

// Authorize returns ErrUnauthorized for an anonymous user or a denied
// action, and ErrNoPolicyDefined for an unknown resource type.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthorized
	}
	g.mu.RLock()
	p, ok := g.policies[resourceType]
	g.mu.RUnlock()
	if !ok {
		return ErrNoPolicyDefined
	}
	if !p.Can(ctx, user, action, resource) {
		return ErrUnauthorized
	}
	return nil
}

// Can reports whether Authorize would succeed.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}
