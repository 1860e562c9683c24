package policy

import "context"

// Ownable is implemented by every model that belongs to a user.
type Ownable interface {
	GetUserID() uint
}

// OwnershipPolicy allows access only to the resource owner. Resources that
// are not Ownable are denied.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy { return &OwnershipPolicy{} }

func (p *OwnershipPolicy) Can(_ context.Context, userID uint, _ Action, resource any) bool {
	if resource == nil {
		return true
	}
	ownable, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return ownable.GetUserID() == userID
}

// NewDefaultGate registers the ownership policy for every resource type.
func NewDefaultGate() *Gate[uint] {
	g := NewGate[uint]()
	owner := NewOwnershipPolicy()
	for _, rt := range []string{ResourceInvoice, ResourcePayment, ResourceClient, ResourceService, ResourceExpense, ResourceBankAccount, ResourceCompany} {
		g.Register(rt, owner)
	}
	return g
}
