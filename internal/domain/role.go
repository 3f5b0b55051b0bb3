package domain

import "fmt"

// Role is the permission level stored on a user record
type Role int

const (
	RoleCustomer Role = 0
	RoleAdmin    Role = 1
)

// Capability is a single permission a role may grant
type Capability string

const (
	CapBrowse        Capability = "browse"
	CapPurchase      Capability = "purchase"
	CapManageCatalog Capability = "manage_catalog"
	CapManageOrders  Capability = "manage_orders"
)

var roleCapabilities = map[Role][]Capability{
	RoleCustomer: {CapBrowse, CapPurchase},
	RoleAdmin:    {CapBrowse, CapPurchase, CapManageCatalog, CapManageOrders},
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Can reports whether the role grants capability c
func (r Role) Can(c Capability) bool {
	for _, granted := range roleCapabilities[r] {
		if granted == c {
			return true
		}
	}
	return false
}

// Capabilities returns a copy of the capability set for r
func (r Role) Capabilities() []Capability {
	caps := roleCapabilities[r]
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}
