package domain

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleResident Role = "resident"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleResident
}

type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipPending MembershipStatus = "pending"
)

// User is the profile document stored under users/{uid}. The uid is owned by the identity provider.
type User struct {
	ID               string           `json:"uid" firestore:"uid"`
	Name             string           `json:"nombre" firestore:"nombre"`
	Email            string           `json:"email" firestore:"email"`
	NationalID       string           `json:"dni,omitempty" firestore:"dni,omitempty"`
	Address          string           `json:"direccion,omitempty" firestore:"direccion,omitempty"`
	Role             Role             `json:"role" firestore:"role"`
	MembershipStatus MembershipStatus `json:"membershipStatus" firestore:"membershipStatus"`
	CreatedAt        time.Time        `json:"createdAt" firestore:"createdAt"`
}

// IsAdmin reports whether the profile carries the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
