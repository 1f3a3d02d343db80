package model

import "time"

// User roles.  Role names are stored uppercase in the `users.role`
// column and carried verbatim in the JWT "role" claim.
const (
	RoleMember    = "MEMBER"
	RoleLibrarian = "LIBRARIAN"
	RoleAdmin     = "ADMIN"
)

// User account statuses.  Only ACTIVE users may authenticate or be
// referenced as borrowers/approvers.
const (
	UserActive    = "ACTIVE"
	UserInactive  = "INACTIVE"
	UserSuspended = "SUSPENDED"
)

// User represents an application user record as stored in the `users`
// table.  Handlers define separate response types with JSON tags; this
// struct is used by the repository layer only.
//
// Fields:
//  ID           – primary key identifier.
//  Lastname     – family name.
//  Firstname    – given name.
//  Email        – unique email address (lowercased).
//  PasswordHash – bcrypt hashed password.
//  Role         – MEMBER, LIBRARIAN or ADMIN.
//  Status       – ACTIVE, INACTIVE or SUSPENDED.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Lastname     string    // users.lastname
	Firstname    string    // users.firstname
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	Status       string    // users.status
	CreatedAt    time.Time // users.created_at
}
