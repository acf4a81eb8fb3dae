package models

// Roles recognized by the remote service.
const (
	RoleOwner = "owner"
	RoleStaff = "staff"
)

// User is the authenticated account as reported by GET /users/me.
type User struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// StaffMember is one row of the owner-only staff listing.
type StaffMember struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// StaffCreate is the payload for adding a staff account.
type StaffCreate struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}
