package identity

import "time"

// Account roles.
const (
	RoleUser    = "USER"
	RoleCourier = "COURIER"
)

// Courier vetting states.
const (
	ApprovalPending   = "PENDING"
	ApprovalApproved  = "APPROVED"
	ApprovalRejected  = "REJECTED"
	ApprovalSuspended = "SUSPENDED"
)

// User represents a registered account, customer or courier.
type User struct {
	ID             string
	Email          string
	Phone          string
	PasswordHash   []byte
	FullName       string
	Role           string
	Active         bool
	PhoneVerified  bool
	TokenVersion   int
	Available      bool
	ApprovalStatus string
	VehicleType    string
	CreatedAt      time.Time
	LastLogin      time.Time
}

// IsCourier reports whether the account is a courier.
func (u User) IsCourier() bool {
	return u.Role == RoleCourier
}

// Registration carries the fields accepted at signup.
type Registration struct {
	Email       string
	Phone       string
	Password    string
	FullName    string
	Role        string
	VehicleType string
}

// Credentials request structure.
type Credentials struct {
	Email    string
	Password string
}
