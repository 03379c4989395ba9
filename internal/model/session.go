package model

// Role is the account type of the signed-in user.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleProvider Role = "SERVICE_PROVIDER"
	RoleAdmin    Role = "ADMIN"
)

// Session is the authenticated user as returned by POST /auth/login.
type Session struct {
	Token    string `json:"token,omitempty"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	UserID   int64  `json:"userId"`
	FullName string `json:"fullName"`
}

// IsProvider reports whether the session belongs to a service provider.
func (s *Session) IsProvider() bool {
	return s != nil && s.Role == RoleProvider
}

// IsCustomer reports whether the session belongs to a customer.
func (s *Session) IsCustomer() bool {
	return s != nil && s.Role == RoleCustomer
}

// Public returns a copy without the token, safe to print.
func (s *Session) Public() Session {
	c := *s
	c.Token = ""
	return c
}
