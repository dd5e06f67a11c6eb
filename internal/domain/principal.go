package domain

// Principal is the authenticated identity bound to a connection for its lifetime.
type Principal struct {
	UserID        string
	Email         string
	Role          Role
	InstitutionID string
}
