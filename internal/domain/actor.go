package domain

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID           string
	Name         string
	Role         Role
	DepartmentID string
}

// Authenticated reports whether the actor carries an identity.
func (a *Actor) Authenticated() bool {
	return a != nil && a.ID != "" && a.Role.Valid()
}
