package domain

// OperatorRole scopes what an admin API caller may do.
type OperatorRole string

const (
	OperatorRoleAdmin  OperatorRole = "ADMIN"
	OperatorRoleViewer OperatorRole = "VIEWER"
)

// Valid reports whether r is a known role.
func (r OperatorRole) Valid() bool {
	return r == OperatorRoleAdmin || r == OperatorRoleViewer
}
