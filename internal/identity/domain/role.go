package domain

// Role is a named authorization group. Users point at roles by name, so
// renaming or deleting a role leaves existing user documents untouched.
type Role struct {
	ID             string
	Name           string
	NormalizedName string
}
