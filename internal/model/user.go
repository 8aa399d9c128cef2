package model

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleTrusted   Role = "trusted"
	RoleCommunity Role = "community"
)

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	APIKey   string `json:"apikey"`
	Role     Role   `json:"role"`
	Disabled bool   `json:"disabled"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsElevated reports whether the user bypasses automated review and
// namespace restrictions.
func (u *User) IsElevated() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleTrusted)
}

// CanManage reports whether the user may modify pkg.
func (u *User) CanManage(pkg *Package) bool {
	return u.IsAdmin() || (u != nil && pkg != nil && pkg.Maintainer == u.ID)
}
