package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/jifunze/core"
)

type Role string

// Roles
const (
	RoleAdmin     Role = "admin"
	RoleProfessor Role = "professor"
	RoleStudent   Role = "student"
)

var AllRoles = []Role{RoleAdmin, RoleProfessor, RoleStudent}

func (r Role) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool     { return u.Role == RoleAdmin }
func (u User) IsProfessor() bool { return u.Role == RoleProfessor }
func (u User) IsStudent() bool   { return u.Role == RoleStudent }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role" validate:"omitempty,role"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = Role(core.CleanString(string(nu.Role), true /* lower */))
}

// UpdateRole is the payload of an admin role change.
type UpdateRole struct {
	Role Role `json:"role" validate:"required,role"`
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

// RoleCounts is the number of users per role.
type RoleCounts struct {
	Total     int64 `json:"total"`
	Admin     int64 `json:"admin"`
	Professor int64 `json:"professor"`
	Student   int64 `json:"student"`
}

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Search string `query:"search"`
	Roles  []Role `query:"role"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	roles := qf.Roles[:0]
	for _, r := range qf.Roles {
		if r = Role(core.CleanString(string(r), true /* lower */)); r != "" {
			roles = append(roles, r)
		}
	}
	qf.Roles = roles
}

// OrderingFields are the fields users can be sorted by.
var OrderingFields = []string{"name", "email", "role", "created_at"}
