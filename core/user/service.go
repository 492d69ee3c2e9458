package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user not found")
	ErrEmailExists        = core.NewConflictError("a user with this email already exists")
	ErrInvalidCredentials = core.NewUnauthorizedError("invalid email or password")
	ErrSelfDemotion       = core.NewForbiddenError("admins cannot change their own role")

	errAdminRegistration = "admin accounts cannot be self-registered"
	errInvalidValue      = "invalid value"
)

type (
	Repository interface {
		CountUsers(ctx context.Context) (int64, error)
		// CreateUser returns ErrEmailExists when the email is already taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// TouchLogin only sets the LastLogin of user `id`.
		TouchLogin(ctx context.Context, id string, at time.Time) error
		CountByRole(ctx context.Context) (map[Role]int64, error)
	}

	ServiceInterface interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		Create(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		UpdateRole(ctx context.Context, actor User, id string, data UpdateRole) (User, error)
		SetRole(ctx context.Context, email string, role Role) (User, error)
		SetPassword(ctx context.Context, email, pwd string) error
		Stats(ctx context.Context) (RoleCounts, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		validate *validator.Validate
		tokens   tokenGenerator
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, validate *validator.Validate, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		mailSvc:  mailSvc,
		validate: validate,
		tokens: tokenGenerator{
			secret:  []byte(conf.SecretKey),
			timeout: conf.PasswordResetTimeoutDelta,
			now:     time.Now,
		},
	}
}

// Register signs up a new user.
// The very first user becomes an admin; everybody else gets the requested role (student by default).
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}

	count, err := svc.repo.CountUsers(ctx)
	if err != nil {
		return User{}, errors.Wrap(err, "counting users")
	}
	switch {
	case count == 0:
		nu.Role = RoleAdmin
	case nu.Role == RoleAdmin:
		return User{}, core.NewFieldError("role", errAdminRegistration)
	case nu.Role == "":
		nu.Role = RoleStudent
	}

	usr, err := svc.create(ctx, nu)
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

// Create adds a user with the given role, bypassing registration rules.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if nu.Role == "" {
		nu.Role = RoleStudent
	}
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}
	return svc.create(ctx, nu)
}

func (svc *Service) create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, ErrEmailExists
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

// Authenticate checks the credentials and stamps the login time.
// Unknown emails and wrong passwords fail with the same error.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err = svc.repo.TouchLogin(ctx, usr.ID, now); err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	usr.LastLogin = now
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	filter.Clean()
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryUsers(ctx, filter, ordering...)
}

// UpdateRole changes the role of user `id`. Admins cannot demote themselves.
func (svc *Service) UpdateRole(ctx context.Context, actor User, id string, data UpdateRole) (User, error) {
	data.Role = Role(core.CleanString(string(data.Role), true /* lower */))
	if err := svc.validate.Struct(data); err != nil {
		return User{}, err
	}
	if actor.ID == id && data.Role != RoleAdmin {
		return User{}, ErrSelfDemotion
	}

	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	return svc.setRole(ctx, usr, data.Role)
}

// SetRole changes a role without any guard. Used by the admin CLI.
func (svc *Service) SetRole(ctx context.Context, email string, role Role) (User, error) {
	if !role.IsValid() {
		return User{}, core.NewFieldError("role", roleText)
	}
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	return svc.setRole(ctx, usr, role)
}

func (svc *Service) setRole(ctx context.Context, usr User, role Role) (User, error) {
	if usr.Role == role {
		return usr, nil
	}
	usr.Role = role
	usr.UpdatedAt = time.Now().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating role")
}

// SetPassword sets a password without applying the password policy. Used by the admin CLI.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating password")
}

func (svc *Service) Stats(ctx context.Context) (RoleCounts, error) {
	counts, err := svc.repo.CountByRole(ctx)
	if err != nil {
		return RoleCounts{}, errors.Wrap(err, "counting users by role")
	}
	stats := RoleCounts{
		Admin:     counts[RoleAdmin],
		Professor: counts[RoleProfessor],
		Student:   counts[RoleStudent],
	}
	stats.Total = stats.Admin + stats.Professor + stats.Student
	return stats, nil
}

// RequestPasswordReset mails a reset link. Unknown emails are silently ignored.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return err
	}
	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	if err := svc.validate.Struct(data); err != nil {
		return err
	}

	uidErr := core.NewFieldError("uid", errInvalidValue)
	id, err := decodeUID(data.UID)
	if err != nil {
		return uidErr
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return uidErr
		}
		return err
	}

	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		if err == errInvalidToken || err == errTokenExpired {
			return core.NewFieldError("token", errInvalidValue)
		}
		return errors.Wrap(err, "verifying token")
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating password")
}

func (svc *Service) sendWelcomeMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome",
		TemplateName: "welcome",
		TemplateData: map[string]string{
			"Name": usr.Name,
			"Role": string(usr.Role),
		},
	})
}
