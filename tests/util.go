// Package testutil holds the fixtures shared by the test suites.
package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/assignment"
	"github.com/trezcool/jifunze/core/user"
)

const (
	// Password satisfies the password policy.
	Password  = "Pa$$w0rd!Qx"
	SecretKey = "test-secret-key"
)

// NewConfig returns a test configuration: no external services, a fixed signing key.
func NewConfig() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		AppName:                   "Jifunze",
		Debug:                     true,
		TestMode:                  true,
		SecretKey:                 SecretKey,
		PasswordResetTimeoutDelta: 72 * time.Hour,
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "Jifunze", Address: "noreply@localhost"},
		Server: core.ServerConfig{
			Address:         ":8000",
			ShutdownTimeout: time.Second,
		},
		Redis: core.RedisConfig{
			LoginLimit:  10,
			LoginWindow: 15 * time.Minute,
		},
	}
}

// NewValidator returns a validator with every custom rule registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	assignment.InitValidators(validate, translator)
	user.LoadCommonPasswords(NopLogger{})
	return validate, translator
}

// NopLogger discards everything.
type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

func CreateUser(t *testing.T, repo user.Repository, name, email string, role user.Role, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateAssignment(
	t *testing.T,
	repo assignment.Repository,
	creator user.User,
	title string,
	dueDate time.Time,
	submissions ...assignment.Submission,
) assignment.Assignment {
	t.Helper()
	now := time.Now().UTC()
	a, err := repo.CreateAssignment(context.Background(), assignment.Assignment{
		Title:       title,
		Description: "Description of " + title,
		DueDate:     dueDate.UTC(),
		CreatedBy:   creator.ID,
		Submissions: append([]assignment.Submission{}, submissions...),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}
