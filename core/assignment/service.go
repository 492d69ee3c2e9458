package assignment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/policy"
	"github.com/trezcool/jifunze/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("assignment not found")
	ErrAlreadySubmitted = core.NewConflictError("you have already submitted this assignment")
	ErrOverdue          = core.NewValidationError(errors.New("the due date for this assignment has passed"))
	ErrHasSubmissions   = core.NewValidationError(errors.New("cannot delete an assignment that has submissions"))

	errInvalidStatus  = "status must be one of all, upcoming or overdue"
	errInvalidCreator = "creator must be a professor or an admin"
	errInvalidStudent = "only students can submit assignments"
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		// QueryAssignments returns one page of assignments and the total number of matches.
		QueryAssignments(ctx context.Context, filter QueryFilter, now time.Time) ([]Assignment, int64, error)
		// UpdateAssignment saves title, description and due date. Submissions are left untouched.
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		// DeleteAssignment fails with ErrHasSubmissions if the assignment has any submission.
		DeleteAssignment(ctx context.Context, id string) error
		// AddSubmission appends `sub` unless its student already submitted (ErrAlreadySubmitted)
		// or the due date has passed at `now` (ErrOverdue).
		AddSubmission(ctx context.Context, id string, sub Submission, now time.Time) (Assignment, error)
		Stats(ctx context.Context, owner string, now time.Time) (Stats, error)
	}

	// UserFinder resolves user references.
	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, actor user.User, na NewAssignment) (View, error)
		Query(ctx context.Context, actor user.User, filter QueryFilter) (Page, error)
		Get(ctx context.Context, actor user.User, id string) (View, error)
		Update(ctx context.Context, actor user.User, id string, ua UpdateAssignment) (View, error)
		Delete(ctx context.Context, actor user.User, id string) error
		Submit(ctx context.Context, actor user.User, id string, ns NewSubmission) (Submission, error)
		Stats(ctx context.Context, actor user.User) (Stats, error)
	}

	Service struct {
		repo     Repository
		users    UserFinder
		validate *validator.Validate
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, users UserFinder, validate *validator.Validate) *Service {
	return &Service{repo: repo, users: users, validate: validate}
}

func (svc *Service) Create(ctx context.Context, actor user.User, na NewAssignment) (View, error) {
	if err := policy.Check(actor, policy.ActionCreateAssignment, ""); err != nil {
		return View{}, err
	}
	na.Clean()
	if err := svc.validate.Struct(na); err != nil {
		return View{}, err
	}
	creator, err := lookupCreator(ctx, svc.users, actor.ID)
	if err != nil {
		return View{}, err
	}

	now := nowFunc().UTC()
	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate.UTC(),
		CreatedBy:   creator.ID,
		Submissions: []Submission{},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return View{}, errors.Wrap(err, "creating assignment")
	}
	return svc.view(a, actor, &creator), nil
}

// Query lists assignments: professors get their own, students and admins get all of them.
func (svc *Service) Query(ctx context.Context, actor user.User, filter QueryFilter) (Page, error) {
	if err := policy.Check(actor, policy.ActionListAssignments, ""); err != nil {
		return Page{}, err
	}
	filter.Clean()
	switch filter.Status {
	case StatusAll, StatusUpcoming, StatusOverdue:
	default:
		return Page{}, core.NewFieldError("status", errInvalidStatus)
	}
	filter.Owner = policy.ScopeOwner(actor)

	items, total, err := svc.repo.QueryAssignments(ctx, filter, nowFunc().UTC())
	if err != nil {
		return Page{}, errors.Wrap(err, "querying assignments")
	}

	creators := make(map[string]*user.User)
	views := make([]View, 0, len(items))
	for _, a := range items {
		creator, ok := creators[a.CreatedBy]
		if !ok {
			if creator, err = svc.creatorOf(ctx, a); err != nil {
				return Page{}, err
			}
			creators[a.CreatedBy] = creator
		}
		views = append(views, svc.view(a, actor, creator))
	}

	pages := total / int64(filter.Limit)
	if total%int64(filter.Limit) != 0 {
		pages++
	}
	return Page{
		Assignments: views,
		Pagination: Pagination{
			Page:  filter.Page,
			Limit: filter.Limit,
			Total: total,
			Pages: pages,
		},
	}, nil
}

func (svc *Service) Get(ctx context.Context, actor user.User, id string) (View, error) {
	a, err := svc.get(ctx, actor, policy.ActionReadAssignment, id)
	if err != nil {
		return View{}, err
	}
	creator, err := svc.creatorOf(ctx, a)
	if err != nil {
		return View{}, err
	}
	return svc.view(a, actor, creator), nil
}

// Update applies the non-nil fields of `ua`. The due date rule only applies when the due date changes.
func (svc *Service) Update(ctx context.Context, actor user.User, id string, ua UpdateAssignment) (View, error) {
	a, err := svc.get(ctx, actor, policy.ActionUpdateAssignment, id)
	if err != nil {
		return View{}, err
	}
	ua.Clean()
	if err = svc.validate.Struct(ua); err != nil {
		return View{}, err
	}

	if ua.Title != nil {
		a.Title = *ua.Title
	}
	if ua.Description != nil {
		a.Description = *ua.Description
	}
	if ua.DueDate != nil {
		a.DueDate = ua.DueDate.UTC()
	}
	a.UpdatedAt = nowFunc().UTC()

	a, err = svc.repo.UpdateAssignment(ctx, a)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return View{}, ErrNotFound
		}
		return View{}, errors.Wrap(err, "updating assignment")
	}
	creator, err := svc.creatorOf(ctx, a)
	if err != nil {
		return View{}, err
	}
	return svc.view(a, actor, creator), nil
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	a, err := svc.get(ctx, actor, policy.ActionDeleteAssignment, id)
	if err != nil {
		return err
	}
	if a.SubmissionCount() > 0 {
		return ErrHasSubmissions
	}
	if err = svc.repo.DeleteAssignment(ctx, id); err != nil {
		switch errors.Cause(err) {
		case ErrNotFound, ErrHasSubmissions:
			return errors.Cause(err)
		}
		return errors.Wrap(err, "deleting assignment")
	}
	return nil
}

// Submit records the answer of student `actor`. Each student submits at most once, before the due date.
func (svc *Service) Submit(ctx context.Context, actor user.User, id string, ns NewSubmission) (Submission, error) {
	if err := policy.Check(actor, policy.ActionSubmitAssignment, ""); err != nil {
		return Submission{}, err
	}
	ns.Clean()
	if err := svc.validate.Struct(ns); err != nil {
		return Submission{}, err
	}
	student, err := lookupStudent(ctx, svc.users, actor.ID)
	if err != nil {
		return Submission{}, err
	}

	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Submission{}, notFoundOr(err, "finding assignment")
	}
	now := nowFunc().UTC()
	if a.IsOverdue(now) {
		return Submission{}, ErrOverdue
	}
	if a.HasSubmissionFrom(student.ID) {
		return Submission{}, ErrAlreadySubmitted
	}

	sub := Submission{
		Student:     student.ID,
		Content:     ns.Content,
		FileURL:     ns.FileURL,
		SubmittedAt: now,
	}
	if _, err = svc.repo.AddSubmission(ctx, id, sub, now); err != nil {
		switch errors.Cause(err) {
		case ErrNotFound, ErrOverdue, ErrAlreadySubmitted:
			return Submission{}, errors.Cause(err)
		}
		return Submission{}, errors.Wrap(err, "adding submission")
	}
	return sub, nil
}

// Stats aggregates the assignments of a professor, or all of them for admins.
func (svc *Service) Stats(ctx context.Context, actor user.User) (Stats, error) {
	if err := policy.Check(actor, policy.ActionAssignmentStats, ""); err != nil {
		return Stats{}, err
	}
	stats, err := svc.repo.Stats(ctx, policy.ScopeOwner(actor), nowFunc().UTC())
	if err != nil {
		return Stats{}, errors.Wrap(err, "aggregating assignments")
	}
	stats.SetAverage()
	return stats, nil
}

// get fetches assignment `id` and checks that `actor` may perform `action` on it.
func (svc *Service) get(ctx context.Context, actor user.User, action policy.Action, id string) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, notFoundOr(err, "finding assignment")
	}
	if err = policy.Check(actor, action, a.CreatedBy); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// creatorOf resolves the creator of `a`. Deleted creators resolve to nil.
func (svc *Service) creatorOf(ctx context.Context, a Assignment) (*user.User, error) {
	usr, err := svc.users.GetByID(ctx, a.CreatedBy)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding creator")
	}
	return &usr, nil
}

// view renders `a` for `actor`: students only see their own submission.
func (svc *Service) view(a Assignment, actor user.User, creator *user.User) View {
	count := a.SubmissionCount()
	if actor.IsStudent() {
		a = a.onlyFrom(actor.ID)
	}
	if a.Submissions == nil {
		a.Submissions = []Submission{}
	}
	v := View{
		Assignment:      a,
		IsOverdue:       a.IsOverdue(nowFunc()),
		SubmissionCount: count,
	}
	if creator != nil {
		v.Creator = &Person{ID: creator.ID, Name: creator.Name, Email: creator.Email}
	}
	return v
}

// lookupCreator resolves the creator of an assignment, which must be a professor or an admin.
func lookupCreator(ctx context.Context, users UserFinder, id string) (user.User, error) {
	usr, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, core.NewFieldError("created_by", errInvalidCreator)
		}
		return user.User{}, errors.Wrap(err, "finding creator")
	}
	if !(usr.IsProfessor() || usr.IsAdmin()) {
		return user.User{}, core.NewFieldError("created_by", errInvalidCreator)
	}
	return usr, nil
}

// lookupStudent resolves the author of a submission, which must be a student.
func lookupStudent(ctx context.Context, users UserFinder, id string) (user.User, error) {
	usr, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, core.NewFieldError("student", errInvalidStudent)
		}
		return user.User{}, errors.Wrap(err, "finding student")
	}
	if !usr.IsStudent() {
		return user.User{}, core.NewFieldError("student", errInvalidStudent)
	}
	return usr, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Cause(err) == ErrNotFound {
		return ErrNotFound
	}
	return errors.Wrap(err, msg)
}
