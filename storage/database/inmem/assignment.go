package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/assignment"
)

type assignmentRepository struct {
	db *assignmentTable
}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db.assignment}
}

// copyOf detaches the submissions slice from the stored record.
func copyOf(a *assignment.Assignment) assignment.Assignment {
	cp := *a
	cp.Submissions = append(make([]assignment.Submission, 0, len(a.Submissions)), a.Submissions...)
	return cp
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = newID()
	stored := copyOf(&a)
	repo.db.table[a.ID] = &stored
	return copyOf(&stored), nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	a, ok := repo.db.table[id]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return copyOf(a), nil
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, filter assignment.QueryFilter, now time.Time) ([]assignment.Assignment, int64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	items := make([]assignment.Assignment, 0)
	for _, a := range repo.db.table {
		if filter.Owner != "" && a.CreatedBy != filter.Owner {
			continue
		}
		switch filter.Status {
		case assignment.StatusUpcoming:
			if a.IsOverdue(now) {
				continue
			}
		case assignment.StatusOverdue:
			if !a.IsOverdue(now) {
				continue
			}
		}
		items = append(items, copyOf(a))
	}

	sortAssignments(items, filter.Orderings)

	total := int64(len(items))
	skip := filter.Skip()
	if skip >= total {
		return []assignment.Assignment{}, total, nil
	}
	end := skip + int64(filter.Limit)
	if filter.Limit <= 0 || end > total {
		end = total
	}
	return items[skip:end], total, nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[a.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	stored.Title = a.Title
	stored.Description = a.Description
	stored.DueDate = a.DueDate
	stored.UpdatedAt = a.UpdatedAt
	return copyOf(stored), nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	a, ok := repo.db.table[id]
	if !ok {
		return assignment.ErrNotFound
	}
	if a.SubmissionCount() > 0 {
		return assignment.ErrHasSubmissions
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *assignmentRepository) AddSubmission(ctx context.Context, id string, sub assignment.Submission, now time.Time) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a, ok := repo.db.table[id]
	switch {
	case !ok:
		return assignment.Assignment{}, assignment.ErrNotFound
	case a.IsOverdue(now):
		return assignment.Assignment{}, assignment.ErrOverdue
	case a.HasSubmissionFrom(sub.Student):
		return assignment.Assignment{}, assignment.ErrAlreadySubmitted
	}
	a.Submissions = append(a.Submissions, sub)
	return copyOf(a), nil
}

func (repo *assignmentRepository) Stats(ctx context.Context, owner string, now time.Time) (assignment.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var stats assignment.Stats
	for _, a := range repo.db.table {
		if owner != "" && a.CreatedBy != owner {
			continue
		}
		stats.TotalAssignments++
		if a.IsOverdue(now) {
			stats.OverdueAssignments++
		} else {
			stats.UpcomingAssignments++
		}
		stats.TotalSubmissions += int64(a.SubmissionCount())
	}
	return stats, nil
}

func sortAssignments(items []assignment.Assignment, orderings []core.DBOrdering) {
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range orderings {
			c := compareAssignments(items[i], items[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return items[i].ID < items[j].ID
	})
}

func compareAssignments(a, b assignment.Assignment, field string) int {
	switch field {
	case "title":
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case "due_date":
		return a.DueDate.Compare(b.DueDate)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	}
	return 0
}
