package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/jifunze/core/assignment"
	"github.com/trezcool/jifunze/storage/database"
)

type (
	submissionDoc struct {
		Student     string    `bson:"student"`
		Content     string    `bson:"content"`
		FileURL     string    `bson:"file_url,omitempty"`
		SubmittedAt time.Time `bson:"submitted_at"`
	}

	assignmentDoc struct {
		ID          primitive.ObjectID `bson:"_id,omitempty"`
		Title       string             `bson:"title"`
		Description string             `bson:"description"`
		DueDate     time.Time          `bson:"due_date"`
		CreatedBy   string             `bson:"created_by"`
		Submissions []submissionDoc    `bson:"submissions"`
		CreatedAt   time.Time          `bson:"created_at"`
		UpdatedAt   time.Time          `bson:"updated_at"`
	}
)

type assignmentRepository struct {
	coll *mongo.Collection
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *mongo.Database) assignment.Repository {
	return &assignmentRepository{coll: db.Collection(database.AssignmentsCollection)}
}

func (repo assignmentRepository) doc(a assignment.Assignment) assignmentDoc {
	subs := make([]submissionDoc, 0, len(a.Submissions))
	for _, sub := range a.Submissions {
		subs = append(subs, submissionDoc{
			Student:     sub.Student,
			Content:     sub.Content,
			FileURL:     sub.FileURL,
			SubmittedAt: sub.SubmittedAt.UTC(),
		})
	}
	d := assignmentDoc{
		Title:       a.Title,
		Description: a.Description,
		DueDate:     a.DueDate.UTC(),
		CreatedBy:   a.CreatedBy,
		Submissions: subs,
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}
	if oid, ok := objectID(a.ID); ok {
		d.ID = oid
	}
	return d
}

func (repo assignmentRepository) undoc(d assignmentDoc) assignment.Assignment {
	subs := make([]assignment.Submission, 0, len(d.Submissions))
	for _, sub := range d.Submissions {
		subs = append(subs, assignment.Submission{
			Student:     sub.Student,
			Content:     sub.Content,
			FileURL:     sub.FileURL,
			SubmittedAt: sub.SubmittedAt.UTC(),
		})
	}
	return assignment.Assignment{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		DueDate:     d.DueDate.UTC(),
		CreatedBy:   d.CreatedBy,
		Submissions: subs,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func (repo assignmentRepository) find(ctx context.Context, oid primitive.ObjectID) (assignment.Assignment, error) {
	var d assignmentDoc
	if err := repo.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "finding assignment")
	}
	return repo.undoc(d), nil
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	d := repo.doc(a)
	d.ID = primitive.NewObjectID()
	if _, err := repo.coll.InsertOne(ctx, d); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return repo.undoc(d), nil
}

func (repo assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	oid, ok := objectID(id)
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return repo.find(ctx, oid)
}

func (repo assignmentRepository) QueryAssignments(ctx context.Context, filter assignment.QueryFilter, now time.Time) ([]assignment.Assignment, int64, error) {
	query := bson.D{}
	if filter.Owner != "" {
		query = append(query, bson.E{Key: "created_by", Value: filter.Owner})
	}
	switch filter.Status {
	case assignment.StatusUpcoming:
		query = append(query, bson.E{Key: "due_date", Value: bson.D{{Key: "$gte", Value: now}}})
	case assignment.StatusOverdue:
		query = append(query, bson.E{Key: "due_date", Value: bson.D{{Key: "$lt", Value: now}}})
	}

	total, err := repo.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting assignments")
	}

	opts := options.Find().
		SetSort(sortSpec(filter.Orderings)).
		SetSkip(filter.Skip()).
		SetLimit(int64(filter.Limit))
	cur, err := repo.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying assignments")
	}
	var docs []assignmentDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(err, "decoding assignments")
	}

	items := make([]assignment.Assignment, 0, len(docs))
	for _, d := range docs {
		items = append(items, repo.undoc(d))
	}
	return items, total, nil
}

func (repo assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	oid, ok := objectID(a.ID)
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "title", Value: a.Title},
		{Key: "description", Value: a.Description},
		{Key: "due_date", Value: a.DueDate.UTC()},
		{Key: "updated_at", Value: a.UpdatedAt.UTC()},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d assignmentDoc
	if err := repo.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update, opts).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	return repo.undoc(d), nil
}

// DeleteAssignment only removes assignments whose submission list is empty.
func (repo assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return assignment.ErrNotFound
	}
	res, err := repo.coll.DeleteOne(ctx, bson.D{
		{Key: "_id", Value: oid},
		{Key: "submissions.0", Value: bson.D{{Key: "$exists", Value: false}}},
	})
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if res.DeletedCount == 0 {
		if _, err = repo.find(ctx, oid); err != nil {
			return err
		}
		return assignment.ErrHasSubmissions
	}
	return nil
}

// AddSubmission pushes `sub` in a single conditional update, so that concurrent submissions of the
// same student cannot both succeed.
func (repo assignmentRepository) AddSubmission(ctx context.Context, id string, sub assignment.Submission, now time.Time) (assignment.Assignment, error) {
	oid, ok := objectID(id)
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: "due_date", Value: bson.D{{Key: "$gte", Value: now}}},
		{Key: "submissions.student", Value: bson.D{{Key: "$ne", Value: sub.Student}}},
	}
	update := bson.D{{Key: "$push", Value: bson.D{{Key: "submissions", Value: submissionDoc{
		Student:     sub.Student,
		Content:     sub.Content,
		FileURL:     sub.FileURL,
		SubmittedAt: sub.SubmittedAt.UTC(),
	}}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d assignmentDoc
	err := repo.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d)
	if err == nil {
		return repo.undoc(d), nil
	}
	if err != mongo.ErrNoDocuments {
		return assignment.Assignment{}, errors.Wrap(err, "adding submission")
	}

	// find out which condition failed
	a, err := repo.find(ctx, oid)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if a.IsOverdue(now) {
		return assignment.Assignment{}, assignment.ErrOverdue
	}
	return assignment.Assignment{}, assignment.ErrAlreadySubmitted
}

func (repo assignmentRepository) Stats(ctx context.Context, owner string, now time.Time) (assignment.Stats, error) {
	match := bson.D{}
	if owner != "" {
		match = append(match, bson.E{Key: "created_by", Value: owner})
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "overdue", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{bson.D{{Key: "$lt", Value: bson.A{"$due_date", now}}}, 1, 0}},
			}}}},
			{Key: "submissions", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$size", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$submissions", bson.A{}}}}},
			}}}},
		}}},
	}

	cur, err := repo.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return assignment.Stats{}, errors.Wrap(err, "aggregating assignments")
	}
	var rows []struct {
		Total       int64 `bson:"total"`
		Overdue     int64 `bson:"overdue"`
		Submissions int64 `bson:"submissions"`
	}
	if err = cur.All(ctx, &rows); err != nil {
		return assignment.Stats{}, errors.Wrap(err, "decoding assignment stats")
	}

	var stats assignment.Stats
	if len(rows) > 0 {
		stats.TotalAssignments = rows[0].Total
		stats.OverdueAssignments = rows[0].Overdue
		stats.UpcomingAssignments = rows[0].Total - rows[0].Overdue
		stats.TotalSubmissions = rows[0].Submissions
	}
	return stats, nil
}
