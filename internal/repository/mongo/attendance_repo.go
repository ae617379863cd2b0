package mongo

import (
	"alcyxob/gym-booking/internal/domain"
	"alcyxob/gym-booking/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	attendanceCollectionName = "attendance"
	rosterCollectionName     = "rosters"
)

// fifoSort is the promotion order: original booking time, then id.
var fifoSort = bson.D{{Key: "bookedAt", Value: 1}, {Key: "_id", Value: 1}}

// mongoAttendanceRepository implements repository.AttendanceRepository
type mongoAttendanceRepository struct {
	collection *mongo.Collection
	rosters    *mongo.Collection
}

// NewMongoAttendanceRepository creates a new Attendance repository backed by MongoDB.
func NewMongoAttendanceRepository(db *mongo.Database) repository.AttendanceRepository {
	return &mongoAttendanceRepository{
		collection: db.Collection(attendanceCollectionName),
		rosters:    db.Collection(rosterCollectionName),
	}
}

// rosterKey is the _id of the guard document for one dated session.
func rosterKey(classID primitive.ObjectID, date string) string {
	return classID.Hex() + ":" + date
}

func sessionFilter(classID primitive.ObjectID, date string) bson.M {
	return bson.M{"classId": classID, "sessionDate": date}
}

// LockRoster bumps the version of the roster guard document. Snapshot
// isolation alone would let two transactions both count a free seat and both
// insert; writing the same guard document forces one of them to conflict.
func (r *mongoAttendanceRepository) LockRoster(ctx context.Context, classID primitive.ObjectID, date string) error {
	key := rosterKey(classID, date)
	update := bson.M{
		"$inc": bson.M{"version": 1},
		"$set": bson.M{
			"classId":     classID,
			"sessionDate": date,
			"updatedAt":   time.Now().UTC(),
		},
	}
	_, err := r.rosters.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Two first-time upserts raced on the same roster.
			return fmt.Errorf("%w: roster %s: %v", errRetryTransaction, key, err)
		}
		return fmt.Errorf("lock roster %s: %w", key, err)
	}
	return nil
}

// GetByID retrieves an attendance record by its ID.
func (r *mongoAttendanceRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Attendance, error) {
	var a domain.Attendance
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindForMember returns the member's record for a dated session regardless of status.
func (r *mongoAttendanceRepository) FindForMember(ctx context.Context, classID primitive.ObjectID, date string, memberID primitive.ObjectID) (*domain.Attendance, error) {
	filter := sessionFilter(classID, date)
	filter["memberId"] = memberID

	var a domain.Attendance
	err := r.collection.FindOne(ctx, filter).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// CountByStatus counts the session's records in any of the given statuses.
func (r *mongoAttendanceRepository) CountByStatus(ctx context.Context, classID primitive.ObjectID, date string, statuses ...domain.AttendanceStatus) (int64, error) {
	filter := sessionFilter(classID, date)
	filter["status"] = bson.M{"$in": statuses}
	return r.collection.CountDocuments(ctx, filter)
}

// ListActive returns every non-cancelled record of the session in FIFO order.
func (r *mongoAttendanceRepository) ListActive(ctx context.Context, classID primitive.ObjectID, date string) ([]domain.Attendance, error) {
	filter := sessionFilter(classID, date)
	filter["status"] = bson.M{"$ne": domain.StatusCancelled}
	return r.find(ctx, filter, options.Find().SetSort(fifoSort))
}

// ListWaitlisted returns the head of the session's waitlist in FIFO order.
func (r *mongoAttendanceRepository) ListWaitlisted(ctx context.Context, classID primitive.ObjectID, date string, limit int) ([]domain.Attendance, error) {
	filter := sessionFilter(classID, date)
	filter["status"] = domain.StatusWaitlisted

	opts := options.Find().SetSort(fifoSort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

// Create inserts a new attendance record.
func (r *mongoAttendanceRepository) Create(ctx context.Context, a *domain.Attendance) (primitive.ObjectID, error) {
	if a.ClassID.IsZero() || a.MemberID.IsZero() || a.SessionDate == "" {
		return primitive.NilObjectID, errors.New("attendance requires classId, memberId and sessionDate")
	}

	a.ID = primitive.NewObjectID()
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, a)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted attendance ID")
	}
	return insertedID, nil
}

// Replace overwrites an existing record, keeping its id.
func (r *mongoAttendanceRepository) Replace(ctx context.Context, a *domain.Attendance) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": a.ID}, a)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Transition sets status `to` and the timestamp that belongs to it, following
// domain.Attendance.ApplyTransition. Callers run it inside a transaction that
// holds the roster guard, so the read and the update see the same record.
func (r *mongoAttendanceRepository) Transition(ctx context.Context, id primitive.ObjectID, to domain.AttendanceStatus, at time.Time) error {
	if !to.Valid() {
		return fmt.Errorf("unknown attendance status %q", to)
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	current.ApplyTransition(to, at)

	set := bson.M{"status": current.Status, "updatedAt": current.UpdatedAt}
	if current.CancelledAt != nil {
		set["cancelledAt"] = current.CancelledAt
	}
	if current.CheckedInAt != nil {
		set["checkedInAt"] = current.CheckedInAt
	}
	if current.PromotedAt != nil {
		set["promotedAt"] = current.PromotedAt
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListBySession returns one page of a session roster, newest session first.
func (r *mongoAttendanceRepository) ListBySession(ctx context.Context, classID primitive.ObjectID, date string, page repository.Page) ([]domain.Attendance, int64, error) {
	return r.page(ctx, sessionFilter(classID, date), page)
}

// ListByMember returns one page of a member's attendance history at a gym.
func (r *mongoAttendanceRepository) ListByMember(ctx context.Context, gymID, memberID primitive.ObjectID, page repository.Page) ([]domain.Attendance, int64, error) {
	return r.page(ctx, bson.M{"gymId": gymID, "memberId": memberID}, page)
}

// SessionsWithWaitlist groups the day's waitlisted records by session.
func (r *mongoAttendanceRepository) SessionsWithWaitlist(ctx context.Context, date string) ([]repository.SessionKey, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"sessionDate": date, "status": domain.StatusWaitlisted}}},
		{{Key: "$group", Value: bson.M{"_id": bson.M{"gymId": "$gymId", "classId": "$classId"}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.gymId", Value: 1}, {Key: "_id.classId", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID struct {
			GymID   primitive.ObjectID `bson:"gymId"`
			ClassID primitive.ObjectID `bson:"classId"`
		} `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	keys := make([]repository.SessionKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, repository.SessionKey{GymID: row.ID.GymID, ClassID: row.ID.ClassID, Date: date})
	}
	return keys, nil
}

func (r *mongoAttendanceRepository) page(ctx context.Context, filter bson.M, page repository.Page) ([]domain.Attendance, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "sessionStart", Value: -1}, {Key: "bookedAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))

	items, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *mongoAttendanceRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Attendance, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []domain.Attendance{}
	if err = cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// EnsureAttendanceIndexes creates necessary indexes for the attendance collection.
func EnsureAttendanceIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// At most one record per member per dated session; recovery reuses it.
			Keys:    bson.D{{Key: "classId", Value: 1}, {Key: "sessionDate", Value: 1}, {Key: "memberId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_session_member"),
		},
		{
			Keys: bson.D{{Key: "classId", Value: 1}, {Key: "sessionDate", Value: 1}, {Key: "status", Value: 1}, {Key: "bookedAt", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "gymId", Value: 1}, {Key: "memberId", Value: 1}, {Key: "sessionStart", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "sessionDate", Value: 1}, {Key: "status", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// EnsureRosterIndexes makes sure the roster guard collection exists before the
// first transaction upserts into it.
func EnsureRosterIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "classId", Value: 1}, {Key: "sessionDate", Value: 1}},
	})
	return err
}
