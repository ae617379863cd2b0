package mongo

import (
	"alcyxob/gym-booking/internal/domain"
	"alcyxob/gym-booking/internal/repository" // Import the repository interfaces package
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	userCollectionName = "users"
	maxSearchResults   = 50
)

// mongoUserRepository implements repository.UserRepository and
// repository.MemberSearcher using MongoDB.
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new instance of mongoUserRepository.
// It expects a connected *mongo.Database instance.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// NewMongoMemberSearcher returns the regex-scan member search. A text index
// backed searcher can replace it behind repository.MemberSearcher.
func NewMongoMemberSearcher(db *mongo.Database) repository.MemberSearcher {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// Create inserts a new user into the database.
func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	// Ensure essential fields are set (more robust validation belongs in service layer)
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email, password hash, and role are required")
	}

	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// GetByEmail retrieves a user by their email address.
func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetByID retrieves a user by their MongoDB ObjectID.
func (r *mongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// IncrementAttendance bumps the flat counter and, for a program, only that
// program's credits. Sibling progression entries are never rewritten.
func (r *mongoUserRepository) IncrementAttendance(ctx context.Context, memberID primitive.ObjectID, programID string) error {
	inc := bson.M{"totalAttendance": 1}
	if programID != "" {
		if err := domain.ValidateFieldKey(programID); err != nil {
			return err
		}
		inc["progression."+programID+".credits"] = 1
	}
	return r.updateOne(ctx, memberID, bson.M{
		"$inc": inc,
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
}

// EnrollInProgram writes a single progression entry and bumps the flat counter.
func (r *mongoUserRepository) EnrollInProgram(ctx context.Context, memberID primitive.ObjectID, programID string, progress domain.ProgramProgress) error {
	if err := domain.ValidateFieldKey(programID); err != nil {
		return err
	}
	return r.updateOne(ctx, memberID, bson.M{
		"$inc": bson.M{"totalAttendance": 1},
		"$set": bson.M{
			"progression." + programID: progress,
			"updatedAt":                time.Now().UTC(),
		},
	})
}

// ActivateProspect flips status prospect -> active. The status condition in
// the filter makes redelivered events harmless.
func (r *mongoUserRepository) ActivateProspect(ctx context.Context, memberID primitive.ObjectID, at time.Time) (bool, error) {
	filter := bson.M{"_id": memberID, "status": domain.MemberProspect}
	update := bson.M{"$set": bson.M{
		"status":      domain.MemberActive,
		"convertedAt": at,
		"updatedAt":   at,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}

// Search does a case-insensitive substring match on name or email among the
// members of a gym.
func (r *mongoUserRepository) Search(ctx context.Context, gymID primitive.ObjectID, query string, limit int) ([]domain.User, error) {
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}

	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{
		"role": domain.RoleMember,
		"$and": bson.A{
			bson.M{"$or": bson.A{bson.M{"gymIds": gymID}, bson.M{"memberships.gymId": gymID}}},
			bson.M{"$or": bson.A{bson.M{"name": pattern}, bson.M{"email": pattern}}},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"passwordHash": 0})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []domain.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *mongoUserRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureUserIndexes creates necessary indexes for the users collection.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "gymIds", Value: 1}, {Key: "role", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "memberships.gymId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
