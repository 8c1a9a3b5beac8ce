package repository

import (
	"context"
	"errors"
	"time"

	"github.com/whisperwall/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository is the persistence boundary for user documents. Services
// depend on this interface; the Mongo implementation below is the only one
// used outside tests.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindVerifiedByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateCredentials(ctx context.Context, id primitive.ObjectID, passwordHash, code string, expiry time.Time) error
	UpdateVerification(ctx context.Context, id primitive.ObjectID, code string, expiry time.Time) error
	MarkVerified(ctx context.Context, id primitive.ObjectID) error
	SetAcceptingMessages(ctx context.Context, id primitive.ObjectID, accepting bool) error
	PushMessage(ctx context.Context, id primitive.ObjectID, msg models.Message) error
	MessagesNewestFirst(ctx context.Context, id primitive.ObjectID) ([]models.Message, error)
}

// MongoUserRepository handles user data access backed by MongoDB
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new MongoUserRepository
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{col: db.Collection(models.User{}.CollectionName())}
}

// EnsureIndexes creates the unique email index. Email uniqueness is the hard
// guarantee behind registration; username conflicts among verified users are
// checked at the service layer.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
		},
	})
	return err
}

// Create inserts a new user document
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Messages == nil {
		user.Messages = []models.Message{}
	}
	res, err := r.col.InsertOne(ctx, user)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	return nil
}

// FindByID retrieves a user by ObjectID
func (r *MongoUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail retrieves a user by email
func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByUsername retrieves a user by username regardless of verification state
func (r *MongoUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// FindVerifiedByUsername retrieves a verified user by username. Unverified
// holders do not count; they never block a name and are not addressable.
func (r *MongoUserRepository) FindVerifiedByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username, "is_verified": true})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := r.col.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateCredentials overwrites the password hash and verification code of an
// existing document. Used when an unverified email re-registers.
func (r *MongoUserRepository) UpdateCredentials(ctx context.Context, id primitive.ObjectID, passwordHash, code string, expiry time.Time) error {
	return r.updateOne(ctx, id, bson.M{
		"password_hash":      passwordHash,
		"verify_code":        code,
		"verify_code_expiry": expiry,
	})
}

// UpdateVerification issues a fresh code and expiry without touching credentials
func (r *MongoUserRepository) UpdateVerification(ctx context.Context, id primitive.ObjectID, code string, expiry time.Time) error {
	return r.updateOne(ctx, id, bson.M{
		"verify_code":        code,
		"verify_code_expiry": expiry,
	})
}

// MarkVerified flips the verified flag. The transition is one-way; nothing in
// this repository ever sets it back to false.
func (r *MongoUserRepository) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	return r.updateOne(ctx, id, bson.M{"is_verified": true})
}

// SetAcceptingMessages updates the message acceptance flag
func (r *MongoUserRepository) SetAcceptingMessages(ctx context.Context, id primitive.ObjectID, accepting bool) error {
	return r.updateOne(ctx, id, bson.M{"is_accepting_messages": accepting})
}

func (r *MongoUserRepository) updateOne(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	set["updated_at"] = time.Now().UTC()
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// PushMessage appends a message to the embedded list. A single $push is the
// atomic unit; concurrent sends to the same user are independent appends.
func (r *MongoUserRepository) PushMessage(ctx context.Context, id primitive.ObjectID, msg models.Message) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// messagesPipeline unwinds the embedded list and re-sorts it newest first.
// Ties on created_at fall back to the message ObjectID, so later insertions
// win deterministically.
func messagesPipeline(id primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "_id", Value: id}}}},
		bson.D{{Key: "$unwind", Value: "$messages"}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "messages.created_at", Value: -1},
			{Key: "messages._id", Value: -1},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$_id"},
			{Key: "messages", Value: bson.D{{Key: "$push", Value: "$messages"}}},
		}}},
	}
}

// MessagesNewestFirst returns the user's messages ordered by created_at
// descending. A user with an empty inbox yields an empty slice, not an error.
func (r *MongoUserRepository) MessagesNewestFirst(ctx context.Context, id primitive.ObjectID) ([]models.Message, error) {
	cur, err := r.col.Aggregate(ctx, messagesPipeline(id))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var results []struct {
		Messages []models.Message `bson:"messages"`
	}
	if err := cur.All(ctx, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		// $unwind drops users with no messages; distinguish an empty inbox
		// from a missing user.
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return []models.Message{}, nil
	}
	return results[0].Messages, nil
}
