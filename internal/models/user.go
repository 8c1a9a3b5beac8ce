package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is an anonymous text submission embedded under its target user.
// Messages are immutable once written; the embedded ObjectID doubles as a
// deterministic tie-break when two messages share a timestamp.
type Message struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// User represents a registered user document. All state for one user,
// including the inbox, lives in this single document so every mutation is a
// single atomic update.
type User struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username            string             `bson:"username" json:"username"`
	Email               string             `bson:"email" json:"email"`
	PasswordHash        string             `bson:"password_hash" json:"-"`
	VerifyCode          string             `bson:"verify_code" json:"-"`
	VerifyCodeExpiry    time.Time          `bson:"verify_code_expiry" json:"-"`
	IsVerified          bool               `bson:"is_verified" json:"is_verified"`
	IsAcceptingMessages bool               `bson:"is_accepting_messages" json:"is_accepting_messages"`
	Messages            []Message          `bson:"messages" json:"messages,omitempty"`
	CreatedAt           time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `bson:"updated_at" json:"updated_at"`
}

// CollectionName specifies the collection name for User documents
func (User) CollectionName() string {
	return "users"
}
