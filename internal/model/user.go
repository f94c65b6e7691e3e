package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user document in MongoDB. Account creation and
// verification are owned by the auth service; this process only reads
// profiles and writes the presence mirror (is_online, last_seen).
type User struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Username       string             `json:"username" bson:"username"`
	Email          string             `json:"email" bson:"email"`
	ProfilePicture string             `json:"profilePicture" bson:"profile_picture"`
	About          string             `json:"about" bson:"about"`
	IsOnline       bool               `json:"isOnline" bson:"is_online"`
	LastSeen       *time.Time         `json:"lastSeen" bson:"last_seen"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt      *time.Time         `json:"updatedAt" bson:"updated_at"`
}

// UserSummary is the slice of a user embedded in populated payloads.
type UserSummary struct {
	ID             primitive.ObjectID `json:"id" bson:"_id"`
	Username       string             `json:"username" bson:"username"`
	ProfilePicture string             `json:"profilePicture" bson:"profile_picture"`
}

// Summary trims a full user document down to the embeddable view.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
	}
}
