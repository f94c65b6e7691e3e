package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StatusTTL is how long a status post stays visible after creation.
const StatusTTL = 24 * time.Hour

// StatusPost is an ephemeral broadcast post ("story") in MongoDB. Posts
// past expires_at are invisible to listing but stay in the collection
// until removed, so view/remove by id keep working on expired records.
type StatusPost struct {
	ID          primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	UserID      primitive.ObjectID   `json:"userId" bson:"user_id"`
	Content     string               `json:"content" bson:"content"`
	ContentType string               `json:"contentType" bson:"content_type"`
	MediaURL    *string              `json:"mediaUrl" bson:"media_url"`
	Viewers     []primitive.ObjectID `json:"viewers" bson:"viewers"`
	CreatedAt   time.Time            `json:"createdAt" bson:"created_at"`
	ExpiresAt   time.Time            `json:"expiresAt" bson:"expires_at"`
}

// Expired reports whether the post is past its lifetime at the given instant.
func (s *StatusPost) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// PopulatedStatus is the wire view of a status post with owner and
// viewer identities expanded.
type PopulatedStatus struct {
	ID          primitive.ObjectID `json:"id"`
	User        UserSummary        `json:"user"`
	Content     string             `json:"content"`
	ContentType string             `json:"contentType"`
	MediaURL    *string            `json:"mediaUrl"`
	Viewers     []UserSummary      `json:"viewers"`
	CreatedAt   time.Time          `json:"createdAt"`
	ExpiresAt   time.Time          `json:"expiresAt"`
}
