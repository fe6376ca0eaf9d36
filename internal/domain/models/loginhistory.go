// internal/domain/models/loginhistory.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// How a session was obtained.
const (
	LoginMethodPassword = "password"
	LoginMethodRegister = "register"
)

// LoginRecord captures a single successful sign-in.
// Records expire after LoginRecordTTL.
type LoginRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Method    string             `bson:"method" json:"method"`
	IP        string             `bson:"ip" json:"ip"`
	UserAgent string             `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// LoginRecordTTL is how long login records are kept.
const LoginRecordTTL = 90 * 24 * time.Hour
