package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Member roles within a workspace.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// DefaultWorkspaceDescription is used when a workspace is created without one.
const DefaultWorkspaceDescription = "A blank canvas has the most potential"

// MaxWorkspaceDescription is the longest description accepted, in characters.
const MaxWorkspaceDescription = 200

// Workspace is a named collaboration space with an owner and a member roster.
//
// The owner is added as the first member with RoleAdmin at creation time.
// InviteCode is unique across all workspaces and is never regenerated.
type Workspace struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	Name        string `bson:"name" json:"name"`
	NameCI      string `bson:"name_ci" json:"-"`
	Description string `bson:"description" json:"description"`

	// Owner is set at creation and never changes.
	Owner primitive.ObjectID `bson:"owner" json:"owner"`

	Members  []Member             `bson:"members" json:"members"`
	Channels []primitive.ObjectID `bson:"channels" json:"channels"`

	InviteCode string `bson:"invite_code" json:"invite_code"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Member is one entry of a workspace roster. Email is a snapshot taken when
// the user joined.
type Member struct {
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Email    string             `bson:"email" json:"email"`
	Role     string             `bson:"role" json:"role"`
	JoinedAt time.Time          `bson:"joined_at" json:"joined_at"`
}

// FindMember returns the roster entry whose user id has the given canonical
// string form.
func (w Workspace) FindMember(userID string) (Member, bool) {
	for _, m := range w.Members {
		if m.UserID.Hex() == userID {
			return m, true
		}
	}
	return Member{}, false
}
