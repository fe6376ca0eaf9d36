// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account that can own and join workspaces.
//
// NOTE:
//   - Workspaces mirrors Workspace.Members from the user's side. The two
//     lists live in different databases and are written separately, so they
//     can briefly disagree (see the membership reconciler).
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name" json:"name"`
	NameCI       string               `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string               `bson:"email" json:"email"`
	PasswordHash string               `bson:"password_hash" json:"-"`
	Workspaces   []primitive.ObjectID `bson:"workspaces" json:"workspaces"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// PublicUser is the sanitized view of a User returned to clients.
type PublicUser struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Workspaces []string  `json:"workspaces"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Public strips credentials and renders ids as hex strings.
func (u User) Public() PublicUser {
	ws := make([]string, 0, len(u.Workspaces))
	for _, id := range u.Workspaces {
		ws = append(ws, id.Hex())
	}
	return PublicUser{
		ID:         u.ID.Hex(),
		Name:       u.Name,
		Email:      u.Email,
		Workspaces: ws,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// HasWorkspace reports whether id appears in the user's workspace list.
func (u User) HasWorkspace(id primitive.ObjectID) bool {
	for _, w := range u.Workspaces {
		if w == id {
			return true
		}
	}
	return false
}
