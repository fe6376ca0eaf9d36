package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/taskspace/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures inserts documents directly, bypassing store normalization, so
// tests can set up exact (including inconsistent) state.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a user listing the given workspaces.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string, workspaces ...primitive.ObjectID) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	if workspaces == nil {
		workspaces = []primitive.ObjectID{}
	}
	u := models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		NameCI:       text.Fold(name),
		Email:        email,
		PasswordHash: "fixture-hash",
		Workspaces:   workspaces,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("CreateUser(%q): %v", email, err)
	}
	return u
}

// CreateWorkspace inserts a workspace owned by owner, who is its first
// admin. Further members are appended as given.
func (f *Fixtures) CreateWorkspace(ctx context.Context, name, inviteCode string, owner models.User, members ...models.Member) models.Workspace {
	f.t.Helper()

	now := time.Now().UTC()
	roster := append([]models.Member{{
		UserID:   owner.ID,
		Email:    owner.Email,
		Role:     models.RoleAdmin,
		JoinedAt: now,
	}}, members...)
	ws := models.Workspace{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		Description: models.DefaultWorkspaceDescription,
		Owner:       owner.ID,
		Members:     roster,
		Channels:    []primitive.ObjectID{},
		InviteCode:  inviteCode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("workspaces").InsertOne(ctx, ws); err != nil {
		f.t.Fatalf("CreateWorkspace(%q): %v", name, err)
	}
	return ws
}

// MemberOf returns a roster entry for u with the given role.
func MemberOf(u models.User, role string) models.Member {
	return models.Member{
		UserID:   u.ID,
		Email:    u.Email,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	}
}
