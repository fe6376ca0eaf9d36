// internal/app/store/workspaces/workspacestore.go
package workspacestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/taskspace/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InviteCodeIndex is the unique index guarding invite codes.
const InviteCodeIndex = "idx_workspace_invite_code"

type Store struct {
	c *mongo.Collection
}

var (
	ErrDuplicateInviteCode = errors.New("a workspace with this invite code already exists")
	ErrDuplicate           = errors.New("duplicate workspace")
	ErrNotFound            = errors.New("workspace not found")
	ErrAlreadyMember       = errors.New("user is already a member of this workspace")
	// ErrNotEligible means the conditional removal matched nothing: the
	// requester is not an admin or the target is not a plain member.
	ErrNotEligible = errors.New("requester is not an admin or target is not a member")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("workspaces")}
}

// Create inserts a new workspace. A unique-index violation on the invite
// code is reported as ErrDuplicateInviteCode so callers can retry with a
// fresh code; any other duplicate is ErrDuplicate.
func (s *Store) Create(ctx context.Context, ws models.Workspace) (models.Workspace, error) {
	now := time.Now().UTC()
	ws.ID = primitive.NewObjectID()
	ws.NameCI = text.Fold(ws.Name)
	if ws.Members == nil {
		ws.Members = []models.Member{}
	}
	if ws.Channels == nil {
		ws.Channels = []primitive.ObjectID{}
	}
	ws.CreatedAt = now
	ws.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, ws); err != nil {
		if wafflemongo.IsDup(err) {
			if dupOnInviteCode(err) {
				return models.Workspace{}, ErrDuplicateInviteCode
			}
			return models.Workspace{}, ErrDuplicate
		}
		return models.Workspace{}, err
	}
	return ws, nil
}

// GetByID retrieves a workspace by its ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Workspace, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByInviteCode retrieves the workspace holding the given invite code.
func (s *Store) GetByInviteCode(ctx context.Context, code string) (models.Workspace, error) {
	return s.findOne(ctx, bson.M{"invite_code": code})
}

// AddMember appends m to the roster unless the user is already on it.
// The presence check and the push happen in one conditional update, so two
// concurrent joins by the same user cannot both succeed.
func (s *Store) AddMember(ctx context.Context, id primitive.ObjectID, m models.Member) (models.Workspace, error) {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	filter := bson.M{
		"_id":             id,
		"members.user_id": bson.M{"$ne": m.UserID},
	}
	update := bson.M{
		"$push": bson.M{"members": m},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	ws, err := s.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, ErrNotFound) {
		// Distinguish a missing workspace from one that already lists the user.
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return models.Workspace{}, getErr
		}
		return models.Workspace{}, ErrAlreadyMember
	}
	return ws, err
}

// RemoveMemberAsAdmin pulls target from the roster only if, in the current
// document, requester is listed with role admin and target is listed with
// role member. Both predicates and the pull are one atomic operation.
func (s *Store) RemoveMemberAsAdmin(ctx context.Context, id, requester, target primitive.ObjectID) (models.Workspace, error) {
	filter := bson.M{
		"_id": id,
		"$and": bson.A{
			bson.M{"members": bson.M{"$elemMatch": bson.M{"user_id": requester, "role": models.RoleAdmin}}},
			bson.M{"members": bson.M{"$elemMatch": bson.M{"user_id": target, "role": models.RoleMember}}},
		},
	}
	update := bson.M{
		"$pull": bson.M{"members": bson.M{"user_id": target}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	ws, err := s.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, ErrNotFound) {
		return models.Workspace{}, ErrNotEligible
	}
	return ws, err
}

// PullMember removes a user from the roster unconditionally. It is used to
// compensate a half-finished join.
func (s *Store) PullMember(ctx context.Context, id, userID primitive.ObjectID) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$pull": bson.M{"members": bson.M{"user_id": userID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

// Update holds the editable fields of a workspace. Nil or empty fields are
// left untouched.
type Update struct {
	Name        *string
	Description *string
}

// Update applies a partial update and returns the resulting document.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) (models.Workspace, error) {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if upd.Name != nil && *upd.Name != "" {
		set["name"] = *upd.Name
		set["name_ci"] = text.Fold(*upd.Name)
	}
	if upd.Description != nil && *upd.Description != "" {
		set["description"] = *upd.Description
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

// Delete removes a workspace by ID.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByMember returns one page of the workspaces that list userID as a
// member, oldest first.
func (s *Store) ListByMember(ctx context.Context, userID primitive.ObjectID, skip, limit int64) ([]models.Workspace, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(skip).
		SetLimit(limit)
	return s.find(ctx, bson.M{"members.user_id": userID}, opts)
}

// CountByMember returns the number of workspaces that list userID.
func (s *Store) CountByMember(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"members.user_id": userID})
}

// Each streams every workspace to fn. Iteration stops at the first error.
func (s *Store) Each(ctx context.Context, fn func(models.Workspace) error) error {
	cur, err := s.c.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var ws models.Workspace
		if err := cur.Decode(&ws); err != nil {
			return err
		}
		if err := fn(ws); err != nil {
			return err
		}
	}
	return cur.Err()
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Workspace, error) {
	var ws models.Workspace
	if err := s.c.FindOne(ctx, filter).Decode(&ws); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Workspace{}, ErrNotFound
		}
		return models.Workspace{}, err
	}
	return ws, nil
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update bson.M) (models.Workspace, error) {
	var ws models.Workspace
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&ws); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Workspace{}, ErrNotFound
		}
		return models.Workspace{}, err
	}
	return ws, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Workspace, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	workspaces := []models.Workspace{}
	if err := cur.All(ctx, &workspaces); err != nil {
		return nil, err
	}
	return workspaces, nil
}

// dupOnInviteCode reports whether a duplicate-key error came from the
// invite code index rather than some other unique constraint.
func dupOnInviteCode(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if strings.Contains(e.Message, InviteCodeIndex) || strings.Contains(e.Message, "invite_code") {
				return true
			}
		}
		return false
	}
	return strings.Contains(err.Error(), "invite_code")
}
