// Package membership implements workspace creation, joining, removal and
// deletion.
//
// A membership edge is stored twice: in the workspace roster and in the
// user's workspace list. The two live in different databases and are written
// one after the other. The roster is the source of truth; the user side is
// best-effort and is repaired by Reconcile.
//
// Authorization rules:
//   - Any signed-in user can create a workspace and becomes its admin
//   - Any signed-in user holding the invite code can join as a member
//   - Only an admin can remove a member, and only members (not admins) can be removed
//   - Only the owner can delete a workspace
//   - Updates are not role-checked
package membership

import (
	"context"
	"errors"
	"strings"
	"time"

	userstore "github.com/dalemusser/taskspace/internal/app/store/users"
	workspacestore "github.com/dalemusser/taskspace/internal/app/store/workspaces"
	"github.com/dalemusser/taskspace/internal/app/system/apperr"
	"github.com/dalemusser/taskspace/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskspace/internal/app/system/inputval"
	"github.com/dalemusser/taskspace/internal/app/system/invitecode"
	"github.com/dalemusser/taskspace/internal/app/system/normalize"
	"github.com/dalemusser/taskspace/internal/app/system/paging"
	"github.com/dalemusser/taskspace/internal/app/system/timeouts"
	"github.com/dalemusser/taskspace/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds invite-code generation per workspace.
const DefaultMaxAttempts = 5

// ErrInviteCodesExhausted is the cause reported when every attempt collided.
var ErrInviteCodesExhausted = errors.New("invite code attempts exhausted")

// WorkspaceStore is the part of the workspace store the service needs.
type WorkspaceStore interface {
	Create(ctx context.Context, ws models.Workspace) (models.Workspace, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Workspace, error)
	GetByInviteCode(ctx context.Context, code string) (models.Workspace, error)
	AddMember(ctx context.Context, id primitive.ObjectID, m models.Member) (models.Workspace, error)
	RemoveMemberAsAdmin(ctx context.Context, id, requester, target primitive.ObjectID) (models.Workspace, error)
	PullMember(ctx context.Context, id, userID primitive.ObjectID) error
	Update(ctx context.Context, id primitive.ObjectID, upd workspacestore.Update) (models.Workspace, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	ListByMember(ctx context.Context, userID primitive.ObjectID, skip, limit int64) ([]models.Workspace, error)
	CountByMember(ctx context.Context, userID primitive.ObjectID) (int64, error)
	Each(ctx context.Context, fn func(models.Workspace) error) error
}

// UserStore is the part of the user store the service needs.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	AddWorkspace(ctx context.Context, userID, wsID primitive.ObjectID) error
	PullWorkspace(ctx context.Context, userID, wsID primitive.ObjectID) error
	PullWorkspaceFromAll(ctx context.Context, wsID primitive.ObjectID) (int64, error)
	Each(ctx context.Context, fn func(models.User) error) error
}

// Service holds the membership operations.
type Service struct {
	workspaces  WorkspaceStore
	users       UserStore
	codes       invitecode.Generator
	maxAttempts int
	log         *zap.Logger
}

// New returns a Service. A nil generator uses invitecode.New(DefaultBytes);
// maxAttempts < 1 uses DefaultMaxAttempts.
func New(workspaces WorkspaceStore, users UserStore, codes invitecode.Generator, maxAttempts int, logger *zap.Logger) *Service {
	if codes == nil {
		codes = invitecode.New(invitecode.DefaultBytes)
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		workspaces:  workspaces,
		users:       users,
		codes:       codes,
		maxAttempts: maxAttempts,
		log:         logger,
	}
}

// CreateInput is the body of a create-workspace request.
type CreateInput struct {
	Name        string `json:"name" validate:"required,max=100" label:"Name"`
	Description string `json:"description" validate:"max=200" label:"Description"`
}

// UpdateInput is the body of an update-workspace request. Absent or empty
// fields are left untouched.
type UpdateInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type updateCheck struct {
	Name        string `validate:"max=100" label:"Name"`
	Description string `validate:"max=200" label:"Description"`
}

func errAlreadyMember() error {
	return apperr.New(apperr.Conflict, "You are already a member of this workspace")
}

func errWorkspaceNotFound() error {
	return apperr.New(apperr.NotFound, "Workspace not found")
}

// CreateWorkspace creates a workspace owned by ownerID with the owner as its
// only admin.
//
// Invite codes are generated without coordination. A collision on the invite
// code index is retried with a fresh code up to maxAttempts times; any other
// store failure aborts at once.
func (s *Service) CreateWorkspace(ctx context.Context, ownerID, ownerEmail string, in CreateInput) (models.Workspace, error) {
	owner, err := normalize.ObjectID(ownerID)
	if err != nil {
		return models.Workspace{}, apperr.New(apperr.InvalidRequest, "Invalid user id")
	}

	in.Name = normalize.Name(htmlsanitize.PlainText(in.Name))
	in.Description = strings.TrimSpace(htmlsanitize.PlainText(in.Description))
	if res := inputval.Validate(in); res.HasErrors() {
		return models.Workspace{}, apperr.New(apperr.InvalidRequest, res.First())
	}
	if in.Description == "" {
		in.Description = models.DefaultWorkspaceDescription
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			return models.Workspace{}, apperr.Wrap(apperr.Internal, "Failed to create workspace", err)
		}

		ws, err := s.workspaces.Create(ctx, models.Workspace{
			Name:        in.Name,
			Description: in.Description,
			Owner:       owner,
			InviteCode:  code,
			Members: []models.Member{{
				UserID:   owner,
				Email:    normalize.Email(ownerEmail),
				Role:     models.RoleAdmin,
				JoinedAt: time.Now().UTC(),
			}},
		})
		if errors.Is(err, workspacestore.ErrDuplicateInviteCode) {
			s.log.Warn("invite code collision, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", s.maxAttempts))
			continue
		}
		if err != nil {
			return models.Workspace{}, apperr.Wrap(apperr.Internal, "Failed to create workspace", err)
		}

		if err := s.users.AddWorkspace(ctx, owner, ws.ID); err != nil {
			s.log.Warn("owner workspace list not updated",
				zap.String("user_id", owner.Hex()),
				zap.String("workspace_id", ws.ID.Hex()),
				zap.Error(err))
		}
		s.log.Info("workspace created",
			zap.String("workspace_id", ws.ID.Hex()),
			zap.String("owner", owner.Hex()),
			zap.Int("attempts", attempt))
		return ws, nil
	}

	return models.Workspace{}, apperr.Wrap(apperr.Internal, "Failed to create workspace", ErrInviteCodesExhausted)
}

// JoinByInviteCode adds userID to the workspace holding code as a member.
//
// The roster push is conditional on the user being absent, so concurrent
// joins by the same user cannot both succeed. If the user-side write fails
// the roster entry is pulled again.
func (s *Service) JoinByInviteCode(ctx context.Context, userID, userEmail, code string) (models.Workspace, error) {
	uid, err := normalize.ObjectID(userID)
	if err != nil {
		return models.Workspace{}, apperr.New(apperr.InvalidRequest, "Invalid user id")
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return models.Workspace{}, apperr.New(apperr.NotFound, "Invalid invite code")
	}

	ws, err := s.workspaces.GetByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, workspacestore.ErrNotFound) {
			return models.Workspace{}, apperr.New(apperr.NotFound, "Invalid invite code")
		}
		return models.Workspace{}, apperr.Wrap(apperr.Internal, "Failed to join workspace", err)
	}
	if _, ok := ws.FindMember(normalize.ID(uid)); ok {
		return models.Workspace{}, errAlreadyMember()
	}

	updated, err := s.workspaces.AddMember(ctx, ws.ID, models.Member{
		UserID:   uid,
		Email:    normalize.Email(userEmail),
		Role:     models.RoleMember,
		JoinedAt: time.Now().UTC(),
	})
	switch {
	case errors.Is(err, workspacestore.ErrAlreadyMember):
		return models.Workspace{}, errAlreadyMember()
	case errors.Is(err, workspacestore.ErrNotFound):
		return models.Workspace{}, errWorkspaceNotFound()
	case err != nil:
		return models.Workspace{}, apperr.Wrap(apperr.Internal, "Failed to join workspace", err)
	}

	if err := s.users.AddWorkspace(ctx, uid, ws.ID); err != nil {
		// The request context is usually what failed, so the pull gets its own.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
		defer cancel()
		if perr := s.workspaces.PullMember(cctx, ws.ID, uid); perr != nil {
			s.log.Error("join compensation failed; roster and user list disagree",
				zap.String("workspace_id", ws.ID.Hex()),
				zap.String("user_id", uid.Hex()),
				zap.Error(perr))
		}
		return models.Workspace{}, apperr.Wrap(apperr.Internal, "Failed to join workspace", err)
	}

	s.log.Info("member joined",
		zap.String("workspace_id", ws.ID.Hex()),
		zap.String("user_id", uid.Hex()))
	return updated, nil
}

// RemoveMember removes targetID from the workspace. The admin check on the
// requester, the member check on the target and the removal are a single
// conditional update. The target's own workspace list is cleaned up
// afterwards on a best-effort basis.
func (s *Service) RemoveMember(ctx context.Context, requesterID, workspaceID, targetID string) (models.Workspace, error) {
	invalid := apperr.New(apperr.InvalidRequest, "Invalid request")

	requester, err := normalize.ObjectID(requesterID)
	if err != nil {
		return models.Workspace{}, invalid
	}
	wsID, err := normalize.ObjectID(workspaceID)
	if err != nil {
		return models.Workspace{}, invalid
	}
	target, err := normalize.ObjectID(targetID)
	if err != nil {
		return models.Workspace{}, invalid
	}

	updated, err := s.workspaces.RemoveMemberAsAdmin(ctx, wsID, requester, target)
	if err != nil {
		if errors.Is(err, workspacestore.ErrNotEligible) {
			return models.Workspace{}, invalid
		}
		return models.Workspace{}, apperr.Wrap(apperr.Internal, "Failed to remove member", err)
	}

	if err := s.users.PullWorkspace(ctx, target, wsID); err != nil {
		s.log.Warn("removed member still lists workspace",
			zap.String("workspace_id", wsID.Hex()),
			zap.String("user_id", target.Hex()),
			zap.Error(err))
	}

	s.log.Info("member removed",
		zap.String("workspace_id", wsID.Hex()),
		zap.String("user_id", target.Hex()),
		zap.String("by", requester.Hex()))
	return updated, nil
}

// DeleteWorkspace deletes a workspace on behalf of its owner. A workspace
// that disappears between the ownership check and the delete is NotFound.
func (s *Service) DeleteWorkspace(ctx context.Context, requesterID, workspaceID string) error {
	wsID, err := normalize.ObjectID(workspaceID)
	if err != nil {
		return errWorkspaceNotFound()
	}

	ws, err := s.workspaces.GetByID(ctx, wsID)
	if err != nil {
		if errors.Is(err, workspacestore.ErrNotFound) {
			return errWorkspaceNotFound()
		}
		return apperr.Wrap(apperr.Internal, "Failed to delete workspace", err)
	}
	if normalize.ID(ws.Owner) != normalize.ID(requesterID) {
		return apperr.New(apperr.Unauthorized, "Unauthorized")
	}

	n, err := s.workspaces.Delete(ctx, wsID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "Failed to delete workspace", err)
	}
	if n == 0 {
		return errWorkspaceNotFound()
	}

	pulled, err := s.users.PullWorkspaceFromAll(ctx, wsID)
	if err != nil {
		s.log.Warn("deleted workspace still listed by users",
			zap.String("workspace_id", wsID.Hex()),
			zap.Error(err))
	}
	s.log.Info("workspace deleted",
		zap.String("workspace_id", wsID.Hex()),
		zap.Int64("users_updated", pulled))
	return nil
}

// UpdateWorkspace applies a partial update to name and description.
func (s *Service) UpdateWorkspace(ctx context.Context, workspaceID string, in UpdateInput) (models.Workspace, error) {
	wsID, err := normalize.ObjectID(workspaceID)
	if err != nil {
		return models.Workspace{}, errWorkspaceNotFound()
	}

	var upd workspacestore.Update
	var check updateCheck
	if in.Name != nil {
		name := normalize.Name(htmlsanitize.PlainText(*in.Name))
		upd.Name, check.Name = &name, name
	}
	if in.Description != nil {
		desc := strings.TrimSpace(htmlsanitize.PlainText(*in.Description))
		upd.Description, check.Description = &desc, desc
	}
	if res := inputval.Validate(check); res.HasErrors() {
		return models.Workspace{}, apperr.New(apperr.InvalidRequest, res.First())
	}

	ws, err := s.workspaces.Update(ctx, wsID, upd)
	if err != nil {
		if errors.Is(err, workspacestore.ErrNotFound) {
			return models.Workspace{}, errWorkspaceNotFound()
		}
		return models.Workspace{}, apperr.Wrap(apperr.Internal, "Failed to update workspace", err)
	}
	return ws, nil
}

// ListForUser returns one page of the workspaces userID belongs to and the
// total count.
func (s *Service) ListForUser(ctx context.Context, userID string, p paging.Page) ([]models.Workspace, int64, error) {
	uid, err := normalize.ObjectID(userID)
	if err != nil {
		return nil, 0, apperr.New(apperr.InvalidRequest, "Invalid user id")
	}
	total, err := s.workspaces.CountByMember(ctx, uid)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Internal, "Failed to list workspaces", err)
	}
	list, err := s.workspaces.ListByMember(ctx, uid, p.Skip(), p.Limit64())
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.Internal, "Failed to list workspaces", err)
	}
	return list, total, nil
}

// GetForMember loads a workspace the user belongs to. Non-members get
// NotFound so workspace ids are not confirmed to outsiders.
func (s *Service) GetForMember(ctx context.Context, userID, workspaceID string) (models.Workspace, error) {
	wsID, err := normalize.ObjectID(workspaceID)
	if err != nil {
		return models.Workspace{}, errWorkspaceNotFound()
	}
	ws, err := s.workspaces.GetByID(ctx, wsID)
	if err != nil {
		if errors.Is(err, workspacestore.ErrNotFound) {
			return models.Workspace{}, errWorkspaceNotFound()
		}
		return models.Workspace{}, apperr.Wrap(apperr.Internal, "Failed to load workspace", err)
	}
	if _, ok := ws.FindMember(normalize.ID(userID)); !ok {
		return models.Workspace{}, errWorkspaceNotFound()
	}
	return ws, nil
}

// isUserGone reports whether err means the user record does not exist.
func isUserGone(err error) bool {
	return errors.Is(err, userstore.ErrNotFound)
}
