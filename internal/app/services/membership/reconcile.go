package membership

import (
	"context"
	"errors"

	workspacestore "github.com/dalemusser/taskspace/internal/app/store/workspaces"
	"github.com/dalemusser/taskspace/internal/app/system/normalize"
	"github.com/dalemusser/taskspace/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Report summarizes one Reconcile pass.
type Report struct {
	UsersScanned      int
	WorkspacesScanned int
	// StaleRemoved counts user-side entries dropped because the workspace is
	// gone or no longer lists the user.
	StaleRemoved int
	// MissingAdded counts user-side entries added for roster members.
	MissingAdded int
	// OrphanMembers counts roster entries whose user record is gone. They
	// are reported only.
	OrphanMembers int
	Failed        int
}

type edge struct {
	user primitive.ObjectID
	ws   primitive.ObjectID
}

// Reconcile brings every user's workspace list in line with the rosters.
//
// Both collections are read into memory first, then candidate repairs are
// re-checked against the current workspace document before writing, so a
// join or removal that lands mid-pass is not undone.
func (s *Service) Reconcile(ctx context.Context) (Report, error) {
	var rep Report

	rosters := map[primitive.ObjectID]map[string]bool{}
	if err := s.workspaces.Each(ctx, func(ws models.Workspace) error {
		rep.WorkspacesScanned++
		set := make(map[string]bool, len(ws.Members))
		for _, m := range ws.Members {
			set[normalize.ID(m.UserID)] = true
		}
		rosters[ws.ID] = set
		return nil
	}); err != nil {
		return rep, err
	}

	lists := map[string]map[primitive.ObjectID]bool{}
	var stale []edge
	if err := s.users.Each(ctx, func(u models.User) error {
		rep.UsersScanned++
		uid := normalize.ID(u.ID)
		set := make(map[primitive.ObjectID]bool, len(u.Workspaces))
		for _, wsID := range u.Workspaces {
			set[wsID] = true
			if members, ok := rosters[wsID]; !ok || !members[uid] {
				stale = append(stale, edge{user: u.ID, ws: wsID})
			}
		}
		lists[uid] = set
		return nil
	}); err != nil {
		return rep, err
	}

	var missing []edge
	for wsID, members := range rosters {
		for uid := range members {
			set, ok := lists[uid]
			if !ok {
				rep.OrphanMembers++
				s.log.Warn("roster lists a missing user",
					zap.String("workspace_id", wsID.Hex()),
					zap.String("user_id", uid))
				continue
			}
			if !set[wsID] {
				oid, err := normalize.ObjectID(uid)
				if err != nil {
					continue
				}
				missing = append(missing, edge{user: oid, ws: wsID})
			}
		}
	}

	for _, e := range stale {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		listed, err := s.listedNow(ctx, e)
		if err != nil {
			rep.Failed++
			continue
		}
		if listed {
			continue
		}
		if err := s.users.PullWorkspace(ctx, e.user, e.ws); err != nil {
			if !isUserGone(err) {
				rep.Failed++
				s.log.Warn("reconcile pull failed", edgeFields(e, err)...)
			}
			continue
		}
		rep.StaleRemoved++
	}

	for _, e := range missing {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		listed, err := s.listedNow(ctx, e)
		if err != nil {
			rep.Failed++
			continue
		}
		if !listed {
			continue
		}
		if err := s.users.AddWorkspace(ctx, e.user, e.ws); err != nil {
			if !isUserGone(err) {
				rep.Failed++
				s.log.Warn("reconcile add failed", edgeFields(e, err)...)
			}
			continue
		}
		rep.MissingAdded++
	}

	if rep.StaleRemoved > 0 || rep.MissingAdded > 0 || rep.Failed > 0 {
		s.log.Info("membership reconciled",
			zap.Int("stale_removed", rep.StaleRemoved),
			zap.Int("missing_added", rep.MissingAdded),
			zap.Int("orphan_members", rep.OrphanMembers),
			zap.Int("failed", rep.Failed))
	}
	return rep, nil
}

// listedNow re-reads the workspace and reports whether it lists the user.
func (s *Service) listedNow(ctx context.Context, e edge) (bool, error) {
	ws, err := s.workspaces.GetByID(ctx, e.ws)
	if errors.Is(err, workspacestore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		s.log.Warn("reconcile re-check failed", edgeFields(e, err)...)
		return false, err
	}
	_, ok := ws.FindMember(normalize.ID(e.user))
	return ok, nil
}

func edgeFields(e edge, err error) []zap.Field {
	return []zap.Field{
		zap.String("workspace_id", e.ws.Hex()),
		zap.String("user_id", e.user.Hex()),
		zap.Error(err),
	}
}
