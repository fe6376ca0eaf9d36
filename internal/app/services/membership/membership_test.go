package membership_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/taskspace/internal/app/services/membership"
	"github.com/dalemusser/taskspace/internal/app/system/apperr"
	"github.com/dalemusser/taskspace/internal/app/system/invitecode"
	"github.com/dalemusser/taskspace/internal/app/system/paging"
	"github.com/dalemusser/taskspace/internal/domain/models"
	"github.com/dalemusser/taskspace/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixture struct {
	svc        *membership.Service
	workspaces *testutil.FakeWorkspaceStore
	users      *testutil.FakeUserStore
	alice      models.User
	bob        models.User
	carol      models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		workspaces: testutil.NewFakeWorkspaceStore(),
		users:      testutil.NewFakeUserStore(),
	}
	f.svc = membership.New(f.workspaces, f.users, invitecode.New(invitecode.DefaultBytes), 3, zap.NewNop())

	ctx := context.Background()
	var err error
	f.alice, err = f.users.Create(ctx, models.User{Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)
	f.bob, err = f.users.Create(ctx, models.User{Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)
	f.carol, err = f.users.Create(ctx, models.User{Name: "Carol", Email: "carol@example.com"})
	require.NoError(t, err)
	return f
}

func (f *fixture) createEng(t *testing.T) models.Workspace {
	t.Helper()
	ws, err := f.svc.CreateWorkspace(context.Background(), f.alice.ID.Hex(), f.alice.Email,
		membership.CreateInput{Name: "Eng"})
	require.NoError(t, err)
	return ws
}

func (f *fixture) user(t *testing.T, id primitive.ObjectID) models.User {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func TestCreateWorkspace(t *testing.T) {
	f := newFixture(t)
	ws := f.createEng(t)

	require.Equal(t, "Eng", ws.Name)
	require.Equal(t, models.DefaultWorkspaceDescription, ws.Description)
	require.Equal(t, f.alice.ID, ws.Owner)
	require.Len(t, ws.Members, 1)
	require.Equal(t, f.alice.ID, ws.Members[0].UserID)
	require.Equal(t, models.RoleAdmin, ws.Members[0].Role)
	require.Regexp(t, invitecode.Pattern(invitecode.DefaultBytes), ws.InviteCode)
	require.True(t, f.user(t, f.alice.ID).HasWorkspace(ws.ID))
}

func TestCreateWorkspace_SanitizesAndValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ws, err := f.svc.CreateWorkspace(ctx, f.alice.ID.Hex(), f.alice.Email,
		membership.CreateInput{Name: "<script>x</script>Ops", Description: "<i>night</i> shift"})
	require.NoError(t, err)
	require.Equal(t, "Ops", ws.Name)
	require.Equal(t, "night shift", ws.Description)

	_, err = f.svc.CreateWorkspace(ctx, f.alice.ID.Hex(), f.alice.Email, membership.CreateInput{})
	require.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	long := make([]byte, models.MaxWorkspaceDescription+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.svc.CreateWorkspace(ctx, f.alice.ID.Hex(), f.alice.Email,
		membership.CreateInput{Name: "Long", Description: string(long)})
	require.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))
}

func TestCreateWorkspace_UniqueInviteCodes(t *testing.T) {
	f := newFixture(t)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		ws, err := f.svc.CreateWorkspace(context.Background(), f.alice.ID.Hex(), f.alice.Email,
			membership.CreateInput{Name: fmt.Sprintf("ws-%d", i)})
		require.NoError(t, err)
		require.False(t, seen[ws.InviteCode], "duplicate invite code %s", ws.InviteCode)
		seen[ws.InviteCode] = true
	}
}

func TestCreateWorkspace_RetriesOnCollision(t *testing.T) {
	f := newFixture(t)
	f.workspaces.CollideNext = 1

	ws := f.createEng(t)
	require.False(t, ws.ID.IsZero())
	require.Equal(t, 2, f.workspaces.CreateCalls)
}

func TestCreateWorkspace_RetryBudgetExhausted(t *testing.T) {
	f := newFixture(t)
	f.workspaces.CollideNext = 100

	_, err := f.svc.CreateWorkspace(context.Background(), f.alice.ID.Hex(), f.alice.Email,
		membership.CreateInput{Name: "Eng"})
	require.Error(t, err)
	require.Equal(t, apperr.Internal, apperr.KindOf(err))
	require.Equal(t, 500, apperr.Status(err))
	require.True(t, errors.Is(err, membership.ErrInviteCodesExhausted))
	require.Equal(t, 3, f.workspaces.CreateCalls)
	require.Zero(t, f.workspaces.Len())
}

func TestCreateWorkspace_OtherErrorsDoNotRetry(t *testing.T) {
	f := newFixture(t)
	f.workspaces.CreateErr = errors.New("disk full")

	_, err := f.svc.CreateWorkspace(context.Background(), f.alice.ID.Hex(), f.alice.Email,
		membership.CreateInput{Name: "Eng"})
	require.Equal(t, apperr.Internal, apperr.KindOf(err))
	require.Equal(t, 1, f.workspaces.CreateCalls)
}

func TestCreateWorkspace_CodeGeneratorFailure(t *testing.T) {
	f := newFixture(t)
	svc := membership.New(f.workspaces, f.users, func() (string, error) {
		return "", errors.New("no entropy")
	}, 3, zap.NewNop())

	_, err := svc.CreateWorkspace(context.Background(), f.alice.ID.Hex(), f.alice.Email,
		membership.CreateInput{Name: "Eng"})
	require.Equal(t, apperr.Internal, apperr.KindOf(err))
	require.Zero(t, f.workspaces.CreateCalls)
}

func TestJoinByInviteCode(t *testing.T) {
	f := newFixture(t)
	ws := f.createEng(t)

	joined, err := f.svc.JoinByInviteCode(context.Background(), f.bob.ID.Hex(), f.bob.Email, ws.InviteCode)
	require.NoError(t, err)
	require.Len(t, joined.Members, 2)

	m, ok := joined.FindMember(f.bob.ID.Hex())
	require.True(t, ok)
	require.Equal(t, models.RoleMember, m.Role)
	require.Equal(t, "bob@example.com", m.Email)
	require.True(t, f.user(t, f.bob.ID).HasWorkspace(ws.ID))
}

func TestJoinByInviteCode_UnknownCode(t *testing.T) {
	f := newFixture(t)
	f.createEng(t)

	_, err := f.svc.JoinByInviteCode(context.Background(), f.bob.ID.Hex(), f.bob.Email, "0000000000000000")
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
	require.Equal(t, 404, apperr.Status(err))
}

func TestJoinByInviteCode_TwiceIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws := f.createEng(t)

	_, err := f.svc.JoinByInviteCode(ctx, f.bob.ID.Hex(), f.bob.Email, ws.InviteCode)
	require.NoError(t, err)

	// Upper-case id and padded code still name the same user and workspace.
	_, err = f.svc.JoinByInviteCode(ctx, " "+strings.ToUpper(f.bob.ID.Hex())+" ", f.bob.Email, " "+ws.InviteCode+" ")
	require.Equal(t, apperr.Conflict, apperr.KindOf(err))

	got, err := f.workspaces.GetByID(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, got.Members, 2)
}

func TestJoinByInviteCode_OwnerIsAlreadyMember(t *testing.T) {
	f := newFixture(t)
	ws := f.createEng(t)

	_, err := f.svc.JoinByInviteCode(context.Background(), f.alice.ID.Hex(), f.alice.Email, ws.InviteCode)
	require.Equal(t, apperr.Conflict, apperr.KindOf(err))
	require.Equal(t, 409, apperr.Status(err))
}

func TestJoinByInviteCode_CompensatesUserWriteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws := f.createEng(t)
	f.users.AddWorkspaceErr = errors.New("users db down")

	_, err := f.svc.JoinByInviteCode(ctx, f.bob.ID.Hex(), f.bob.Email, ws.InviteCode)
	require.Equal(t, apperr.Internal, apperr.KindOf(err))

	got, err := f.workspaces.GetByID(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, got.Members, 1)
}

// stalledUsers blocks AddWorkspace until the caller's context is done.
type stalledUsers struct {
	*testutil.FakeUserStore
}

func (s stalledUsers) AddWorkspace(ctx context.Context, _, _ primitive.ObjectID) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestJoinByInviteCode_CompensatesAfterDeadline(t *testing.T) {
	f := newFixture(t)
	ws := f.createEng(t)
	svc := membership.New(f.workspaces, stalledUsers{f.users}, nil, 3, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.JoinByInviteCode(ctx, f.bob.ID.Hex(), f.bob.Email, ws.InviteCode)
	require.Equal(t, apperr.Unavailable, apperr.KindOf(err))

	got, err := f.workspaces.GetByID(context.Background(), ws.ID)
	require.NoError(t, err)
	require.Len(t, got.Members, 1)
	_, listed := got.FindMember(f.bob.ID.Hex())
	require.False(t, listed)

	// A retry after the outage succeeds instead of reporting already-member.
	_, err = f.svc.JoinByInviteCode(context.Background(), f.bob.ID.Hex(), f.bob.Email, ws.InviteCode)
	require.NoError(t, err)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws := f.createEng(t)
	_, err := f.svc.JoinByInviteCode(ctx, f.bob.ID.Hex(), f.bob.Email, ws.InviteCode)
	require.NoError(t, err)

	updated, err := f.svc.RemoveMember(ctx, f.alice.ID.Hex(), ws.ID.Hex(), f.bob.ID.Hex())
	require.NoError(t, err)
	require.Len(t, updated.Members, 1)
	require.False(t, f.user(t, f.bob.ID).HasWorkspace(ws.ID))
}

func TestRemoveMember_AdminCannotRemoveAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws := f.createEng(t)

	// Bob is a second admin.
	seeded, err := f.workspaces.GetByID(ctx, ws.ID)
	require.NoError(t, err)
	seeded.Members = append(seeded.Members, models.Member{UserID: f.bob.ID, Email: f.bob.Email, Role: models.RoleAdmin})
	f.workspaces.Put(seeded)

	_, err = f.svc.RemoveMember(ctx, f.alice.ID.Hex(), ws.ID.Hex(), f.bob.ID.Hex())
	require.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))
	require.Equal(t, 400, apperr.Status(err))

	got, _ := f.workspaces.GetByID(ctx, ws.ID)
	require.Len(t, got.Members, 2)
}

func TestRemoveMember_NonAdminRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws := f.createEng(t)
	for _, u := range []models.User{f.bob, f.carol} {
		_, err := f.svc.JoinByInviteCode(ctx, u.ID.Hex(), u.Email, ws.InviteCode)
		require.NoError(t, err)
	}

	_, err := f.svc.RemoveMember(ctx, f.bob.ID.Hex(), ws.ID.Hex(), f.carol.ID.Hex())
	require.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	_, err = f.svc.RemoveMember(ctx, f.bob.ID.Hex(), ws.ID.Hex(), f.alice.ID.Hex())
	require.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	got, _ := f.workspaces.GetByID(ctx, ws.ID)
	require.Len(t, got.Members, 3)
}

func TestRemoveMember_NonMemberTargetAndBadIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws := f.createEng(t)

	_, err := f.svc.RemoveMember(ctx, f.alice.ID.Hex(), ws.ID.Hex(), f.carol.ID.Hex())
	require.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))

	_, err = f.svc.RemoveMember(ctx, f.alice.ID.Hex(), "nope", f.carol.ID.Hex())
	require.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))
}

func TestRemoveMember_UserSideFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws := f.createEng(t)
	_, err := f.svc.JoinByInviteCode(ctx, f.bob.ID.Hex(), f.bob.Email, ws.InviteCode)
	require.NoError(t, err)
	f.users.PullWorkspaceErr = errors.New("users db down")

	updated, err := f.svc.RemoveMember(ctx, f.alice.ID.Hex(), ws.ID.Hex(), f.bob.ID.Hex())
	require.NoError(t, err)
	require.Len(t, updated.Members, 1)
	require.True(t, f.user(t, f.bob.ID).HasWorkspace(ws.ID))
}

func TestDeleteWorkspace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws := f.createEng(t)
	_, err := f.svc.JoinByInviteCode(ctx, f.bob.ID.Hex(), f.bob.Email, ws.InviteCode)
	require.NoError(t, err)

	err = f.svc.DeleteWorkspace(ctx, f.bob.ID.Hex(), ws.ID.Hex())
	require.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
	require.Equal(t, 401, apperr.Status(err))

	require.NoError(t, f.svc.DeleteWorkspace(ctx, f.alice.ID.Hex(), ws.ID.Hex()))

	_, err = f.svc.GetForMember(ctx, f.alice.ID.Hex(), ws.ID.Hex())
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
	require.False(t, f.user(t, f.alice.ID).HasWorkspace(ws.ID))
	require.False(t, f.user(t, f.bob.ID).HasWorkspace(ws.ID))

	err = f.svc.DeleteWorkspace(ctx, f.alice.ID.Hex(), ws.ID.Hex())
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestUpdateWorkspace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws := f.createEng(t)

	name := "Engineering"
	updated, err := f.svc.UpdateWorkspace(ctx, ws.ID.Hex(), membership.UpdateInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Engineering", updated.Name)
	require.Equal(t, models.DefaultWorkspaceDescription, updated.Description)

	empty := ""
	desc := "Builds things"
	updated, err = f.svc.UpdateWorkspace(ctx, ws.ID.Hex(), membership.UpdateInput{Name: &empty, Description: &desc})
	require.NoError(t, err)
	require.Equal(t, "Engineering", updated.Name)
	require.Equal(t, "Builds things", updated.Description)

	_, err = f.svc.UpdateWorkspace(ctx, primitive.NewObjectID().Hex(), membership.UpdateInput{Name: &name})
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestListForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateWorkspace(ctx, f.alice.ID.Hex(), f.alice.Email,
			membership.CreateInput{Name: fmt.Sprintf("ws-%d", i)})
		require.NoError(t, err)
	}

	list, total, err := f.svc.ListForUser(ctx, f.alice.ID.Hex(), paging.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, list, 2)

	list, total, err = f.svc.ListForUser(ctx, f.bob.ID.Hex(), paging.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, list)
}

func TestGetForMember_HidesFromOutsiders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ws := f.createEng(t)

	got, err := f.svc.GetForMember(ctx, f.alice.ID.Hex(), ws.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, ws.ID, got.ID)

	_, err = f.svc.GetForMember(ctx, f.bob.ID.Hex(), ws.ID.Hex())
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

