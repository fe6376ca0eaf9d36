package testutil

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	userstore "github.com/dalemusser/taskspace/internal/app/store/users"
	workspacestore "github.com/dalemusser/taskspace/internal/app/store/workspaces"
	"github.com/dalemusser/taskspace/internal/app/system/normalize"
	"github.com/dalemusser/taskspace/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FakeUserStore is an in-memory user store for service and handler tests.
// It mirrors the Mongo store's sentinel errors.
type FakeUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
	order []primitive.ObjectID

	// AddWorkspaceErr, when set, is returned by AddWorkspace.
	AddWorkspaceErr error
	// PullWorkspaceErr, when set, is returned by PullWorkspace.
	PullWorkspaceErr error
}

// NewFakeUserStore returns an empty FakeUserStore.
func NewFakeUserStore() *FakeUserStore {
	return &FakeUserStore{users: map[primitive.ObjectID]models.User{}}
}

func (f *FakeUserStore) GetByID(_ context.Context, id primitive.ObjectID) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return models.User{}, userstore.ErrNotFound
	}
	return cloneUser(u), nil
}

func (f *FakeUserStore) GetByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = normalize.Email(email)
	for _, u := range f.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return models.User{}, userstore.ErrNotFound
}

func (f *FakeUserStore) Create(_ context.Context, u models.User) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Email = normalize.Email(u.Email)
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return models.User{}, userstore.ErrDuplicateEmail
		}
	}
	u.ID = primitive.NewObjectID()
	u.Name = normalize.Name(u.Name)
	u.NameCI = text.Fold(u.Name)
	if u.Workspaces == nil {
		u.Workspaces = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	f.users[u.ID] = u
	f.order = append(f.order, u.ID)
	return cloneUser(u), nil
}

func (f *FakeUserStore) List(_ context.Context, skip, limit int64) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.User{}
	for i, id := range f.liveOrder() {
		if int64(i) < skip {
			continue
		}
		if int64(len(out)) >= limit {
			break
		}
		out = append(out, cloneUser(f.users[id]))
	}
	return out, nil
}

func (f *FakeUserStore) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.users)), nil
}

func (f *FakeUserStore) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return userstore.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	f.users[id] = u
	return nil
}

func (f *FakeUserStore) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return 0, nil
	}
	delete(f.users, id)
	return 1, nil
}

func (f *FakeUserStore) AddWorkspace(_ context.Context, userID, wsID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AddWorkspaceErr != nil {
		return f.AddWorkspaceErr
	}
	u, ok := f.users[userID]
	if !ok {
		return userstore.ErrNotFound
	}
	if !u.HasWorkspace(wsID) {
		u.Workspaces = append(u.Workspaces, wsID)
	}
	f.users[userID] = u
	return nil
}

func (f *FakeUserStore) PullWorkspace(_ context.Context, userID, wsID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PullWorkspaceErr != nil {
		return f.PullWorkspaceErr
	}
	u, ok := f.users[userID]
	if !ok {
		return userstore.ErrNotFound
	}
	u.Workspaces = without(u.Workspaces, wsID)
	f.users[userID] = u
	return nil
}

func (f *FakeUserStore) PullWorkspaceFromAll(_ context.Context, wsID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, u := range f.users {
		if u.HasWorkspace(wsID) {
			u.Workspaces = without(u.Workspaces, wsID)
			f.users[id] = u
			n++
		}
	}
	return n, nil
}

// Each visits a snapshot of the users so fn may call back into the store.
func (f *FakeUserStore) Each(_ context.Context, fn func(models.User) error) error {
	f.mu.Lock()
	snapshot := make([]models.User, 0, len(f.users))
	for _, id := range f.liveOrder() {
		snapshot = append(snapshot, cloneUser(f.users[id]))
	}
	f.mu.Unlock()

	for _, u := range snapshot {
		if err := fn(u); err != nil {
			return err
		}
	}
	return nil
}

// Put stores u as-is, replacing any user with the same id. Tests use it to
// seed inconsistent state.
func (f *FakeUserStore) Put(u models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		f.order = append(f.order, u.ID)
	}
	f.users[u.ID] = cloneUser(u)
}

func (f *FakeUserStore) liveOrder() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(f.users))
	for _, id := range f.order {
		if _, ok := f.users[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// FakeWorkspaceStore is an in-memory workspace store. Invite codes are
// unique as in the Mongo store.
type FakeWorkspaceStore struct {
	mu         sync.Mutex
	workspaces map[primitive.ObjectID]models.Workspace

	// CollideNext makes the next n Create calls fail with
	// ErrDuplicateInviteCode.
	CollideNext int
	// CreateCalls counts Create invocations, including collisions.
	CreateCalls int
	// CreateErr, when set, is returned by Create.
	CreateErr error
}

// NewFakeWorkspaceStore returns an empty FakeWorkspaceStore.
func NewFakeWorkspaceStore() *FakeWorkspaceStore {
	return &FakeWorkspaceStore{workspaces: map[primitive.ObjectID]models.Workspace{}}
}

func (f *FakeWorkspaceStore) Create(_ context.Context, ws models.Workspace) (models.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++
	if f.CreateErr != nil {
		return models.Workspace{}, f.CreateErr
	}
	if f.CollideNext > 0 {
		f.CollideNext--
		return models.Workspace{}, workspacestore.ErrDuplicateInviteCode
	}
	for _, existing := range f.workspaces {
		if existing.InviteCode == ws.InviteCode {
			return models.Workspace{}, workspacestore.ErrDuplicateInviteCode
		}
	}
	now := time.Now().UTC()
	ws.ID = primitive.NewObjectID()
	ws.NameCI = text.Fold(ws.Name)
	if ws.Members == nil {
		ws.Members = []models.Member{}
	}
	if ws.Channels == nil {
		ws.Channels = []primitive.ObjectID{}
	}
	ws.CreatedAt, ws.UpdatedAt = now, now
	f.workspaces[ws.ID] = cloneWorkspace(ws)
	return cloneWorkspace(ws), nil
}

func (f *FakeWorkspaceStore) GetByID(_ context.Context, id primitive.ObjectID) (models.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ws, ok := f.workspaces[id]
	if !ok {
		return models.Workspace{}, workspacestore.ErrNotFound
	}
	return cloneWorkspace(ws), nil
}

func (f *FakeWorkspaceStore) GetByInviteCode(_ context.Context, code string) (models.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ws := range f.workspaces {
		if ws.InviteCode == code {
			return cloneWorkspace(ws), nil
		}
	}
	return models.Workspace{}, workspacestore.ErrNotFound
}

func (f *FakeWorkspaceStore) AddMember(_ context.Context, id primitive.ObjectID, m models.Member) (models.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ws, ok := f.workspaces[id]
	if !ok {
		return models.Workspace{}, workspacestore.ErrNotFound
	}
	if _, found := ws.FindMember(m.UserID.Hex()); found {
		return models.Workspace{}, workspacestore.ErrAlreadyMember
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	ws.Members = append(ws.Members, m)
	ws.UpdatedAt = time.Now().UTC()
	f.workspaces[id] = ws
	return cloneWorkspace(ws), nil
}

func (f *FakeWorkspaceStore) RemoveMemberAsAdmin(_ context.Context, id, requester, target primitive.ObjectID) (models.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ws, ok := f.workspaces[id]
	if !ok {
		return models.Workspace{}, workspacestore.ErrNotEligible
	}
	r, rok := ws.FindMember(requester.Hex())
	t, tok := ws.FindMember(target.Hex())
	if !rok || !tok || r.Role != models.RoleAdmin || t.Role != models.RoleMember {
		return models.Workspace{}, workspacestore.ErrNotEligible
	}
	ws.Members = withoutMember(ws.Members, target)
	ws.UpdatedAt = time.Now().UTC()
	f.workspaces[id] = ws
	return cloneWorkspace(ws), nil
}

func (f *FakeWorkspaceStore) PullMember(ctx context.Context, id, userID primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ws, ok := f.workspaces[id]
	if !ok {
		return nil
	}
	ws.Members = withoutMember(ws.Members, userID)
	f.workspaces[id] = ws
	return nil
}

func (f *FakeWorkspaceStore) Update(_ context.Context, id primitive.ObjectID, upd workspacestore.Update) (models.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ws, ok := f.workspaces[id]
	if !ok {
		return models.Workspace{}, workspacestore.ErrNotFound
	}
	if upd.Name != nil && *upd.Name != "" {
		ws.Name = *upd.Name
		ws.NameCI = text.Fold(*upd.Name)
	}
	if upd.Description != nil && *upd.Description != "" {
		ws.Description = *upd.Description
	}
	ws.UpdatedAt = time.Now().UTC()
	f.workspaces[id] = ws
	return cloneWorkspace(ws), nil
}

func (f *FakeWorkspaceStore) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.workspaces[id]; !ok {
		return 0, nil
	}
	delete(f.workspaces, id)
	return 1, nil
}

func (f *FakeWorkspaceStore) ListByMember(_ context.Context, userID primitive.ObjectID, skip, limit int64) ([]models.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.byMember(userID)
	out := []models.Workspace{}
	for i, ws := range all {
		if int64(i) < skip {
			continue
		}
		if int64(len(out)) >= limit {
			break
		}
		out = append(out, cloneWorkspace(ws))
	}
	return out, nil
}

func (f *FakeWorkspaceStore) CountByMember(_ context.Context, userID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.byMember(userID))), nil
}

// Each visits a snapshot of the workspaces so fn may call back into the store.
func (f *FakeWorkspaceStore) Each(_ context.Context, fn func(models.Workspace) error) error {
	f.mu.Lock()
	snapshot := make([]models.Workspace, 0, len(f.workspaces))
	for _, ws := range f.workspaces {
		snapshot = append(snapshot, cloneWorkspace(ws))
	}
	f.mu.Unlock()

	for _, ws := range snapshot {
		if err := fn(ws); err != nil {
			return err
		}
	}
	return nil
}

// Put stores ws as-is. Tests use it to seed inconsistent state.
func (f *FakeWorkspaceStore) Put(ws models.Workspace) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workspaces[ws.ID] = cloneWorkspace(ws)
}

// Len returns the number of stored workspaces.
func (f *FakeWorkspaceStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.workspaces)
}

func (f *FakeWorkspaceStore) byMember(userID primitive.ObjectID) []models.Workspace {
	var out []models.Workspace
	for _, ws := range f.workspaces {
		if _, ok := ws.FindMember(userID.Hex()); ok {
			out = append(out, ws)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func cloneUser(u models.User) models.User {
	u.Workspaces = append([]primitive.ObjectID{}, u.Workspaces...)
	return u
}

func cloneWorkspace(ws models.Workspace) models.Workspace {
	ws.Members = append([]models.Member{}, ws.Members...)
	ws.Channels = append([]primitive.ObjectID{}, ws.Channels...)
	return ws
}

func without(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func withoutMember(members []models.Member, userID primitive.ObjectID) []models.Member {
	out := make([]models.Member, 0, len(members))
	for _, m := range members {
		if m.UserID != userID {
			out = append(out, m)
		}
	}
	return out
}

// FakeHasher is a fast stand-in for the bcrypt hasher.
type FakeHasher struct {
	mu    sync.Mutex
	Burns int
}

func (h *FakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (h *FakeHasher) Verify(password, digest string) bool { return digest == "hashed:"+password }

func (h *FakeHasher) Burn(string) {
	h.mu.Lock()
	h.Burns++
	h.mu.Unlock()
}

// FakeLoginStore is an in-memory login history.
type FakeLoginStore struct {
	mu   sync.Mutex
	recs []models.LoginRecord

	// CreateErr, when set, is returned by CreateFrom.
	CreateErr error
}

func (f *FakeLoginStore) CreateFrom(_ context.Context, r *http.Request, userID primitive.ObjectID, method string) error {
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.Add(models.LoginRecord{UserID: userID, Method: method, IP: r.RemoteAddr})
	return nil
}

// Add appends rec as the newest record.
func (f *FakeLoginStore) Add(rec models.LoginRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	f.recs = append(f.recs, rec)
}

func (f *FakeLoginStore) ListRecent(_ context.Context, userID primitive.ObjectID, limit int64) ([]models.LoginRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.LoginRecord{}
	for i := len(f.recs) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if f.recs[i].UserID == userID {
			out = append(out, f.recs[i])
		}
	}
	return out, nil
}

func (f *FakeLoginStore) DeleteByUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := make([]models.LoginRecord, 0, len(f.recs))
	var n int64
	for _, r := range f.recs {
		if r.UserID == userID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.recs = kept
	return n, nil
}

// Methods returns the method of every record, oldest first.
func (f *FakeLoginStore) Methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.recs))
	for _, r := range f.recs {
		out = append(out, r.Method)
	}
	return out
}
