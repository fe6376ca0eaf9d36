package loginstore_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	loginstore "github.com/dalemusser/taskspace/internal/app/store/logins"
	"github.com/dalemusser/taskspace/internal/domain/models"
	"github.com/dalemusser/taskspace/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := loginstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	err := store.Create(ctx, models.LoginRecord{UserID: userID, IP: "192.168.1.1", Method: models.LoginMethodPassword})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var found models.LoginRecord
	if err := db.Collection(loginstore.Collection).FindOne(ctx, bson.M{"user_id": userID}).Decode(&found); err != nil {
		t.Fatalf("failed to find login record: %v", err)
	}
	if found.IP != "192.168.1.1" {
		t.Errorf("IP: got %q, want %q", found.IP, "192.168.1.1")
	}
	if found.Method != models.LoginMethodPassword {
		t.Errorf("Method: got %q", found.Method)
	}
	if found.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestStore_CreateFrom(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := loginstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	r.Header.Set("User-Agent", strings.Repeat("a", 400))

	userID := primitive.NewObjectID()
	if err := store.CreateFrom(ctx, r, userID, models.LoginMethodRegister); err != nil {
		t.Fatalf("CreateFrom failed: %v", err)
	}

	recs, err := store.ListRecent(ctx, userID, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].IP != "203.0.113.5" {
		t.Errorf("IP: got %q", recs[0].IP)
	}
	if len(recs[0].UserAgent) != loginstore.MaxUserAgent {
		t.Errorf("user agent not truncated: %d", len(recs[0].UserAgent))
	}
}

func TestStore_ListRecent_NewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := loginstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := models.LoginRecord{UserID: userID, Method: models.LoginMethodPassword, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.Create(ctx, rec); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if err := store.Create(ctx, models.LoginRecord{UserID: primitive.NewObjectID()}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	recs, err := store.ListRecent(ctx, userID, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if !recs[0].CreatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("newest first: got %v", recs[0].CreatedAt)
	}

	n, err := store.DeleteByUser(ctx, userID)
	if err != nil {
		t.Fatalf("DeleteByUser failed: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted %d, want 3", n)
	}
}
