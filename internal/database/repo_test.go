package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func setupDB(t *testing.T) *sqlx.DB {
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL is not set; skipping integration tests")
	}
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	files := []string{"../../migrations/0001_init.up.sql"}
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read migration %s: %v", f, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			t.Logf("exec migration %s: %v", f, err)
		}
	}
	return db
}

func testEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@test.local", prefix, time.Now().UnixNano())
}

func TestCreateUser(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()

	email := testEmail("create")
	u, err := r.CreateUser(ctx, email, "hash")
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected server-assigned id")
	}
	if u.SubscriptionStatus != "inactive" {
		t.Fatalf("expected inactive status, got %q", u.SubscriptionStatus)
	}

	if _, err := r.CreateUser(ctx, email, "hash"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := r.GetUserByEmail(ctx, email)
	if err != nil {
		t.Fatalf("get by email failed: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected id %s, got %s", u.ID, got.ID)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()

	if _, err := r.GetUserByEmail(ctx, "nobody@test.local"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.GetUserByID(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSubscription(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()

	u, err := r.CreateUser(ctx, testEmail("sub"), "hash")
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	if err := r.UpdateSubscription(ctx, u.ID, "cus_1", "sub_1", "active"); err != nil {
		t.Fatalf("update subscription failed: %v", err)
	}

	got, err := r.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user failed: %v", err)
	}
	if !got.IsSubscribed() {
		t.Fatal("expected user to be subscribed")
	}
	if got.CustomerID.String != "cus_1" || got.SubscriptionID.String != "sub_1" {
		t.Fatalf("unexpected billing ids: %+v", got)
	}

	if err := r.UpdateSubscription(ctx, "00000000-0000-0000-0000-000000000000", "c", "s", "active"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
