package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hitoshi/kodbank/internal/model"
	"github.com/redis/go-redis/v9"
)

func newTestRedisRepo(t *testing.T) (*RedisTokenRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTokenRepo(client), mr
}

func TestRedisTokenRepo_CreateAndFind(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	token := &model.SessionToken{
		Value:     "token-abc",
		AccountID: "account-1",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	if err := repo.Create(ctx, token); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// キーにTTLが設定されていること
	ttl := mr.TTL(tokenKeyPrefix + "token-abc")
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, want (0, 1h]", ttl)
	}

	got, err := repo.FindByValue(ctx, "token-abc")
	if err != nil {
		t.Fatalf("FindByValue() error: %v", err)
	}
	if got == nil {
		t.Fatal("expected token, got nil")
	}
	if got.AccountID != "account-1" {
		t.Errorf("AccountID = %q, want %q", got.AccountID, "account-1")
	}
	if !got.ExpiresAt.Equal(token.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, token.ExpiresAt)
	}
}

func TestRedisTokenRepo_FindByValue_NotFound(t *testing.T) {
	repo, _ := newTestRedisRepo(t)

	got, err := repo.FindByValue(context.Background(), "missing")
	if err != nil {
		t.Fatalf("FindByValue() error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestRedisTokenRepo_KeyExpiresWithToken(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	ctx := context.Background()

	_ = repo.Create(ctx, &model.SessionToken{
		Value:     "short",
		AccountID: "account-1",
		ExpiresAt: time.Now().Add(time.Minute),
		CreatedAt: time.Now(),
	})

	mr.FastForward(2 * time.Minute)

	got, err := repo.FindByValue(ctx, "short")
	if err != nil {
		t.Fatalf("FindByValue() error: %v", err)
	}
	if got != nil {
		t.Error("expected expired key to be gone")
	}
}

func TestRedisTokenRepo_DeleteByValue_Idempotent(t *testing.T) {
	repo, _ := newTestRedisRepo(t)
	ctx := context.Background()

	_ = repo.Create(ctx, &model.SessionToken{
		Value:     "to-delete",
		AccountID: "account-1",
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	})

	if err := repo.DeleteByValue(ctx, "to-delete"); err != nil {
		t.Fatalf("first DeleteByValue() error: %v", err)
	}
	if err := repo.DeleteByValue(ctx, "to-delete"); err != nil {
		t.Fatalf("second DeleteByValue() error: %v", err)
	}

	got, _ := repo.FindByValue(ctx, "to-delete")
	if got != nil {
		t.Error("expected token to be deleted")
	}
}

func TestRedisTokenRepo_Create_AlreadyExpiredIsNotStored(t *testing.T) {
	repo, mr := newTestRedisRepo(t)

	err := repo.Create(context.Background(), &model.SessionToken{
		Value:     "past",
		AccountID: "account-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if mr.Exists(tokenKeyPrefix + "past") {
		t.Error("expired token should not be stored")
	}
}

func TestRedisTokenRepo_UnavailableReturnsError(t *testing.T) {
	repo, mr := newTestRedisRepo(t)
	mr.Close()

	if _, err := repo.FindByValue(context.Background(), "any"); err == nil {
		t.Error("expected error when redis is down")
	}
}
