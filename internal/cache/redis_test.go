// Package cache integration tests against a real Redis container.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zygotrix/zigi-go/internal/models"
)

var testStore *RedisStore
var testContainer testcontainers.Container

// TestMain sets up and tears down the Redis container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "6379")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testStore, err = NewRedisStore(ctx, RedisConfig{
		Addr: fmt.Sprintf("%s:%s", host, mappedPort.Port()),
	})
	if err != nil {
		log.Fatalf("Failed to connect to test Redis: %v", err)
	}

	code := m.Run()

	_ = testStore.Close()
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func TestRedisStore_SetGet(t *testing.T) {
	ctx := context.Background()

	if err := testStore.Set(ctx, "zigi:test:k1", []byte("hello"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := testStore.Get(ctx, "zigi:test:k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Get() = %q, want %q", got, "hello")
	}
}

func TestRedisStore_Miss(t *testing.T) {
	_, err := testStore.Get(context.Background(), "zigi:test:absent")
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("got %v, want ErrCacheMiss", err)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	ctx := context.Background()

	if err := testStore.Set(ctx, "zigi:test:k2", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := testStore.Delete(ctx, "zigi:test:k2"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := testStore.Get(ctx, "zigi:test:k2"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("got %v, want ErrCacheMiss after delete", err)
	}
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()

	if err := testStore.Set(ctx, "zigi:test:k3", []byte("v"), 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if _, err := testStore.Get(ctx, "zigi:test:k3"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("got %v, want ErrCacheMiss for expired key", err)
	}
}

func TestRedisStore_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()

	snap := ConversationSnapshot{
		Conversation: models.Conversation{ID: "c1", Title: "Punnett squares", MessageCount: 2},
		Messages: []models.Message{
			{ID: "m1", Role: models.RoleUser, Content: "What is a punnett square?"},
			{ID: "m2", Role: models.RoleAssistant, Content: "A grid for crosses."},
		},
		CachedAt: time.Now().UTC().Truncate(time.Second),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}

	key := ConversationKey(snap.Conversation.ID)
	if err := testStore.Set(ctx, key, data, DefaultTTL); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	raw, err := testStore.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	var got ConversationSnapshot
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if got.Conversation.Title != snap.Conversation.Title {
		t.Errorf("title = %q, want %q", got.Conversation.Title, snap.Conversation.Title)
	}
	if len(got.Messages) != 2 {
		t.Errorf("got %d messages, want 2", len(got.Messages))
	}
}
