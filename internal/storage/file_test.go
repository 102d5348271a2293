package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/hallway/backend/internal/chat"
)

func TestFileMessageStoreAppendAndListInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	store, err := NewFileMessageStore(path, 10, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	for i := 0; i < 3; i++ {
		message := chat.Message{
			ID:               fmt.Sprintf("id-%d", i),
			Sender:           "alice",
			Email:            "a@x.com",
			Text:             fmt.Sprintf("msg-%d", i),
			CreatedAtSeconds: int64(1000 + i),
		}
		if err := store.Append(context.Background(), message); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	messages, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, message := range messages {
		if message.Text != fmt.Sprintf("msg-%d", i) {
			t.Fatalf("unexpected order at %d: %q", i, message.Text)
		}
	}
}

func TestFileMessageStoreEnforcesRetentionLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	const limit = 5
	store, err := NewFileMessageStore(path, limit, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	for i := 0; i < limit*2; i++ {
		message := chat.Message{ID: fmt.Sprintf("id-%d", i), Text: fmt.Sprintf("msg-%d", i)}
		if err := store.Append(context.Background(), message); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	messages, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(messages) != limit {
		t.Fatalf("expected %d messages after overflow, got %d", limit, len(messages))
	}
	if messages[0].Text != "msg-5" || messages[limit-1].Text != "msg-9" {
		t.Fatalf("expected only the most recent records, got first %q last %q", messages[0].Text, messages[limit-1].Text)
	}
}

func TestFileMessageStoreTreatsMalformedFileAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to seed malformed file: %v", err)
	}

	store, err := NewFileMessageStore(path, 10, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	messages, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected empty log, got %d records", len(messages))
	}

	if err := store.Append(context.Background(), chat.Message{ID: "id-0", Text: "hello"}); err != nil {
		t.Fatalf("append over malformed file failed: %v", err)
	}
	messages, err = store.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(messages) != 1 || messages[0].Text != "hello" {
		t.Fatalf("expected recovered log with one record, got %#v", messages)
	}
}

func TestFileUserStoreUpsertAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store, err := NewFileUserStore(path, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if _, ok, err := store.Lookup(context.Background(), "a@x.com"); err != nil || ok {
		t.Fatalf("expected no entry before upsert, ok=%v err=%v", ok, err)
	}

	if err := store.Upsert(context.Background(), "a@x.com", "alice"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	username, ok, err := store.Lookup(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !ok || username != "alice" {
		t.Fatalf("expected alice, got %q ok=%v", username, ok)
	}

	if err := store.Upsert(context.Background(), "a@x.com", "alice2"); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	username, ok, err = store.Lookup(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !ok || username != "alice2" {
		t.Fatalf("expected overwritten value, got %q ok=%v", username, ok)
	}
}

func TestFileUserStoreSurvivesProcessRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store, err := NewFileUserStore(path, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Upsert(context.Background(), "a@x.com", "alice"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	reopened, err := NewFileUserStore(path, nil)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	username, ok, err := reopened.Lookup(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !ok || username != "alice" {
		t.Fatalf("expected persisted mapping, got %q ok=%v", username, ok)
	}
}
