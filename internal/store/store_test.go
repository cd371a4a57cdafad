package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/castform/castform/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndFetchSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "weekly standup", "host-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.ID == "" || sess.JoinCode == "" {
		t.Fatalf("missing generated fields: %+v", sess)
	}
	if len(sess.JoinCode) != 8 {
		t.Fatalf("join code %q is not a uuid group", sess.JoinCode)
	}

	byID, err := s.SessionByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if byID.Name != "weekly standup" || byID.HostID != "host-1" {
		t.Fatalf("row mangled: %+v", byID)
	}

	byCode, err := s.SessionByJoinCode(ctx, sess.JoinCode)
	if err != nil {
		t.Fatalf("by code: %v", err)
	}
	if byCode.ID != sess.ID {
		t.Fatalf("join code resolved to %s, want %s", byCode.ID, sess.ID)
	}
}

func TestSessionNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.SessionByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("by id: expected ErrNotFound, got %v", err)
	}
	if _, err := s.SessionByJoinCode(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("by code: expected ErrNotFound, got %v", err)
	}
}

func TestSessionsByHost(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateSession(ctx, "one", "host-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateSession(ctx, "two", "host-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateSession(ctx, "other", "host-2"); err != nil {
		t.Fatal(err)
	}

	out, err := s.SessionsByHost(ctx, "host-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(out))
	}
	for _, sess := range out {
		if sess.HostID != "host-1" {
			t.Fatalf("foreign session leaked: %+v", sess)
		}
	}
}

func TestRecordingsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.CreateSession(ctx, "recorded", "host-1")
	if err != nil {
		t.Fatal(err)
	}

	rec := &domain.Recording{
		SessionID:   sess.ID,
		Type:        domain.RecordingVideo,
		StoragePath: string(sess.ID) + "/artifact.webm",
		Metadata:    `{"duration":12.5}`,
	}
	if err := s.CreateRecording(ctx, rec); err != nil {
		t.Fatalf("create recording: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("generated fields missing: %+v", rec)
	}

	out, err := s.RecordingsBySession(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 recording, got %d", len(out))
	}
	got := out[0]
	if got.Type != domain.RecordingVideo || got.StoragePath != rec.StoragePath || got.Metadata != rec.Metadata {
		t.Fatalf("row mangled: %+v", got)
	}

	other, err := s.RecordingsBySession(ctx, "unrelated")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Fatalf("recordings leaked across sessions: %+v", other)
	}
}
