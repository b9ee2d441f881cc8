package archive_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelkit/mcp-think-tool/internal/thinktool/archive"
	"github.com/modelkit/mcp-think-tool/internal/thinktool/session"
)

func openArchive(t *testing.T) *archive.Archive {
	t.Helper()
	a, err := archive.Open(filepath.Join(t.TempDir(), "thoughts.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestRecordAndReadBack(t *testing.T) {
	a := openArchive(t)
	ctx := context.Background()

	conf := 0.6
	entries := []session.ThoughtEntry{
		{Seq: 1, Thought: "first", RecordedAt: time.Now()},
		{
			Seq: 2, Thought: "second", RecordedAt: time.Now(),
			Pattern: "critical", Confidence: &conf,
			Alternatives: []string{"x", "y"}, Justification: "evidence",
		},
	}
	for _, e := range entries {
		if err := a.Record(ctx, "sess-1", e); err != nil {
			t.Fatalf("record seq %d: %v", e.Seq, err)
		}
	}

	got, err := a.Thoughts(ctx, "sess-1")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Seq != 1 || got[0].Thought != "first" {
		t.Errorf("unexpected first entry: %+v", got[0])
	}
	second := got[1]
	if second.Pattern != "critical" || second.Justification != "evidence" {
		t.Errorf("optional strings lost: %+v", second)
	}
	if second.Confidence == nil || *second.Confidence != 0.6 {
		t.Errorf("confidence lost: %v", second.Confidence)
	}
	if len(second.Alternatives) != 2 || second.Alternatives[0] != "x" {
		t.Errorf("alternatives lost: %v", second.Alternatives)
	}
}

func TestSessionsKeptSeparate(t *testing.T) {
	a := openArchive(t)
	ctx := context.Background()

	if err := a.Record(ctx, "sess-a", session.ThoughtEntry{Seq: 1, Thought: "from a", RecordedAt: time.Now()}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := a.Record(ctx, "sess-b", session.ThoughtEntry{Seq: 1, Thought: "from b", RecordedAt: time.Now()}); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := a.Thoughts(ctx, "sess-a")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got) != 1 || got[0].Thought != "from a" {
		t.Errorf("session a sees foreign entries: %+v", got)
	}
}

func TestDuplicateSeqRejected(t *testing.T) {
	a := openArchive(t)
	ctx := context.Background()

	e := session.ThoughtEntry{Seq: 1, Thought: "once", RecordedAt: time.Now()}
	if err := a.Record(ctx, "sess-1", e); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := a.Record(ctx, "sess-1", e); err == nil {
		t.Error("duplicate (session, seq) must be rejected by the schema")
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thoughts.db")

	a, err := archive.Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := a.Record(context.Background(), "sess-1", session.ThoughtEntry{Seq: 1, Thought: "persisted", RecordedAt: time.Now()}); err != nil {
		t.Fatalf("record: %v", err)
	}
	a.Close()

	a, err = archive.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer a.Close()

	got, err := a.Thoughts(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got) != 1 || got[0].Thought != "persisted" {
		t.Errorf("archive lost data across reopen: %+v", got)
	}
}
