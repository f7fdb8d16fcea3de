package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/plexllm/llamabot/internal/db"
	"github.com/plexllm/llamabot/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	database, err := db.OpenDB(t.TempDir() + "/history.db")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.InitSchema(database); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return store.New(database)
}

// sliceIterator replays a fixed external history; it can be rewound to
// simulate a second run, and can fail after a set number of messages to
// simulate a crash.
type sliceIterator struct {
	msgs      []ExternalMessage
	pos       int
	failAfter int // fail once pos reaches this, 0 means never
}

func (it *sliceIterator) Next(ctx context.Context) (ExternalMessage, bool, error) {
	if it.failAfter > 0 && it.pos >= it.failAfter {
		return ExternalMessage{}, false, errors.New("gateway timeout")
	}
	if it.pos >= len(it.msgs) {
		return ExternalMessage{}, false, nil
	}
	msg := it.msgs[it.pos]
	it.pos++
	return msg, true, nil
}

func externalHistory() []ExternalMessage {
	return []ExternalMessage{
		{ID: 101, Author: "alice", Content: "first"},
		{ID: 102, Author: "llamabot", Content: "I am the bot", FromBot: true},
		{ID: 103, Author: "bob", Content: "second"},
		{ID: 104, Author: "alice", Content: "third"},
	}
}

func TestRun_ImportsAndSkipsBot(t *testing.T) {
	st := testStore(t)

	imported, err := Run(context.Background(), st, 1, &sliceIterator{msgs: externalHistory()})
	if err != nil {
		t.Fatal(err)
	}
	if imported != 3 {
		t.Fatalf("expected 3 imported, got %d", imported)
	}

	msgs, err := st.Recent(1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 stored messages, got %d", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[2].Content != "third" {
		t.Errorf("unexpected stored order: %+v", msgs)
	}
	for _, m := range msgs {
		if m.Role != store.RoleUser {
			t.Errorf("expected user role, got %q", m.Role)
		}
	}

	id, found, err := st.LastImportedID(1)
	if err != nil {
		t.Fatal(err)
	}
	if !found || id != 104 {
		t.Errorf("expected watermark 104, got %d (found=%v)", id, found)
	}
}

func TestRun_Idempotent(t *testing.T) {
	st := testStore(t)

	if _, err := Run(context.Background(), st, 1, &sliceIterator{msgs: externalHistory()}); err != nil {
		t.Fatal(err)
	}

	imported, err := Run(context.Background(), st, 1, &sliceIterator{msgs: externalHistory()})
	if err != nil {
		t.Fatal(err)
	}
	if imported != 0 {
		t.Errorf("expected second run to import 0, got %d", imported)
	}

	id, _, err := st.LastImportedID(1)
	if err != nil {
		t.Fatal(err)
	}
	if id != 104 {
		t.Errorf("expected watermark unchanged at 104, got %d", id)
	}

	total, err := st.TotalMessages()
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("expected 3 messages after re-run, got %d", total)
	}
}

func TestRun_ResumesAfterNewMessages(t *testing.T) {
	st := testStore(t)

	if _, err := Run(context.Background(), st, 1, &sliceIterator{msgs: externalHistory()}); err != nil {
		t.Fatal(err)
	}

	grown := append(externalHistory(), ExternalMessage{ID: 105, Author: "carol", Content: "fourth"})
	imported, err := Run(context.Background(), st, 1, &sliceIterator{msgs: grown})
	if err != nil {
		t.Fatal(err)
	}
	if imported != 1 {
		t.Fatalf("expected 1 new message imported, got %d", imported)
	}

	id, _, err := st.LastImportedID(1)
	if err != nil {
		t.Fatal(err)
	}
	if id != 105 {
		t.Errorf("expected watermark 105, got %d", id)
	}
}

func TestRun_FailureMidScanCommitsAppendedTail(t *testing.T) {
	st := testStore(t)

	// Fails after the first two external messages are read (one appended,
	// one skipped as the bot).
	it := &sliceIterator{msgs: externalHistory(), failAfter: 2}
	imported, err := Run(context.Background(), st, 1, it)
	if err == nil {
		t.Fatal("expected scan error")
	}
	if imported != 1 {
		t.Fatalf("expected 1 imported before failure, got %d", imported)
	}

	id, found, err := st.LastImportedID(1)
	if err != nil {
		t.Fatal(err)
	}
	if !found || id != 101 {
		t.Fatalf("expected watermark at last appended id 101, got %d (found=%v)", id, found)
	}

	// Re-running picks up only the remaining tail.
	imported, err = Run(context.Background(), st, 1, &sliceIterator{msgs: externalHistory()})
	if err != nil {
		t.Fatal(err)
	}
	if imported != 2 {
		t.Fatalf("expected 2 imported on resume, got %d", imported)
	}
	total, err := st.TotalMessages()
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("expected 3 messages total, got %d", total)
	}
}

func TestRun_SkipsEmptyContent(t *testing.T) {
	st := testStore(t)

	msgs := []ExternalMessage{
		{ID: 201, Author: "alice", Content: ""},
		{ID: 202, Author: "alice", Content: "real"},
	}
	imported, err := Run(context.Background(), st, 1, &sliceIterator{msgs: msgs})
	if err != nil {
		t.Fatal(err)
	}
	if imported != 1 {
		t.Errorf("expected 1 imported, got %d", imported)
	}
}

func TestRun_EmptyHistory(t *testing.T) {
	st := testStore(t)

	imported, err := Run(context.Background(), st, 1, &sliceIterator{})
	if err != nil {
		t.Fatal(err)
	}
	if imported != 0 {
		t.Errorf("expected 0 imported, got %d", imported)
	}
	_, found, err := st.LastImportedID(1)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("expected no watermark written for empty import")
	}
}

func TestRun_Cancelled(t *testing.T) {
	st := testStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	imported, err := Run(ctx, st, 1, &sliceIterator{msgs: externalHistory()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if imported != 0 {
		t.Errorf("expected 0 imported, got %d", imported)
	}
}
