package services

import (
	"context"
	"testing"
	"time"

	repos "github.com/yungbote/knowledge-registry/internal/data/repos/knowledge"
	"github.com/yungbote/knowledge-registry/internal/data/repos/testutil"
	types "github.com/yungbote/knowledge-registry/internal/domain"
	"github.com/yungbote/knowledge-registry/internal/platform/dbctx"
)

func TestReconcilerReopensStaleProcessing(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	statuses := repos.NewProcessingStatusRepo(tx, log)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	src := testutil.SeedSource(t, tx, "chat", "agent-messages")
	mk := func(rid string, state types.ProcessingState, started time.Time) {
		testutil.SeedContentItem(t, tx, src.SourceRID, rid, []byte(rid))
		testutil.SeedStatus(t, tx, rid, "agent-1", state, started)
	}

	stale := time.Now().Add(-2 * time.Hour)
	fresh := time.Now().Add(-time.Minute)
	mk("doc-stale", types.StateProcessing, stale)
	mk("doc-fresh", types.StateProcessing, fresh)
	mk("doc-failed", types.StateFailed, stale)

	rec := NewReconciler(tx, log, statuses)
	reopened, err := rec.RunOnce(dbc)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if reopened != 1 {
		t.Fatalf("expected 1 reopened row, got %d", reopened)
	}

	row, err := statuses.Get(dbc, "doc-stale", "agent-1")
	if err != nil {
		t.Fatalf("Get doc-stale: %v", err)
	}
	if row.State != types.StatePending {
		t.Fatalf("expected pending, got %s", row.State)
	}
	if row.StartedAt != nil {
		t.Fatalf("expected started_at cleared, got %v", row.StartedAt)
	}

	// Recently started and failed rows are untouched.
	row, err = statuses.Get(dbc, "doc-fresh", "agent-1")
	if err != nil {
		t.Fatalf("Get doc-fresh: %v", err)
	}
	if row.State != types.StateProcessing {
		t.Fatalf("expected doc-fresh still processing, got %s", row.State)
	}
	row, err = statuses.Get(dbc, "doc-failed", "agent-1")
	if err != nil {
		t.Fatalf("Get doc-failed: %v", err)
	}
	if row.State != types.StateFailed {
		t.Fatalf("expected doc-failed untouched, got %s", row.State)
	}

	// A second pass finds nothing left to reopen.
	reopened, err = rec.RunOnce(dbc)
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if reopened != 0 {
		t.Fatalf("expected idempotent second pass, got %d", reopened)
	}
}
