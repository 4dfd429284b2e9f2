package services

import (
	"context"
	"testing"

	repos "github.com/yungbote/knowledge-registry/internal/data/repos/knowledge"
	"github.com/yungbote/knowledge-registry/internal/data/repos/testutil"
	types "github.com/yungbote/knowledge-registry/internal/domain"
	"github.com/yungbote/knowledge-registry/internal/platform/dbctx"
)

type statusHarness struct {
	status   StatusService
	registry RegistryService
	dbc      dbctx.Context
}

func newStatusHarness(t *testing.T) *statusHarness {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)

	return &statusHarness{
		status:   NewStatusService(tx, log, repos.NewProcessingStatusRepo(tx, log), nil, 0),
		registry: NewRegistryService(tx, log, repos.NewSourceRepo(tx, log), repos.NewContentItemRepo(tx, log)),
		dbc:      dbctx.Context{Ctx: context.Background(), Tx: tx},
	}
}

func (h *statusHarness) seedItem(t *testing.T, body string) *types.ContentItem {
	t.Helper()
	src, err := h.registry.RegisterSource(h.dbc, RegisterSourceInput{Type: "file", Name: "inbox"})
	if err != nil {
		t.Fatalf("RegisterSource: %v", err)
	}
	item, _, err := h.registry.TrackContent(h.dbc, TrackContentInput{
		SourceRID:   src.SourceRID,
		Content:     []byte(body),
		ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("TrackContent: %v", err)
	}
	return item
}

func TestStatusHappyPath(t *testing.T) {
	h := newStatusHarness(t)
	item := h.seedItem(t, "happy path content")

	row, err := h.status.MarkPending(h.dbc, item.RID, "agent-1")
	if err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	if row.State != types.StatePending {
		t.Fatalf("expected pending, got %s", row.State)
	}

	// MarkPending again is a no-op, never a regression.
	row, err = h.status.MarkPending(h.dbc, item.RID, "agent-1")
	if err != nil {
		t.Fatalf("second MarkPending: %v", err)
	}
	if row.State != types.StatePending {
		t.Fatalf("expected pending after repeat, got %s", row.State)
	}

	if err := h.status.MarkProcessing(h.dbc, item.RID, "agent-1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := h.status.MarkProcessed(h.dbc, item.RID, "agent-1", 12, 900); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	statuses, err := h.status.StatusesForContent(h.dbc, item.RID)
	if err != nil {
		t.Fatalf("StatusesForContent: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("expected 1 status row, got %d", len(statuses))
	}
	got := statuses[0]
	if got.State != types.StateProcessed {
		t.Fatalf("expected processed, got %s", got.State)
	}
	if got.FragmentCount == nil || *got.FragmentCount != 12 {
		t.Fatalf("expected 12 fragments, got %v", got.FragmentCount)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatalf("expected started_at and completed_at to be stamped")
	}
}

func TestStatusInvalidTransitions(t *testing.T) {
	h := newStatusHarness(t)
	item := h.seedItem(t, "transition guard content")

	// No row yet: transitions report not_found, not invalid_transition.
	err := h.status.MarkProcessing(h.dbc, item.RID, "agent-1")
	if !types.IsCode(err, types.CodeNotFound) {
		t.Fatalf("expected not_found without a row, got %v", err)
	}

	if _, err := h.status.MarkPending(h.dbc, item.RID, "agent-1"); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}

	// processed requires processing first.
	err = h.status.MarkProcessed(h.dbc, item.RID, "agent-1", 1, 1)
	if !types.IsCode(err, types.CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition pending->processed, got %v", err)
	}

	if err := h.status.MarkProcessing(h.dbc, item.RID, "agent-1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}

	// processing is not re-enterable.
	err = h.status.MarkProcessing(h.dbc, item.RID, "agent-1")
	if !types.IsCode(err, types.CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition processing->processing, got %v", err)
	}

	// skip is only legal from pending.
	err = h.status.MarkSkipped(h.dbc, item.RID, "agent-1", "dup")
	if !types.IsCode(err, types.CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition processing->skipped, got %v", err)
	}

	if err := h.status.MarkProcessed(h.dbc, item.RID, "agent-1", 3, 10); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	// Terminal states reject everything.
	err = h.status.MarkFailed(h.dbc, item.RID, "agent-1", "late failure")
	if !types.IsCode(err, types.CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition processed->failed, got %v", err)
	}

	statuses, err := h.status.StatusesForContent(h.dbc, item.RID)
	if err != nil {
		t.Fatalf("StatusesForContent: %v", err)
	}
	if statuses[0].State != types.StateProcessed {
		t.Fatalf("expected row to remain processed, got %s", statuses[0].State)
	}
}

func TestStatusMarkFailedFromPendingAndProcessing(t *testing.T) {
	h := newStatusHarness(t)

	fastFail := h.seedItem(t, "fast fail content")
	if _, err := h.status.MarkPending(h.dbc, fastFail.RID, "agent-1"); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	if err := h.status.MarkFailed(h.dbc, fastFail.RID, "agent-1", "service unavailable"); err != nil {
		t.Fatalf("MarkFailed from pending: %v", err)
	}

	slowFail := h.seedItem(t, "slow fail content")
	if _, err := h.status.MarkPending(h.dbc, slowFail.RID, "agent-1"); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	if err := h.status.MarkProcessing(h.dbc, slowFail.RID, "agent-1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := h.status.MarkFailed(h.dbc, slowFail.RID, "agent-1", "pipeline exploded"); err != nil {
		t.Fatalf("MarkFailed from processing: %v", err)
	}

	statuses, err := h.status.StatusesForContent(h.dbc, slowFail.RID)
	if err != nil {
		t.Fatalf("StatusesForContent: %v", err)
	}
	if statuses[0].State != types.StateFailed {
		t.Fatalf("expected failed, got %s", statuses[0].State)
	}
	if statuses[0].ErrorMessage != "pipeline exploded" {
		t.Fatalf("expected error message, got %q", statuses[0].ErrorMessage)
	}
}

func TestResetForRetryReopensFailedOnly(t *testing.T) {
	h := newStatusHarness(t)
	item := h.seedItem(t, "retry content")

	if _, err := h.status.MarkPending(h.dbc, item.RID, "agent-1"); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	if err := h.status.MarkFailed(h.dbc, item.RID, "agent-1", "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	if err := h.status.ResetForRetry(h.dbc, item.RID, "agent-1"); err != nil {
		t.Fatalf("ResetForRetry: %v", err)
	}

	statuses, err := h.status.StatusesForContent(h.dbc, item.RID)
	if err != nil {
		t.Fatalf("StatusesForContent: %v", err)
	}
	row := statuses[0]
	if row.State != types.StatePending {
		t.Fatalf("expected pending after reset, got %s", row.State)
	}
	if row.ErrorMessage != "" || row.CompletedAt != nil || row.StartedAt != nil {
		t.Fatalf("expected reset to clear outcome fields, got %+v", row)
	}

	// A pending row cannot be reset again.
	err = h.status.ResetForRetry(h.dbc, item.RID, "agent-1")
	if !types.IsCode(err, types.CodeInvalidTransition) {
		t.Fatalf("expected invalid_transition resetting a pending row, got %v", err)
	}

	// And the reopened row can run the full lifecycle again.
	if err := h.status.MarkProcessing(h.dbc, item.RID, "agent-1"); err != nil {
		t.Fatalf("MarkProcessing after reset: %v", err)
	}
	if err := h.status.MarkProcessed(h.dbc, item.RID, "agent-1", 4, 77); err != nil {
		t.Fatalf("MarkProcessed after reset: %v", err)
	}
}

func TestAgentStatsThroughService(t *testing.T) {
	h := newStatusHarness(t)

	processed := h.seedItem(t, "stats processed content")
	if _, err := h.status.MarkPending(h.dbc, processed.RID, "agent-9"); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	if err := h.status.MarkProcessing(h.dbc, processed.RID, "agent-9"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := h.status.MarkProcessed(h.dbc, processed.RID, "agent-9", 2, 400); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	pending := h.seedItem(t, "stats pending content")
	if _, err := h.status.MarkPending(h.dbc, pending.RID, "agent-9"); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}

	stats, err := h.status.AgentStats(context.Background(), "agent-9")
	if err != nil {
		t.Fatalf("AgentStats: %v", err)
	}
	if stats.Processed != 1 || stats.Pending != 1 || stats.Total != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.AvgProcessingTimeMs != 400 {
		t.Fatalf("expected avg 400, got %v", stats.AvgProcessingTimeMs)
	}
}
