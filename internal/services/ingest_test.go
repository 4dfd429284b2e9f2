package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/knowledge-registry/internal/clients/processor"
	repos "github.com/yungbote/knowledge-registry/internal/data/repos/knowledge"
	"github.com/yungbote/knowledge-registry/internal/data/repos/testutil"
	types "github.com/yungbote/knowledge-registry/internal/domain"
	"github.com/yungbote/knowledge-registry/internal/ingestion/classify"
	"github.com/yungbote/knowledge-registry/internal/platform/dbctx"
	"github.com/yungbote/knowledge-registry/internal/ratelimit"
)

type stubProcessor struct {
	available bool
	fragments int
	err       error

	calls   int
	lastReq processor.ProcessRequest
}

func (s *stubProcessor) Process(ctx context.Context, req processor.ProcessRequest) (*processor.ProcessResult, error) {
	_ = ctx
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &processor.ProcessResult{FragmentCount: s.fragments, ProcessingTimeMs: 42}, nil
}

func (s *stubProcessor) Health(ctx context.Context) error {
	_ = ctx
	if s.available {
		return nil
	}
	return errors.New("processor down")
}

func (s *stubProcessor) Probe(ctx context.Context) bool {
	_ = ctx
	return s.available
}

func (s *stubProcessor) Available() bool { return s.available }

type ingestHarness struct {
	svc      IngestionService
	registry RegistryService
	status   StatusService
	items    repos.ContentItemRepo
	proc     *stubProcessor
	dbc      dbctx.Context
}

func newIngestHarness(t *testing.T, proc *stubProcessor) *ingestHarness {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)

	sources := repos.NewSourceRepo(tx, log)
	items := repos.NewContentItemRepo(tx, log)
	statuses := repos.NewProcessingStatusRepo(tx, log)

	registry := NewRegistryService(tx, log, sources, items)
	status := NewStatusService(tx, log, statuses, nil, 0)
	limiter := ratelimit.New(1000, 1_000_000)
	svc := NewIngestionService(tx, log, registry, status, items, classify.New(log), proc, limiter)

	return &ingestHarness{
		svc:      svc,
		registry: registry,
		status:   status,
		items:    items,
		proc:     proc,
		dbc:      dbctx.Context{Ctx: context.Background(), Tx: tx},
	}
}

// capture records callback deliveries so tests can assert on exactly-once.
type capture struct {
	messages []string
}

func (c *capture) cb(msg string) { c.messages = append(c.messages, msg) }

func (c *capture) one(t *testing.T) string {
	t.Helper()
	if len(c.messages) != 1 {
		t.Fatalf("expected exactly one callback, got %d: %v", len(c.messages), c.messages)
	}
	return c.messages[0]
}

func TestHandleMessageTextSuccess(t *testing.T) {
	proc := &stubProcessor{available: true, fragments: 3}
	h := newIngestHarness(t, proc)
	out := &capture{}

	err := h.svc.HandleMessage(h.dbc, "agent-1", "Add this to your knowledge: Go interfaces are satisfied implicitly.", out.cb)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	msg := out.one(t)
	if !strings.Contains(msg, "3 fragments") {
		t.Fatalf("expected success message with fragment count, got %q", msg)
	}
	if proc.calls != 1 {
		t.Fatalf("expected one processor call, got %d", proc.calls)
	}
	if proc.lastReq.Content != "Go interfaces are satisfied implicitly." {
		t.Fatalf("expected prefix-stripped text, got %q", proc.lastReq.Content)
	}
	if proc.lastReq.ContentType != "text/plain" || proc.lastReq.OriginalFilename != "user-knowledge.txt" {
		t.Fatalf("unexpected text request shape: %+v", proc.lastReq)
	}

	items, err := h.registry.ListContent(h.dbc, "", 10)
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(items))
	}
	statuses, err := h.status.StatusesForContent(h.dbc, items[0].RID)
	if err != nil {
		t.Fatalf("StatusesForContent: %v", err)
	}
	if len(statuses) != 1 || statuses[0].State != types.StateProcessed {
		t.Fatalf("expected processed status, got %+v", statuses)
	}
	if statuses[0].FragmentCount == nil || *statuses[0].FragmentCount != 3 {
		t.Fatalf("expected 3 fragments recorded, got %v", statuses[0].FragmentCount)
	}
}

func TestHandleMessageFileSuccess(t *testing.T) {
	proc := &stubProcessor{available: true, fragments: 7}
	h := newIngestHarness(t, proc)
	out := &capture{}

	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("# Heading\n\nSome markdown."), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	err := h.svc.HandleMessage(h.dbc, "agent-1", "please ingest "+path, out.cb)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !strings.Contains(out.one(t), "7 fragments") {
		t.Fatalf("expected success message, got %q", out.messages[0])
	}
	if proc.lastReq.ContentType != "text/markdown" {
		t.Fatalf("expected markdown content type, got %q", proc.lastReq.ContentType)
	}
	if proc.lastReq.OriginalFilename != "notes.md" {
		t.Fatalf("expected original filename, got %q", proc.lastReq.OriginalFilename)
	}
}

func TestHandleMessageMissingFileSkipsRegistry(t *testing.T) {
	proc := &stubProcessor{available: true}
	h := newIngestHarness(t, proc)
	out := &capture{}

	path := filepath.Join(t.TempDir(), "absent.md")
	err := h.svc.HandleMessage(h.dbc, "agent-1", "learn from "+path, out.cb)
	if !types.IsCode(err, types.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
	msg := out.one(t)
	if !strings.Contains(msg, "could not be found: "+path) {
		t.Fatalf("expected missing-file message, got %q", msg)
	}
	if proc.calls != 0 {
		t.Fatalf("expected no processor call, got %d", proc.calls)
	}

	items, err := h.registry.ListContent(h.dbc, "", 10)
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no registry writes, got %d items", len(items))
	}
}

func TestHandleMessageEmptyTextAfterPrefix(t *testing.T) {
	proc := &stubProcessor{available: true}
	h := newIngestHarness(t, proc)
	out := &capture{}

	err := h.svc.HandleMessage(h.dbc, "agent-1", "add this to your knowledge:   ", out.cb)
	if !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	out.one(t)
	if proc.calls != 0 {
		t.Fatalf("expected no processor call, got %d", proc.calls)
	}
	items, err := h.registry.ListContent(h.dbc, "", 10)
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no registry writes, got %d items", len(items))
	}
}

func TestHandleMessageUnrecognized(t *testing.T) {
	proc := &stubProcessor{available: true}
	h := newIngestHarness(t, proc)
	out := &capture{}

	err := h.svc.HandleMessage(h.dbc, "agent-1", "how is the weather today?", out.cb)
	if !types.IsCode(err, types.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	out.one(t)
}

func TestHandleMessageProcessorUnavailable(t *testing.T) {
	proc := &stubProcessor{available: false}
	h := newIngestHarness(t, proc)
	out := &capture{}

	err := h.svc.HandleMessage(h.dbc, "agent-1", "add this to your knowledge: something", out.cb)
	if !types.IsCode(err, types.CodeUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if !strings.Contains(out.one(t), "unavailable") {
		t.Fatalf("expected unavailability message, got %q", out.messages[0])
	}
	items, err := h.registry.ListContent(h.dbc, "", 10)
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no registry writes while unavailable, got %d", len(items))
	}
}

func TestHandleMessageProcessorFailure(t *testing.T) {
	proc := &stubProcessor{available: true, err: errors.New("fragment pipeline exploded")}
	h := newIngestHarness(t, proc)
	out := &capture{}

	err := h.svc.HandleMessage(h.dbc, "agent-1", "add this to your knowledge: doomed content", out.cb)
	if !types.IsCode(err, types.CodeProcessor) {
		t.Fatalf("expected processor error, got %v", err)
	}
	msg := out.one(t)
	if !strings.HasPrefix(msg, "I encountered an error while processing the knowledge: ") {
		t.Fatalf("unexpected failure message %q", msg)
	}
	if !strings.Contains(msg, "fragment pipeline exploded") {
		t.Fatalf("expected cause in message, got %q", msg)
	}

	items, err := h.registry.ListContent(h.dbc, "", 10)
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected tracked item, got %d", len(items))
	}
	statuses, err := h.status.StatusesForContent(h.dbc, items[0].RID)
	if err != nil {
		t.Fatalf("StatusesForContent: %v", err)
	}
	if statuses[0].State != types.StateFailed {
		t.Fatalf("expected failed, got %s", statuses[0].State)
	}
	if !strings.Contains(statuses[0].ErrorMessage, "fragment pipeline exploded") {
		t.Fatalf("expected recorded error, got %q", statuses[0].ErrorMessage)
	}
}

func TestHandleMessageDuplicateSubmission(t *testing.T) {
	proc := &stubProcessor{available: true, fragments: 2}
	h := newIngestHarness(t, proc)

	first := &capture{}
	if err := h.svc.HandleMessage(h.dbc, "agent-1", "remember this: ducks sleep with one eye open", first.cb); err != nil {
		t.Fatalf("first HandleMessage: %v", err)
	}
	first.one(t)

	second := &capture{}
	if err := h.svc.HandleMessage(h.dbc, "agent-1", "remember this: ducks sleep with one eye open", second.cb); err != nil {
		t.Fatalf("second HandleMessage: %v", err)
	}
	if !strings.Contains(second.one(t), "already in my library") {
		t.Fatalf("expected already-known message, got %q", second.messages[0])
	}
	if proc.calls != 1 {
		t.Fatalf("expected one processor call across both submissions, got %d", proc.calls)
	}

	items, err := h.registry.ListContent(h.dbc, "", 10)
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected single content row, got %d", len(items))
	}
}

func TestHandleMessageCrossSourceSkip(t *testing.T) {
	proc := &stubProcessor{available: true, fragments: 2}
	h := newIngestHarness(t, proc)

	body := "The same facts can arrive from two different places."

	first := &capture{}
	if err := h.svc.HandleMessage(h.dbc, "agent-1", "add this to your knowledge: "+body, first.cb); err != nil {
		t.Fatalf("text ingestion: %v", err)
	}
	first.one(t)

	path := filepath.Join(t.TempDir(), "facts.txt")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	second := &capture{}
	if err := h.svc.HandleMessage(h.dbc, "agent-1", "learn from "+path, second.cb); err != nil {
		t.Fatalf("file ingestion: %v", err)
	}
	if !strings.Contains(second.one(t), "skipped") {
		t.Fatalf("expected skip message, got %q", second.messages[0])
	}
	if proc.calls != 1 {
		t.Fatalf("expected one processor call total, got %d", proc.calls)
	}

	// Both sources keep their own row; the second one lands as skipped.
	items, err := h.registry.ListContent(h.dbc, "", 10)
	if err != nil {
		t.Fatalf("ListContent: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 content rows, got %d", len(items))
	}
	var fileItem *types.ContentItem
	for _, it := range items {
		if it.OriginalFilename == "facts.txt" {
			fileItem = it
		}
	}
	if fileItem == nil {
		t.Fatalf("expected file item to be tracked")
	}
	statuses, err := h.status.StatusesForContent(h.dbc, fileItem.RID)
	if err != nil {
		t.Fatalf("StatusesForContent: %v", err)
	}
	if statuses[0].State != types.StateSkipped {
		t.Fatalf("expected skipped, got %s", statuses[0].State)
	}
}

func TestValidateGatesOnAvailabilityAndCue(t *testing.T) {
	proc := &stubProcessor{available: true}
	h := newIngestHarness(t, proc)

	if !h.svc.Validate("add this to your knowledge: gophers") {
		t.Fatalf("expected valid for available processor and ingest cue")
	}
	if h.svc.Validate("what's for lunch?") {
		t.Fatalf("expected invalid without ingest cue")
	}

	proc.available = false
	if h.svc.Validate("add this to your knowledge: gophers") {
		t.Fatalf("expected invalid while processor unavailable")
	}
}
