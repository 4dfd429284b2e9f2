package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/knowledge-registry/internal/clients/processor"
	repos "github.com/yungbote/knowledge-registry/internal/data/repos/knowledge"
	types "github.com/yungbote/knowledge-registry/internal/domain"
	"github.com/yungbote/knowledge-registry/internal/ingestion/classify"
	"github.com/yungbote/knowledge-registry/internal/platform/dbctx"
	"github.com/yungbote/knowledge-registry/internal/platform/envutil"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
	"github.com/yungbote/knowledge-registry/internal/ratelimit"
)

// Well-known sources for agent-driven ingestion. Files picked up from disk
// and knowledge pasted into chat land under separate sources so their dedup
// domains stay independent.
const (
	fileSourceType = "file"
	fileSourceName = "agent-files"
	textSourceType = "chat"
	textSourceName = "agent-messages"
)

const textFilename = "user-knowledge.txt"

// Callback delivers the one human-readable outcome line for an ingestion
// request. It is invoked exactly once per HandleMessage call.
type Callback func(message string)

// IngestionService is the end-to-end coordinator: classify the message,
// register the bytes, gate on the limiter, hand off to the processor, and
// record the outcome.
type IngestionService interface {
	// Validate reports whether a message is worth routing here at all: the
	// processing capability must be available and the text must carry an
	// ingestion cue or an absolute path candidate.
	Validate(text string) bool
	HandleMessage(dbc dbctx.Context, agentID, text string, cb Callback) error
}

type ingestionService struct {
	db         *gorm.DB
	log        *logger.Logger
	registry   RegistryService
	status     StatusService
	items      repos.ContentItemRepo
	classifier *classify.Classifier
	proc       processor.Client
	limiter    *ratelimit.Limiter

	maxFileBytes int64
}

func NewIngestionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	registry RegistryService,
	status StatusService,
	items repos.ContentItemRepo,
	classifier *classify.Classifier,
	proc processor.Client,
	limiter *ratelimit.Limiter,
) IngestionService {
	return &ingestionService{
		db:           db,
		log:          baseLog.With("service", "IngestionService"),
		registry:     registry,
		status:       status,
		items:        items,
		classifier:   classifier,
		proc:         proc,
		limiter:      limiter,
		maxFileBytes: int64(envutil.Int("INGEST_MAX_FILE_BYTES", 10<<20)),
	}
}

func (s *ingestionService) Validate(text string) bool {
	if s == nil || s.classifier == nil || s.proc == nil {
		return false
	}
	if !s.proc.Available() {
		return false
	}
	return s.classifier.HasIngestCue(text)
}

func (s *ingestionService) HandleMessage(dbc dbctx.Context, agentID, text string, cb Callback) error {
	const op = "IngestionService.HandleMessage"
	notify := func(msg string) {
		if cb != nil {
			cb(msg)
		}
	}

	if s == nil || s.registry == nil || s.status == nil || s.items == nil || s.classifier == nil || s.proc == nil || s.limiter == nil {
		notify("Something went wrong while handling the knowledge request.")
		return types.NewError(types.CodeInternal, op, "ingestion service not configured", nil)
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		notify("I could not determine which agent this knowledge belongs to.")
		return types.NewError(types.CodeValidation, op, "agent id is required", nil)
	}

	// Availability gates everything: no classification outcome justifies a
	// registry write when nothing downstream can consume it.
	if !s.proc.Available() {
		notify("I'm unable to process knowledge right now because the processing service is unavailable. Please try again later.")
		return types.NewError(types.CodeUnavailable, op, "processing service unavailable", nil)
	}

	req := s.classifier.Classify(text)
	switch req.Kind {
	case classify.KindFile:
		return s.ingestFile(dbc, op, agentID, req.Path, notify)
	case classify.KindText:
		return s.ingestText(dbc, op, agentID, req.Text, notify)
	default:
		notify(`I couldn't find a file path or knowledge statement in that message. Share an absolute file path or start with something like "add this to your knowledge".`)
		return types.NewError(types.CodeValidation, op, "unrecognized ingestion request", nil)
	}
}

func (s *ingestionService) ingestFile(dbc dbctx.Context, op, agentID, path string, notify Callback) error {
	info, err := os.Stat(path)
	if err != nil {
		notify(fmt.Sprintf("The file could not be found: %s", path))
		return types.NewError(types.CodeNotFound, op, fmt.Sprintf("file could not be found: %s", path), err)
	}
	if info.IsDir() {
		notify(fmt.Sprintf("The path %s is a directory; I can only ingest files.", path))
		return types.NewError(types.CodeValidation, op, fmt.Sprintf("path %s is a directory", path), nil)
	}
	if s.maxFileBytes > 0 && info.Size() > s.maxFileBytes {
		notify(fmt.Sprintf("The file %s is too large for me to ingest.", path))
		return types.NewError(types.CodeValidation, op, fmt.Sprintf("file %s exceeds %d bytes", path, s.maxFileBytes), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		notify(fmt.Sprintf("I could not read the file: %s", path))
		return types.NewError(types.CodeStorage, op, fmt.Sprintf("read file %s", path), err)
	}

	filename := filepath.Base(path)
	return s.ingest(dbc, op, agentID, ingestInput{
		sourceType:  fileSourceType,
		sourceName:  fileSourceName,
		content:     data,
		contentType: s.classifier.ContentTypeForPath(path),
		filename:    filename,
		title:       filename,
		metadata: map[string]any{
			"agent_id":     agentID,
			"ingested_via": "file",
			"path":         path,
		},
	}, notify)
}

func (s *ingestionService) ingestText(dbc dbctx.Context, op, agentID, text string, notify Callback) error {
	if strings.TrimSpace(text) == "" {
		notify("There was no knowledge text after the prefix. Tell me what you'd like me to remember.")
		return types.NewError(types.CodeValidation, op, "empty knowledge text", nil)
	}
	title := text
	if len(title) > 80 {
		title = title[:80]
	}
	return s.ingest(dbc, op, agentID, ingestInput{
		sourceType:  textSourceType,
		sourceName:  textSourceName,
		content:     []byte(text),
		contentType: "text/plain",
		filename:    textFilename,
		title:       title,
		metadata: map[string]any{
			"agent_id":     agentID,
			"ingested_via": "text",
		},
	}, notify)
}

type ingestInput struct {
	sourceType  string
	sourceName  string
	content     []byte
	contentType string
	filename    string
	title       string
	metadata    map[string]any
}

func (s *ingestionService) ingest(dbc dbctx.Context, op, agentID string, in ingestInput, notify Callback) error {
	src, err := s.registry.RegisterSource(dbc, RegisterSourceInput{
		Type: in.sourceType,
		Name: in.sourceName,
	})
	if err != nil {
		notify("Something went wrong while recording the knowledge. Please try again.")
		return fmt.Errorf("%s: %w", op, err)
	}

	item, isNew, err := s.registry.TrackContent(dbc, TrackContentInput{
		SourceRID:        src.SourceRID,
		Content:          in.content,
		ContentType:      in.contentType,
		OriginalFilename: in.filename,
		Title:            in.title,
		Metadata:         in.metadata,
	})
	if err != nil {
		if types.IsCode(err, types.CodeValidation) {
			notify(fmt.Sprintf("I couldn't ingest that content: %s", types.MessageOf(err)))
		} else {
			notify("Something went wrong while recording the knowledge. Please try again.")
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	row, err := s.status.MarkPending(dbc, item.RID, agentID)
	if err != nil {
		notify("Something went wrong while recording the knowledge. Please try again.")
		return fmt.Errorf("%s: %w", op, err)
	}

	switch row.State {
	case types.StateProcessing:
		notify("I'm still processing that knowledge; check back shortly.")
		return nil
	case types.StateProcessed, types.StateSkipped:
		notify("That knowledge is already in my library.")
		return nil
	case types.StateFailed:
		notify("That knowledge failed to process earlier. An operator needs to reset it before I can retry.")
		return nil
	}

	s.log.Info("Knowledge scheduled",
		"agent_id", agentID,
		"content_rid", item.RID,
		"cid", item.CID,
		"new_item", isNew,
	)
	return s.process(dbc, op, agentID, item, notify)
}

// process takes a pending row through skip, rate limit, handoff, and the
// terminal transition. The notify callback fires exactly once on every path.
func (s *ingestionService) process(dbc dbctx.Context, op, agentID string, item *types.ContentItem, notify Callback) error {
	dup, err := s.items.FindProcessedDuplicate(dbc, item.CID, agentID, item.RID)
	if err != nil {
		notify("Something went wrong while recording the knowledge. Please try again.")
		return fmt.Errorf("%s: %w", op, err)
	}
	if dup != nil {
		reason := fmt.Sprintf("identical content already processed as %s", dup.RID)
		if err := s.status.MarkSkipped(dbc, item.RID, agentID, reason); err != nil {
			s.log.Warn("MarkSkipped failed", "content_rid", item.RID, "agent_id", agentID, "error", err)
		}
		notify("I've already processed identical content, so I skipped re-learning it.")
		return nil
	}

	waited, err := s.limiter.Acquire(dbc.Ctx, estimateTokens(item.Content))
	if err != nil {
		notify("The ingestion was cancelled before processing started.")
		return types.Wrap(types.CodeRetryable, op, err)
	}
	if waited > 0 {
		s.log.Info("Rate limit wait", "content_rid", item.RID, "waited", waited.String())
	}

	if err := s.status.MarkProcessing(dbc, item.RID, agentID); err != nil {
		if types.IsCode(err, types.CodeInvalidTransition) {
			notify("I'm already processing that knowledge.")
			return nil
		}
		notify("Something went wrong while recording the knowledge. Please try again.")
		return fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	res, err := s.proc.Process(dbc.Ctx, processor.ProcessRequest{
		DocumentID:       item.RID,
		SourceRID:        item.SourceRID,
		CID:              item.CID,
		AgentID:          agentID,
		ContentType:      item.ContentType,
		Title:            item.Title,
		OriginalFilename: item.OriginalFilename,
		Content:          item.Content,
		ContentEncoding:  item.ContentEncoding,
	})
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if markErr := s.status.MarkFailed(dbc, item.RID, agentID, err.Error()); markErr != nil {
			s.log.Error("MarkFailed failed", "content_rid", item.RID, "agent_id", agentID, "error", markErr)
		}
		notify(fmt.Sprintf("I encountered an error while processing the knowledge: %s", types.MessageOf(err)))
		return types.Wrap(types.CodeProcessor, op, err)
	}

	if res.ProcessingTimeMs > 0 {
		elapsed = res.ProcessingTimeMs
	}
	if err := s.status.MarkProcessed(dbc, item.RID, agentID, res.FragmentCount, elapsed); err != nil {
		// The processor did its work; losing the bookkeeping write is a
		// server-side problem, not the user's.
		s.log.Error("MarkProcessed failed", "content_rid", item.RID, "agent_id", agentID, "error", err)
	}

	notify(fmt.Sprintf("I've added the knowledge to my library (%d fragments).", res.FragmentCount))
	return nil
}

func estimateTokens(content string) int {
	n := len(content) / 4
	if n < 1 {
		n = 1
	}
	return n
}
