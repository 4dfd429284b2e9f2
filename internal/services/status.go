package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	rediscache "github.com/yungbote/knowledge-registry/internal/clients/redis"
	repos "github.com/yungbote/knowledge-registry/internal/data/repos/knowledge"
	types "github.com/yungbote/knowledge-registry/internal/domain"
	"github.com/yungbote/knowledge-registry/internal/platform/dbctx"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

// StatusService drives the per (content, agent) state machine. Transitions
// are guarded UPDATEs keyed on the current state, so a row can only ever move
// forward; two processes racing the same transition resolve by RowsAffected.
type StatusService interface {
	// MarkPending creates the row if absent and returns it. An existing row
	// in any state is returned untouched.
	MarkPending(dbc dbctx.Context, contentRID, agentID string) (*types.ProcessingStatus, error)
	// MarkProcessing moves pending -> processing and stamps started_at.
	MarkProcessing(dbc dbctx.Context, contentRID, agentID string) error
	// MarkProcessed moves processing -> processed. Terminal.
	MarkProcessed(dbc dbctx.Context, contentRID, agentID string, fragmentCount int, processingTimeMs int64) error
	// MarkFailed moves pending|processing -> failed. Terminal.
	MarkFailed(dbc dbctx.Context, contentRID, agentID, errorMessage string) error
	// MarkSkipped moves pending -> skipped. Terminal.
	MarkSkipped(dbc dbctx.Context, contentRID, agentID, reason string) error
	// ResetForRetry is the administrative failed -> pending reopen.
	ResetForRetry(dbc dbctx.Context, contentRID, agentID string) error

	AgentStats(ctx context.Context, agentID string) (*types.AgentStats, error)
	StatusesForContent(dbc dbctx.Context, contentRID string) ([]*types.ProcessingStatus, error)
}

type statusService struct {
	db       *gorm.DB
	log      *logger.Logger
	statuses repos.ProcessingStatusRepo

	cache    rediscache.Cache
	cacheTTL time.Duration
}

// NewStatusService wires the tracker. cache may be nil; cacheTTL <= 0
// disables stats caching.
func NewStatusService(
	db *gorm.DB,
	baseLog *logger.Logger,
	statuses repos.ProcessingStatusRepo,
	cache rediscache.Cache,
	cacheTTL time.Duration,
) StatusService {
	return &statusService{
		db:       db,
		log:      baseLog.With("service", "StatusService"),
		statuses: statuses,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

func (s *statusService) MarkPending(dbc dbctx.Context, contentRID, agentID string) (*types.ProcessingStatus, error) {
	const op = "StatusService.MarkPending"
	if s == nil || s.statuses == nil {
		return nil, types.NewError(types.CodeInternal, op, "status service not configured", nil)
	}

	created, err := s.statuses.InsertPending(dbc, contentRID, agentID)
	if err != nil {
		return nil, fmt.Errorf("mark pending: %w", err)
	}
	if created {
		s.log.Info("MarkPending created", "content_rid", contentRID, "agent_id", agentID)
	}
	row, err := s.statuses.Get(dbc, contentRID, agentID)
	if err != nil {
		return nil, fmt.Errorf("mark pending: %w", err)
	}
	return row, nil
}

func (s *statusService) MarkProcessing(dbc dbctx.Context, contentRID, agentID string) error {
	const op = "StatusService.MarkProcessing"
	now := time.Now()
	return s.transition(dbc, op, contentRID, agentID,
		[]types.ProcessingState{types.StatePending},
		types.StateProcessing,
		map[string]interface{}{"started_at": now})
}

func (s *statusService) MarkProcessed(dbc dbctx.Context, contentRID, agentID string, fragmentCount int, processingTimeMs int64) error {
	const op = "StatusService.MarkProcessed"
	if fragmentCount < 0 {
		fragmentCount = 0
	}
	if processingTimeMs < 0 {
		processingTimeMs = 0
	}
	now := time.Now()
	return s.transition(dbc, op, contentRID, agentID,
		[]types.ProcessingState{types.StateProcessing},
		types.StateProcessed,
		map[string]interface{}{
			"completed_at":       now,
			"fragment_count":     fragmentCount,
			"processing_time_ms": processingTimeMs,
			"error_message":      "",
		})
}

func (s *statusService) MarkFailed(dbc dbctx.Context, contentRID, agentID, errorMessage string) error {
	const op = "StatusService.MarkFailed"
	now := time.Now()
	return s.transition(dbc, op, contentRID, agentID,
		[]types.ProcessingState{types.StatePending, types.StateProcessing},
		types.StateFailed,
		map[string]interface{}{
			"completed_at":  now,
			"error_message": truncateMessage(errorMessage, 2000),
		})
}

func (s *statusService) MarkSkipped(dbc dbctx.Context, contentRID, agentID, reason string) error {
	const op = "StatusService.MarkSkipped"
	now := time.Now()
	return s.transition(dbc, op, contentRID, agentID,
		[]types.ProcessingState{types.StatePending},
		types.StateSkipped,
		map[string]interface{}{
			"completed_at":  now,
			"error_message": truncateMessage(reason, 2000),
		})
}

func (s *statusService) ResetForRetry(dbc dbctx.Context, contentRID, agentID string) error {
	const op = "StatusService.ResetForRetry"
	err := s.transition(dbc, op, contentRID, agentID,
		[]types.ProcessingState{types.StateFailed},
		types.StatePending,
		map[string]interface{}{
			"started_at":         nil,
			"completed_at":       nil,
			"fragment_count":     nil,
			"processing_time_ms": nil,
			"error_message":      "",
		})
	if err != nil {
		return err
	}
	// Operators read stats right after a reset; drop the cached copy rather
	// than waiting out the TTL.
	if s.cache != nil && s.cacheTTL > 0 {
		if delErr := s.cache.Delete(dbc.Ctx, "stats:agent:"+agentID); delErr != nil {
			s.log.Warn("stats cache invalidation failed", "agent_id", agentID, "error", delErr)
		}
	}
	return nil
}

// transition applies the guarded update and, when no row matched, reads the
// row back to tell "wrong current state" apart from "no row at all".
func (s *statusService) transition(
	dbc dbctx.Context,
	op, contentRID, agentID string,
	allowed []types.ProcessingState,
	target types.ProcessingState,
	updates map[string]interface{},
) error {
	if s == nil || s.statuses == nil {
		return types.NewError(types.CodeInternal, op, "status service not configured", nil)
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["state"] = target

	changed, err := s.statuses.TransitionFrom(dbc, contentRID, agentID, allowed, updates)
	if err != nil {
		return fmt.Errorf("%s: %w", strings.ToLower(string(target)), err)
	}
	if changed {
		s.log.Info("Status transition applied",
			"content_rid", contentRID,
			"agent_id", agentID,
			"state", target,
		)
		return nil
	}

	current, err := s.statuses.Get(dbc, contentRID, agentID)
	if err != nil {
		if types.IsCode(err, types.CodeNotFound) {
			return types.NewError(types.CodeNotFound, op,
				fmt.Sprintf("no processing record for content %s and agent %s", contentRID, agentID), nil)
		}
		return fmt.Errorf("%s: %w", strings.ToLower(string(target)), err)
	}
	return types.NewError(types.CodeInvalidTransition, op,
		fmt.Sprintf("cannot move content %s for agent %s from %s to %s", contentRID, agentID, current.State, target), nil)
}

func (s *statusService) AgentStats(ctx context.Context, agentID string) (*types.AgentStats, error) {
	const op = "StatusService.AgentStats"
	if s == nil || s.statuses == nil {
		return nil, types.NewError(types.CodeInternal, op, "status service not configured", nil)
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, types.NewError(types.CodeValidation, op, "agent id is required", nil)
	}

	key := "stats:agent:" + agentID
	if s.cache != nil && s.cacheTTL > 0 {
		var cached types.AgentStats
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.Warn("stats cache read failed", "agent_id", agentID, "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	stats, err := s.statuses.AgentStats(dbctx.Context{Ctx: ctx}, agentID)
	if err != nil {
		return nil, fmt.Errorf("agent stats: %w", err)
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.SetJSON(ctx, key, stats, s.cacheTTL); err != nil {
			s.log.Warn("stats cache write failed", "agent_id", agentID, "error", err)
		}
	}
	return stats, nil
}

func (s *statusService) StatusesForContent(dbc dbctx.Context, contentRID string) ([]*types.ProcessingStatus, error) {
	if s == nil || s.statuses == nil {
		return nil, types.NewError(types.CodeInternal, "StatusService.StatusesForContent", "status service not configured", nil)
	}
	return s.statuses.ListByContent(dbc, strings.TrimSpace(contentRID))
}

func truncateMessage(msg string, limit int) string {
	msg = strings.TrimSpace(msg)
	if limit > 0 && len(msg) > limit {
		return msg[:limit]
	}
	return msg
}
