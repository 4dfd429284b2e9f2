package knowledge

import (
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/knowledge-registry/internal/domain"
	"github.com/yungbote/knowledge-registry/internal/platform/dbctx"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

type ProcessingStatusRepo interface {
	// InsertPending creates the (content, agent) row in pending state and
	// reports whether a new row was created. An existing row in any state is
	// left untouched.
	InsertPending(dbc dbctx.Context, contentRID, agentID string) (bool, error)
	Get(dbc dbctx.Context, contentRID, agentID string) (*types.ProcessingStatus, error)
	ListByContent(dbc dbctx.Context, contentRID string) ([]*types.ProcessingStatus, error)
	// TransitionFrom applies updates only when the current state is one of
	// allowed, reporting whether a row changed. Lost races and illegal jumps
	// both come back as false with no error; the caller decides what that
	// means.
	TransitionFrom(dbc dbctx.Context, contentRID, agentID string, allowed []types.ProcessingState, updates map[string]interface{}) (bool, error)
	AgentStats(dbc dbctx.Context, agentID string) (*types.AgentStats, error)
	ListStaleProcessing(dbc dbctx.Context, olderThan time.Time, limit int) ([]*types.ProcessingStatus, error)
}

type processingStatusRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProcessingStatusRepo(db *gorm.DB, baseLog *logger.Logger) ProcessingStatusRepo {
	return &processingStatusRepo{
		db:  db,
		log: baseLog.With("repo", "ProcessingStatusRepo"),
	}
}

func (r *processingStatusRepo) InsertPending(dbc dbctx.Context, contentRID, agentID string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if strings.TrimSpace(contentRID) == "" || strings.TrimSpace(agentID) == "" {
		return false, types.NewError(types.CodeValidation, "ProcessingStatusRepo.InsertPending", "content rid and agent id are required", nil)
	}
	now := time.Now()
	row := &types.ProcessingStatus{
		ContentRID: contentRID,
		AgentID:    agentID,
		State:      types.StatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return false, types.MapStorageError("ProcessingStatusRepo.InsertPending", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *processingStatusRepo) Get(dbc dbctx.Context, contentRID, agentID string) (*types.ProcessingStatus, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if strings.TrimSpace(contentRID) == "" || strings.TrimSpace(agentID) == "" {
		return nil, types.NewError(types.CodeValidation, "ProcessingStatusRepo.Get", "content rid and agent id are required", nil)
	}
	var out types.ProcessingStatus
	if err := transaction.WithContext(dbc.Ctx).
		Where("content_rid = ? AND agent_id = ?", contentRID, agentID).
		First(&out).Error; err != nil {
		return nil, types.MapStorageError("ProcessingStatusRepo.Get", err)
	}
	return &out, nil
}

func (r *processingStatusRepo) ListByContent(dbc dbctx.Context, contentRID string) ([]*types.ProcessingStatus, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if strings.TrimSpace(contentRID) == "" {
		return nil, types.NewError(types.CodeValidation, "ProcessingStatusRepo.ListByContent", "content rid is required", nil)
	}
	var out []*types.ProcessingStatus
	if err := transaction.WithContext(dbc.Ctx).
		Where("content_rid = ?", contentRID).
		Order("agent_id ASC").
		Find(&out).Error; err != nil {
		return nil, types.MapStorageError("ProcessingStatusRepo.ListByContent", err)
	}
	return out, nil
}

func (r *processingStatusRepo) TransitionFrom(dbc dbctx.Context, contentRID, agentID string, allowed []types.ProcessingState, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if strings.TrimSpace(contentRID) == "" || strings.TrimSpace(agentID) == "" {
		return false, types.NewError(types.CodeValidation, "ProcessingStatusRepo.TransitionFrom", "content rid and agent id are required", nil)
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	q := transaction.WithContext(dbc.Ctx).
		Model(&types.ProcessingStatus{}).
		Where("content_rid = ? AND agent_id = ?", contentRID, agentID)
	if len(allowed) == 1 {
		q = q.Where("state = ?", allowed[0])
	} else if len(allowed) > 1 {
		q = q.Where("state IN ?", allowed)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, types.MapStorageError("ProcessingStatusRepo.TransitionFrom", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *processingStatusRepo) AgentStats(dbc dbctx.Context, agentID string) (*types.AgentStats, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if strings.TrimSpace(agentID) == "" {
		return nil, types.NewError(types.CodeValidation, "ProcessingStatusRepo.AgentStats", "agent id is required", nil)
	}

	var row struct {
		Total               int64
		Pending             int64
		Processing          int64
		Processed           int64
		Failed              int64
		Skipped             int64
		AvgProcessingTimeMs float64
	}
	err := transaction.WithContext(dbc.Ctx).Raw(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN state = 'pending' THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN state = 'processing' THEN 1 ELSE 0 END), 0) AS processing,
			COALESCE(SUM(CASE WHEN state = 'processed' THEN 1 ELSE 0 END), 0) AS processed,
			COALESCE(SUM(CASE WHEN state = 'failed' THEN 1 ELSE 0 END), 0) AS failed,
			COALESCE(SUM(CASE WHEN state = 'skipped' THEN 1 ELSE 0 END), 0) AS skipped,
			COALESCE(AVG(CASE WHEN state = 'processed' THEN processing_time_ms END), 0) AS avg_processing_time_ms
		FROM processing_status
		WHERE agent_id = ?
	`, agentID).Scan(&row).Error
	if err != nil {
		return nil, types.MapStorageError("ProcessingStatusRepo.AgentStats", err)
	}

	return &types.AgentStats{
		AgentID:             agentID,
		Pending:             row.Pending,
		Processing:          row.Processing,
		Processed:           row.Processed,
		Failed:              row.Failed,
		Skipped:             row.Skipped,
		Total:               row.Total,
		AvgProcessingTimeMs: row.AvgProcessingTimeMs,
	}, nil
}

func (r *processingStatusRepo) ListStaleProcessing(dbc dbctx.Context, olderThan time.Time, limit int) ([]*types.ProcessingStatus, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("state = ? AND started_at IS NOT NULL AND started_at < ?", types.StateProcessing, olderThan).
		Order("started_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.ProcessingStatus
	if err := q.Find(&out).Error; err != nil {
		return nil, types.MapStorageError("ProcessingStatusRepo.ListStaleProcessing", err)
	}
	return out, nil
}
