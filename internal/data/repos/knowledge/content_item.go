package knowledge

import (
	"strings"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/knowledge-registry/internal/domain"
	"github.com/yungbote/knowledge-registry/internal/platform/dbctx"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

type ContentItemRepo interface {
	// Insert creates the row as-is. A unique violation on (source_rid, cid)
	// surfaces as CodeConflict so the caller can re-read the winning row.
	Insert(dbc dbctx.Context, item *types.ContentItem) error
	GetByRID(dbc dbctx.Context, rid string) (*types.ContentItem, error)
	// GetBySourceCID returns (nil, nil) when no row matches; absence is the
	// normal case on first ingestion.
	GetBySourceCID(dbc dbctx.Context, sourceRID, cid string) (*types.ContentItem, error)
	ListBySource(dbc dbctx.Context, sourceRID string, limit int) ([]*types.ContentItem, error)
	// ListPage walks all items in rid order for offline scans.
	ListPage(dbc dbctx.Context, afterRID string, limit int) ([]*types.ContentItem, error)
	ListMissingCID(dbc dbctx.Context, limit int) ([]*types.ContentItem, error)
	// FindProcessedDuplicate locates another item carrying the same bytes that
	// the agent has already processed, for cross-source dedup skips.
	FindProcessedDuplicate(dbc dbctx.Context, cid, agentID, excludeRID string) (*types.ContentItem, error)
	UpdateCID(dbc dbctx.Context, rid, cid string) (bool, error)
}

type contentItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentItemRepo(db *gorm.DB, baseLog *logger.Logger) ContentItemRepo {
	return &contentItemRepo{
		db:  db,
		log: baseLog.With("repo", "ContentItemRepo"),
	}
}

func (r *contentItemRepo) Insert(dbc dbctx.Context, item *types.ContentItem) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if item == nil || strings.TrimSpace(item.RID) == "" {
		return types.NewError(types.CodeValidation, "ContentItemRepo.Insert", "content rid is required", nil)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if err := transaction.WithContext(dbc.Ctx).Create(item).Error; err != nil {
		return types.MapStorageError("ContentItemRepo.Insert", err)
	}
	return nil
}

func (r *contentItemRepo) GetByRID(dbc dbctx.Context, rid string) (*types.ContentItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if strings.TrimSpace(rid) == "" {
		return nil, types.NewError(types.CodeValidation, "ContentItemRepo.GetByRID", "content rid is required", nil)
	}
	var out types.ContentItem
	if err := transaction.WithContext(dbc.Ctx).
		Where("rid = ?", rid).
		First(&out).Error; err != nil {
		return nil, types.MapStorageError("ContentItemRepo.GetByRID", err)
	}
	return &out, nil
}

func (r *contentItemRepo) GetBySourceCID(dbc dbctx.Context, sourceRID, cid string) (*types.ContentItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if sourceRID == "" || cid == "" {
		return nil, nil
	}
	var out types.ContentItem
	err := transaction.WithContext(dbc.Ctx).
		Where("source_rid = ? AND cid = ?", sourceRID, cid).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, types.MapStorageError("ContentItemRepo.GetBySourceCID", err)
	}
	if out.RID == "" {
		return nil, nil
	}
	return &out, nil
}

func (r *contentItemRepo) ListBySource(dbc dbctx.Context, sourceRID string, limit int) ([]*types.ContentItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Order("created_at DESC")
	if sourceRID != "" {
		q = q.Where("source_rid = ?", sourceRID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.ContentItem
	if err := q.Find(&out).Error; err != nil {
		return nil, types.MapStorageError("ContentItemRepo.ListBySource", err)
	}
	return out, nil
}

func (r *contentItemRepo) ListPage(dbc dbctx.Context, afterRID string, limit int) ([]*types.ContentItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 200
	}
	q := transaction.WithContext(dbc.Ctx).Order("rid ASC").Limit(limit)
	if afterRID != "" {
		q = q.Where("rid > ?", afterRID)
	}
	var out []*types.ContentItem
	if err := q.Find(&out).Error; err != nil {
		return nil, types.MapStorageError("ContentItemRepo.ListPage", err)
	}
	return out, nil
}

func (r *contentItemRepo) ListMissingCID(dbc dbctx.Context, limit int) ([]*types.ContentItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("cid = '' OR cid IS NULL").
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.ContentItem
	if err := q.Find(&out).Error; err != nil {
		return nil, types.MapStorageError("ContentItemRepo.ListMissingCID", err)
	}
	return out, nil
}

func (r *contentItemRepo) FindProcessedDuplicate(dbc dbctx.Context, cid, agentID, excludeRID string) (*types.ContentItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if cid == "" || agentID == "" {
		return nil, nil
	}
	var out []*types.ContentItem
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.ContentItem{}).
		Joins("JOIN processing_status ps ON ps.content_rid = content_item.rid").
		Where("content_item.cid = ? AND content_item.rid <> ? AND ps.agent_id = ? AND ps.state = ?",
			cid, excludeRID, agentID, types.StateProcessed).
		Order("content_item.created_at ASC").
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, types.MapStorageError("ContentItemRepo.FindProcessedDuplicate", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *contentItemRepo) UpdateCID(dbc dbctx.Context, rid, cid string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if strings.TrimSpace(rid) == "" || strings.TrimSpace(cid) == "" {
		return false, types.NewError(types.CodeValidation, "ContentItemRepo.UpdateCID", "rid and cid are required", nil)
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.ContentItem{}).
		Where("rid = ?", rid).
		Update("cid", cid)
	if res.Error != nil {
		return false, types.MapStorageError("ContentItemRepo.UpdateCID", res.Error)
	}
	return res.RowsAffected > 0, nil
}
