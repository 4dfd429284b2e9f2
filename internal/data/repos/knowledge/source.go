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

type SourceRepo interface {
	// GetOrCreate inserts the source if absent and reports whether a new row
	// was created. Concurrent registrations of the same source all resolve to
	// the single surviving row.
	GetOrCreate(dbc dbctx.Context, src *types.Source) (*types.Source, bool, error)
	GetByRID(dbc dbctx.Context, rid string) (*types.Source, error)
	List(dbc dbctx.Context) ([]*types.Source, error)
}

type sourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSourceRepo(db *gorm.DB, baseLog *logger.Logger) SourceRepo {
	return &sourceRepo{
		db:  db,
		log: baseLog.With("repo", "SourceRepo"),
	}
}

func (r *sourceRepo) GetOrCreate(dbc dbctx.Context, src *types.Source) (*types.Source, bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if src == nil || strings.TrimSpace(src.SourceRID) == "" {
		return nil, false, types.NewError(types.CodeValidation, "SourceRepo.GetOrCreate", "source rid is required", nil)
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now()
	}

	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(src)
	if res.Error != nil {
		return nil, false, types.MapStorageError("SourceRepo.GetOrCreate", res.Error)
	}
	if res.RowsAffected > 0 {
		return src, true, nil
	}

	var existing types.Source
	err := transaction.WithContext(dbc.Ctx).
		Where("source_rid = ?", src.SourceRID).
		First(&existing).Error
	if err != nil {
		return nil, false, types.MapStorageError("SourceRepo.GetOrCreate", err)
	}
	return &existing, false, nil
}

func (r *sourceRepo) GetByRID(dbc dbctx.Context, rid string) (*types.Source, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if strings.TrimSpace(rid) == "" {
		return nil, types.NewError(types.CodeValidation, "SourceRepo.GetByRID", "source rid is required", nil)
	}
	var out types.Source
	if err := transaction.WithContext(dbc.Ctx).
		Where("source_rid = ?", rid).
		First(&out).Error; err != nil {
		return nil, types.MapStorageError("SourceRepo.GetByRID", err)
	}
	return &out, nil
}

func (r *sourceRepo) List(dbc dbctx.Context) ([]*types.Source, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Source
	if err := transaction.WithContext(dbc.Ctx).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, types.MapStorageError("SourceRepo.List", err)
	}
	return out, nil
}
