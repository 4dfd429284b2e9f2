package services

import (
	"encoding/json"
	"fmt"
	"mime"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	repos "github.com/yungbote/knowledge-registry/internal/data/repos/knowledge"
	types "github.com/yungbote/knowledge-registry/internal/domain"
	"github.com/yungbote/knowledge-registry/internal/identifier"
	"github.com/yungbote/knowledge-registry/internal/platform/dbctx"
	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

type RegisterSourceInput struct {
	Type        string
	Name        string
	Description string
	Metadata    map[string]any
}

type TrackContentInput struct {
	SourceRID        string
	Content          []byte
	ContentType      string
	OriginalFilename string
	Title            string
	Metadata         map[string]any

	// Timestamp seeds the client document id; zero means time.Now().
	Timestamp time.Time
}

// RegistryService owns sources and content items. Registration and tracking
// are idempotent: resubmitting the same source or the same bytes converges on
// the existing row.
type RegistryService interface {
	RegisterSource(dbc dbctx.Context, in RegisterSourceInput) (*types.Source, error)
	GetSource(dbc dbctx.Context, rid string) (*types.Source, error)
	ListSources(dbc dbctx.Context) ([]*types.Source, error)

	// TrackContent returns the item plus whether this call created it. A lost
	// insert race is not an error; the winner's row comes back with false.
	TrackContent(dbc dbctx.Context, in TrackContentInput) (*types.ContentItem, bool, error)
	GetContent(dbc dbctx.Context, rid string) (*types.ContentItem, error)
	ListContent(dbc dbctx.Context, sourceRID string, limit int) ([]*types.ContentItem, error)
}

type registryService struct {
	db      *gorm.DB
	log     *logger.Logger
	sources repos.SourceRepo
	items   repos.ContentItemRepo
}

func NewRegistryService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sources repos.SourceRepo,
	items repos.ContentItemRepo,
) RegistryService {
	return &registryService{
		db:      db,
		log:     baseLog.With("service", "RegistryService"),
		sources: sources,
		items:   items,
	}
}

func (s *registryService) RegisterSource(dbc dbctx.Context, in RegisterSourceInput) (*types.Source, error) {
	const op = "RegistryService.RegisterSource"
	if s == nil || s.sources == nil {
		return nil, types.NewError(types.CodeInternal, op, "registry service not configured", nil)
	}

	typ := strings.ToLower(strings.TrimSpace(in.Type))
	name := strings.TrimSpace(in.Name)
	if typ == "" || name == "" {
		return nil, types.NewError(types.CodeValidation, op, "source type and name are required", nil)
	}

	meta, err := marshalMetadata(in.Metadata)
	if err != nil {
		return nil, types.NewError(types.CodeValidation, op, "metadata is not serializable", err)
	}

	src := &types.Source{
		SourceRID:   identifier.GenerateSourceRID(typ, name),
		Type:        typ,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Metadata:    meta,
	}

	out, created, err := s.sources.GetOrCreate(dbc, src)
	if err != nil {
		s.log.Error("RegisterSource failed", "source_rid", src.SourceRID, "error", err)
		return nil, fmt.Errorf("register source: %w", err)
	}
	if created {
		s.log.Info("RegisterSource created", "source_rid", out.SourceRID, "type", typ)
	}
	return out, nil
}

func (s *registryService) GetSource(dbc dbctx.Context, rid string) (*types.Source, error) {
	if s == nil || s.sources == nil {
		return nil, types.NewError(types.CodeInternal, "RegistryService.GetSource", "registry service not configured", nil)
	}
	return s.sources.GetByRID(dbc, strings.TrimSpace(rid))
}

func (s *registryService) ListSources(dbc dbctx.Context) ([]*types.Source, error) {
	if s == nil || s.sources == nil {
		return nil, types.NewError(types.CodeInternal, "RegistryService.ListSources", "registry service not configured", nil)
	}
	return s.sources.List(dbc)
}

func (s *registryService) TrackContent(dbc dbctx.Context, in TrackContentInput) (*types.ContentItem, bool, error) {
	const op = "RegistryService.TrackContent"
	if s == nil || s.sources == nil || s.items == nil {
		return nil, false, types.NewError(types.CodeInternal, op, "registry service not configured", nil)
	}

	sourceRID := strings.TrimSpace(in.SourceRID)
	if sourceRID == "" {
		return nil, false, types.NewError(types.CodeValidation, op, "source rid is required", nil)
	}
	if len(in.Content) == 0 {
		return nil, false, types.NewError(types.CodeValidation, op, "content is required", nil)
	}
	contentType, err := normalizeContentType(in.ContentType)
	if err != nil {
		return nil, false, types.NewError(types.CodeValidation, op, fmt.Sprintf("invalid content type %q", in.ContentType), err)
	}

	if _, err := s.sources.GetByRID(dbc, sourceRID); err != nil {
		if types.IsCode(err, types.CodeNotFound) {
			return nil, false, types.NewError(types.CodeNotFound, op, fmt.Sprintf("source %s is not registered", sourceRID), err)
		}
		return nil, false, fmt.Errorf("track content: %w", err)
	}

	cid := identifier.GenerateContentCID(in.Content)

	existing, err := s.items.GetBySourceCID(dbc, sourceRID, cid)
	if err != nil {
		return nil, false, fmt.Errorf("track content: %w", err)
	}
	if existing != nil {
		s.log.Info("TrackContent deduplicated", "source_rid", sourceRID, "cid", cid, "rid", existing.RID)
		return existing, false, nil
	}

	meta, err := marshalMetadata(in.Metadata)
	if err != nil {
		return nil, false, types.NewError(types.CodeValidation, op, "metadata is not serializable", err)
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	descriptor := strings.TrimSpace(in.OriginalFilename)
	if descriptor == "" {
		descriptor = strings.TrimSpace(in.Title)
	}
	if descriptor == "" {
		head := in.Content
		if len(head) > 64 {
			head = head[:64]
		}
		descriptor = string(head)
	}

	item := &types.ContentItem{
		RID:              identifier.GenerateClientDocumentID(sourceRID, descriptor, ts.UnixMilli()),
		SourceRID:        sourceRID,
		CID:              cid,
		ContentType:      contentType,
		OriginalFilename: strings.TrimSpace(in.OriginalFilename),
		Title:            strings.TrimSpace(in.Title),
		Metadata:         meta,
		CreatedAt:        time.Now(),
	}
	item.SetContent(in.Content)

	if err := s.items.Insert(dbc, item); err != nil {
		if types.IsDuplicate(err) {
			// Lost the insert race; the winner's row is authoritative.
			winner, lookupErr := s.items.GetBySourceCID(dbc, sourceRID, cid)
			if lookupErr == nil && winner != nil {
				s.log.Info("TrackContent lost insert race", "source_rid", sourceRID, "cid", cid, "rid", winner.RID)
				return winner, false, nil
			}
		}
		s.log.Error("TrackContent failed", "source_rid", sourceRID, "cid", cid, "error", err)
		return nil, false, fmt.Errorf("track content: %w", err)
	}

	s.log.Info("TrackContent created", "source_rid", sourceRID, "cid", cid, "rid", item.RID)
	return item, true, nil
}

func (s *registryService) GetContent(dbc dbctx.Context, rid string) (*types.ContentItem, error) {
	if s == nil || s.items == nil {
		return nil, types.NewError(types.CodeInternal, "RegistryService.GetContent", "registry service not configured", nil)
	}
	return s.items.GetByRID(dbc, strings.TrimSpace(rid))
}

func (s *registryService) ListContent(dbc dbctx.Context, sourceRID string, limit int) ([]*types.ContentItem, error) {
	if s == nil || s.items == nil {
		return nil, types.NewError(types.CodeInternal, "RegistryService.ListContent", "registry service not configured", nil)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.items.ListBySource(dbc, strings.TrimSpace(sourceRID), limit)
}

func marshalMetadata(m map[string]any) (datatypes.JSON, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func normalizeContentType(ct string) (string, error) {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return "", fmt.Errorf("content type is required")
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", err
	}
	if !strings.Contains(mediaType, "/") {
		return "", fmt.Errorf("content type %q has no subtype", ct)
	}
	return mediaType, nil
}
