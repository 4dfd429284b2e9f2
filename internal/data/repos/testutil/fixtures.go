package testutil

import (
	"testing"
	"time"

	types "github.com/yungbote/knowledge-registry/internal/domain"
	"gorm.io/gorm"
)

func SeedSource(tb testing.TB, tx *gorm.DB, sourceType, name string) *types.Source {
	tb.Helper()
	s := &types.Source{
		SourceRID: "source:" + sourceType + ":" + name,
		Type:      sourceType,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := tx.Create(s).Error; err != nil {
		tb.Fatalf("seed source: %v", err)
	}
	return s
}

func SeedContentItem(tb testing.TB, tx *gorm.DB, sourceRID, rid string, content []byte) *types.ContentItem {
	tb.Helper()
	item := &types.ContentItem{
		RID:         rid,
		SourceRID:   sourceRID,
		CID:         "sha256:" + rid,
		ContentType: "text/plain",
		CreatedAt:   time.Now(),
	}
	item.SetContent(content)
	if err := tx.Create(item).Error; err != nil {
		tb.Fatalf("seed content item %s: %v", rid, err)
	}
	return item
}

func SeedStatus(tb testing.TB, tx *gorm.DB, contentRID, agentID string, state types.ProcessingState, started time.Time) *types.ProcessingStatus {
	tb.Helper()
	row := &types.ProcessingStatus{
		ContentRID: contentRID,
		AgentID:    agentID,
		State:      state,
		StartedAt:  &started,
		CreatedAt:  started,
		UpdatedAt:  started,
	}
	if err := tx.Create(row).Error; err != nil {
		tb.Fatalf("seed status %s/%s: %v", contentRID, agentID, err)
	}
	return row
}

func PtrInt(v int) *int { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
