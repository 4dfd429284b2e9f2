package knowledge

import (
	"time"

	"gorm.io/datatypes"
)

// Source is a registered origin of content (notion export, filesystem drop,
// chat session, web capture). Rows are insert-only; re-registration of the
// same (type, name) resolves to the existing row.
type Source struct {
	SourceRID   string         `gorm:"column:source_rid;primaryKey" json:"source_rid"`
	Type        string         `gorm:"column:type;not null;uniqueIndex:idx_source_type_name" json:"type"`
	Name        string         `gorm:"column:name;not null;uniqueIndex:idx_source_type_name" json:"name"`
	Description string         `gorm:"column:description" json:"description,omitempty"`
	Metadata    datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Source) TableName() string { return "source" }
