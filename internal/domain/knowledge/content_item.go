package knowledge

import (
	"encoding/base64"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
)

const (
	EncodingUTF8   = "utf8"
	EncodingBase64 = "base64"
)

// ContentItem is one ingested piece of content. The (source_rid, cid) unique
// index is the dedup backstop: concurrent inserts of identical bytes under
// the same source collapse to a single row. Rows are immutable after insert.
type ContentItem struct {
	RID              string         `gorm:"column:rid;primaryKey" json:"rid"`
	SourceRID        string         `gorm:"column:source_rid;not null;index;uniqueIndex:idx_content_source_cid,priority:1" json:"source_rid"`
	CID              string         `gorm:"column:cid;not null;index;uniqueIndex:idx_content_source_cid,priority:2" json:"cid"`
	ContentType      string         `gorm:"column:content_type;not null" json:"content_type"`
	OriginalFilename string         `gorm:"column:original_filename" json:"original_filename,omitempty"`
	Title            string         `gorm:"column:title" json:"title,omitempty"`
	Content          string         `gorm:"column:content" json:"-"`
	ContentEncoding  string         `gorm:"column:content_encoding;not null" json:"content_encoding"`
	Metadata         datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
}

func (ContentItem) TableName() string { return "content_item" }

// SetContent stores raw bytes, base64-encoding anything that is not valid
// UTF-8 text.
func (c *ContentItem) SetContent(data []byte) {
	if utf8.Valid(data) {
		c.Content = string(data)
		c.ContentEncoding = EncodingUTF8
		return
	}
	c.Content = base64.StdEncoding.EncodeToString(data)
	c.ContentEncoding = EncodingBase64
}

// Bytes returns the stored content decoded back to its original bytes.
func (c *ContentItem) Bytes() ([]byte, error) {
	if c.ContentEncoding == EncodingBase64 {
		return base64.StdEncoding.DecodeString(c.Content)
	}
	return []byte(c.Content), nil
}
