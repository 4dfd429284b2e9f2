package classify

import (
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

type Kind int

const (
	KindUnrecognized Kind = iota
	KindFile
	KindText
)

// Request is the classified form of one inbound message.
type Request struct {
	Kind Kind
	// Path holds the first absolute path token for KindFile.
	Path string
	// Text holds the prefix-stripped remainder for KindText. Empty when the
	// message carried an ingestion prefix and nothing else.
	Text string
}

// Classifier decides how inbound messages should be ingested. Methods are
// pure string work; whether a path actually exists on disk is the
// coordinator's concern, which keeps classification independently testable.
type Classifier struct {
	rules *ruleSet
}

func New(log *logger.Logger) *Classifier {
	return &Classifier{rules: currentRules(log)}
}

var pathToken = regexp.MustCompile(`(?:^|\s)(/[^\s"']+)`)
var extShape = regexp.MustCompile(`^\.[A-Za-z0-9]{1,8}$`)

// Classify runs the two-stage decision: absolute file path first, ingestion
// prefix second, otherwise unrecognized.
func (c *Classifier) Classify(msg string) Request {
	trimmed := strings.TrimSpace(msg)
	if trimmed == "" {
		return Request{Kind: KindUnrecognized}
	}
	if path := c.findPath(trimmed); path != "" {
		return Request{Kind: KindFile, Path: path}
	}
	if rest, ok := c.stripPrefix(trimmed); ok {
		return Request{Kind: KindText, Text: rest}
	}
	return Request{Kind: KindUnrecognized}
}

// HasIngestCue reports whether the message looks like an ingestion request at
// all: an absolute path, a known prefix, or an ingestion keyword.
func (c *Classifier) HasIngestCue(msg string) bool {
	trimmed := strings.TrimSpace(msg)
	if trimmed == "" {
		return false
	}
	if c.findPath(trimmed) != "" {
		return true
	}
	if _, ok := c.stripPrefix(trimmed); ok {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, k := range c.rules.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// ContentTypeForPath maps a filename extension to a MIME type, preferring the
// rules table over the platform registry.
func (c *Classifier) ContentTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "application/octet-stream"
	}
	if ct, ok := c.rules.contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		if i := strings.IndexByte(ct, ';'); i > 0 {
			ct = ct[:i]
		}
		return strings.TrimSpace(ct)
	}
	return "application/octet-stream"
}

func (c *Classifier) findPath(msg string) string {
	for _, m := range pathToken.FindAllStringSubmatch(msg, -1) {
		token := strings.TrimRight(m[1], `.,;:!?)"'`)
		if extShape.MatchString(filepath.Ext(token)) {
			return token
		}
	}
	return ""
}

func (c *Classifier) stripPrefix(msg string) (string, bool) {
	lower := strings.ToLower(msg)
	for _, p := range c.rules.prefixes {
		if strings.HasPrefix(lower, p) {
			rest := strings.TrimSpace(msg[len(p):])
			rest = strings.TrimLeft(rest, ":,")
			return strings.TrimSpace(rest), true
		}
	}
	return msg, false
}
