package classify

import "testing"

func TestClassifyAbsolutePath(t *testing.T) {
	c := New(nil)
	req := c.Classify("please ingest /tmp/kb-test/note.md now")
	if req.Kind != KindFile {
		t.Fatalf("expected file kind, got %d", req.Kind)
	}
	if req.Path != "/tmp/kb-test/note.md" {
		t.Fatalf("expected /tmp/kb-test/note.md, got %s", req.Path)
	}
}

func TestClassifyBarePathMessage(t *testing.T) {
	c := New(nil)
	req := c.Classify("/tmp/missing.txt")
	if req.Kind != KindFile {
		t.Fatalf("expected file kind, got %d", req.Kind)
	}
	if req.Path != "/tmp/missing.txt" {
		t.Fatalf("expected /tmp/missing.txt, got %s", req.Path)
	}
}

func TestClassifyPathBeatsPrefix(t *testing.T) {
	c := New(nil)
	req := c.Classify("add to knowledge: /home/docs/paper.pdf")
	if req.Kind != KindFile {
		t.Fatalf("expected file kind when a path is present, got %d", req.Kind)
	}
	if req.Path != "/home/docs/paper.pdf" {
		t.Fatalf("expected /home/docs/paper.pdf, got %s", req.Path)
	}
}

func TestClassifyPrefixStripping(t *testing.T) {
	c := New(nil)
	req := c.Classify("Add this to your knowledge: The speed of light is 299792458 meters per second.")
	if req.Kind != KindText {
		t.Fatalf("expected text kind, got %d", req.Kind)
	}
	if req.Text != "The speed of light is 299792458 meters per second." {
		t.Fatalf("unexpected stripped text: %q", req.Text)
	}
}

func TestClassifyPrefixCaseInsensitive(t *testing.T) {
	c := New(nil)
	req := c.Classify("REMEMBER THIS: backups run at midnight")
	if req.Kind != KindText {
		t.Fatalf("expected text kind, got %d", req.Kind)
	}
	if req.Text != "backups run at midnight" {
		t.Fatalf("unexpected stripped text: %q", req.Text)
	}
}

func TestClassifyPrefixWithoutContent(t *testing.T) {
	c := New(nil)
	req := c.Classify("Add this to your knowledge:")
	if req.Kind != KindText {
		t.Fatalf("expected text kind for recognized prefix, got %d", req.Kind)
	}
	if req.Text != "" {
		t.Fatalf("expected empty remainder, got %q", req.Text)
	}
}

func TestClassifyUnrecognized(t *testing.T) {
	c := New(nil)
	for _, msg := range []string{"", "   ", "what is the weather tomorrow?"} {
		req := c.Classify(msg)
		if req.Kind != KindUnrecognized {
			t.Fatalf("expected unrecognized for %q, got %d", msg, req.Kind)
		}
	}
}

func TestHasIngestCue(t *testing.T) {
	c := New(nil)
	cases := []struct {
		msg  string
		want bool
	}{
		{"/tmp/notes.txt", true},
		{"remember this: x", true},
		{"can you add that to your knowledge base?", true},
		{"hello there", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := c.HasIngestCue(tc.msg); got != tc.want {
			t.Fatalf("HasIngestCue(%q): expected %v, got %v", tc.msg, tc.want, got)
		}
	}
}

func TestContentTypeForPath(t *testing.T) {
	c := New(nil)
	if ct := c.ContentTypeForPath("/tmp/a.md"); ct != "text/markdown" {
		t.Fatalf("expected text/markdown for .md, got %s", ct)
	}
	if ct := c.ContentTypeForPath("/tmp/a.pdf"); ct != "application/pdf" {
		t.Fatalf("expected application/pdf for .pdf, got %s", ct)
	}
	if ct := c.ContentTypeForPath("/tmp/archive.zzz9"); ct != "application/octet-stream" {
		t.Fatalf("expected octet-stream fallback, got %s", ct)
	}
	if ct := c.ContentTypeForPath("/tmp/README"); ct != "application/octet-stream" {
		t.Fatalf("expected octet-stream for extensionless path, got %s", ct)
	}
}
