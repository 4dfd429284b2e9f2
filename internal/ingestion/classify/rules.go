package classify

import (
	"embed"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/knowledge-registry/internal/platform/logger"
)

const rulesEnv = "INGEST_RULES_YAML"

//go:embed rules.yaml
var rulesFS embed.FS

// fallback rules used when YAML is missing or invalid
var fallbackPrefixes = []string{
	"add this to your knowledge",
	"add to your knowledge",
	"add to knowledge",
	"remember this",
}

var fallbackKeywords = []string{
	"knowledge",
	"remember",
	"ingest",
}

var fallbackContentTypes = map[string]string{
	".md":  "text/markdown",
	".txt": "text/plain",
	".pdf": "application/pdf",
}

type yamlRules struct {
	Prefixes     []string          `yaml:"prefixes"`
	Keywords     []string          `yaml:"keywords"`
	ContentTypes map[string]string `yaml:"content_types"`
}

type ruleSet struct {
	prefixes     []string
	keywords     []string
	contentTypes map[string]string
}

var rulesOnce sync.Once
var rulesCache *ruleSet
var rulesErr error

func currentRules(log *logger.Logger) *ruleSet {
	rulesOnce.Do(func() {
		rulesCache, rulesErr = loadRules()
	})
	if rulesErr != nil {
		if log != nil {
			log.Warn("classify: rules load failed; using fallback", "error", rulesErr)
		}
		return &ruleSet{
			prefixes:     fallbackPrefixes,
			keywords:     fallbackKeywords,
			contentTypes: fallbackContentTypes,
		}
	}
	return rulesCache
}

func loadRules() (*ruleSet, error) {
	data, err := readRulesFile()
	if err != nil {
		return nil, err
	}

	var raw yamlRules
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw.Prefixes) == 0 {
		return nil, errors.New("rules yaml defines no prefixes")
	}

	rs := &ruleSet{
		prefixes:     make([]string, 0, len(raw.Prefixes)),
		keywords:     make([]string, 0, len(raw.Keywords)),
		contentTypes: make(map[string]string, len(raw.ContentTypes)),
	}
	for _, p := range raw.Prefixes {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			rs.prefixes = append(rs.prefixes, p)
		}
	}
	for _, k := range raw.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			rs.keywords = append(rs.keywords, k)
		}
	}
	for ext, ct := range raw.ContentTypes {
		ext = strings.ToLower(strings.TrimSpace(ext))
		ct = strings.TrimSpace(ct)
		if ext == "" || ct == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		rs.contentTypes[ext] = ct
	}

	// longest prefix wins when several share a head
	sort.Slice(rs.prefixes, func(i, j int) bool {
		return len(rs.prefixes[i]) > len(rs.prefixes[j])
	})
	return rs, nil
}

func readRulesFile() ([]byte, error) {
	if override := strings.TrimSpace(os.Getenv(rulesEnv)); override != "" {
		return os.ReadFile(override)
	}
	return rulesFS.ReadFile("rules.yaml")
}
