package prompts

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
)

// Store holds the prompt templates, starting from the built-in defaults and
// optionally overridden by files in a configured directory. Rendering
// substitutes {var} placeholders; unknown variables render empty.
type Store struct {
	mu        sync.RWMutex
	templates map[string]string
	logger    arbor.ILogger
}

var placeholderRegex = regexp.MustCompile(`\{([a-z_]+)\}`)

// NewStore creates a prompt store. When cfg.Dir is set, files named
// <template>.txt or <template>.md override the built-in templates.
func NewStore(cfg common.PromptsConfig, logger arbor.ILogger) (*Store, error) {
	s := &Store{
		templates: make(map[string]string, len(defaultTemplates)),
		logger:    logger,
	}
	for name, text := range defaultTemplates {
		s.templates[name] = text
	}

	if cfg.Dir != "" {
		if err := s.loadOverrides(cfg.Dir); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) loadOverrides(dir string) error {
	const op = "prompts.load"

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug().Str("dir", dir).Msg("Prompt override directory not found, using defaults")
			return nil
		}
		return common.Wrap(common.KindInvalidInput, op, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".txt" && ext != ".md" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if _, known := defaultTemplates[name]; !known {
			s.logger.Warn().Str("file", entry.Name()).Msg("Ignoring unknown prompt template file")
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return common.Wrapf(common.KindInvalidInput, op, err, "reading template %s", entry.Name())
		}
		text := strings.TrimSpace(string(content))
		if text == "" {
			s.logger.Warn().Str("file", entry.Name()).Msg("Skipping empty prompt template file")
			continue
		}
		s.templates[name] = text
		loaded++
	}

	if loaded > 0 {
		s.logger.Info().Str("dir", dir).Int("count", loaded).Msg("Loaded prompt template overrides")
	}
	return nil
}

// Set replaces a template at runtime.
func (s *Store) Set(name, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[name] = text
}

// Template returns the raw template text, or "" for an unknown name.
func (s *Store) Template(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates[name]
}

// Render substitutes {var} placeholders in the named template. Variables
// absent from vars render as the empty string.
func (s *Store) Render(name string, vars map[string]string) string {
	template := s.Template(name)
	if template == "" {
		return ""
	}
	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		return vars[key]
	})
}

// System renders the analyst system prompt for an industry.
func (s *Store) System(industry string) string {
	return s.Render(TemplateSystem, map[string]string{"industry": industry})
}
