// Package industry maintains the registry of industry analysis profiles:
// which indicators matter for a sector and at what priority. The computer
// profile ships built in; additional profiles load from YAML files.
package industry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
)

// Service is a thread-safe profile registry.
type Service struct {
	mu       sync.RWMutex
	profiles map[string]*models.IndustryProfile
	order    []string
	logger   arbor.ILogger
}

var _ interfaces.IndustryService = (*Service)(nil)

// NewService creates the registry seeded with the built-in profiles.
func NewService(logger arbor.ILogger) *Service {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	s := &Service{
		profiles: make(map[string]*models.IndustryProfile),
		logger:   logger,
	}
	s.put(ComputerProfile())
	return s
}

// GetProfile resolves an industry by code, falling back to display-name
// lookup so callers can pass either "computer" or "计算机".
func (s *Service) GetProfile(industry string) (*models.IndustryProfile, error) {
	key := strings.TrimSpace(industry)
	if key == "" {
		return nil, common.E(common.KindInvalidInput, "industry.get", "industry is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.profiles[key]; ok {
		return p, nil
	}
	for _, code := range s.order {
		if p := s.profiles[code]; p.Name == key {
			return p, nil
		}
	}
	return nil, common.E(common.KindNotFound, "industry.get",
		fmt.Sprintf("不支持的行业: %s，当前支持: %s", key, strings.Join(s.order, ", ")))
}

// ListProfiles returns all registered profiles in registration order.
func (s *Service) ListProfiles() []*models.IndustryProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]*models.IndustryProfile, 0, len(s.order))
	for _, code := range s.order {
		profiles = append(profiles, s.profiles[code])
	}
	return profiles
}

// SupportedIndustries returns the registered industry codes.
func (s *Service) SupportedIndustries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Register adds a profile or replaces the one sharing its code.
func (s *Service) Register(profile *models.IndustryProfile) error {
	if profile == nil || strings.TrimSpace(profile.Code) == "" {
		return common.E(common.KindInvalidInput, "industry.register", "profile code is required")
	}

	s.mu.Lock()
	s.put(profile)
	s.mu.Unlock()

	s.logger.Debug().
		Str("code", profile.Code).
		Str("name", profile.Name).
		Int("indicators", len(profile.Indicators)).
		Msg("Registered industry profile")
	return nil
}

// LoadDir registers every profile found in the directory's .yaml/.yml
// files. A missing directory is not an error; a malformed file is.
func (s *Service) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		s.logger.Debug().Str("dir", dir).Msg("No industry profile directory, using built-ins")
		return nil
	}
	if err != nil {
		return common.Wrap(common.KindInternal, "industry.load", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := s.loadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
		loaded++
	}

	if loaded > 0 {
		s.logger.Info().Str("dir", dir).Int("profiles", loaded).Msg("Loaded industry profiles")
	}
	return nil
}

func (s *Service) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return common.Wrap(common.KindInternal, "industry.load", err)
	}

	var profile models.IndustryProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return common.Wrapf(common.KindInvalidInput, "industry.load", err, "parse %s", filepath.Base(path))
	}
	if strings.TrimSpace(profile.Code) == "" {
		return common.E(common.KindInvalidInput, "industry.load",
			fmt.Sprintf("%s: profile code is required", filepath.Base(path)))
	}

	s.mu.Lock()
	s.put(&profile)
	s.mu.Unlock()
	return nil
}

// put inserts or replaces; callers hold the write lock (or own s solely).
func (s *Service) put(profile *models.IndustryProfile) {
	if _, exists := s.profiles[profile.Code]; !exists {
		s.order = append(s.order, profile.Code)
	}
	s.profiles[profile.Code] = profile
}
