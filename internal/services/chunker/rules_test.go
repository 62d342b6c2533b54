package chunker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	if len(rules) != 8 {
		t.Fatalf("got %d rules, want 8", len(rules))
	}
	if rules[0].Type != "management_discussion" {
		t.Errorf("first rule = %s, want management_discussion", rules[0].Type)
	}
	if rules[6].Type != "summary" || rules[7].Type != "notes" {
		t.Errorf("tail rules = %s, %s, want summary, notes", rules[6].Type, rules[7].Type)
	}
	for _, rule := range rules {
		if len(rule.Keywords) == 0 {
			t.Errorf("rule %s has no keywords", rule.Type)
		}
	}
}

func TestLoadRules_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "rules:\n  - type: risk\n    keywords: [\"黑天鹅\"]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	svc, err := NewService(common.ChunkingConfig{MaxChars: 600, MinChars: 200, RulesFile: path}, arbor.NewLogger())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if got := svc.ClassifyChunk("出现黑天鹅事件", nil); got != "risk" {
		t.Errorf("custom keyword classified as %s, want risk", got)
	}
	// The file replaces the built-in set entirely.
	if got := svc.ClassifyChunk("重要提示", nil); got != "other" {
		t.Errorf("built-in keyword classified as %s, want other", got)
	}
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if kind := common.KindOf(err); kind != common.KindNotFound {
		t.Errorf("error kind = %s, want %s", kind, common.KindNotFound)
	}
}

func TestLoadRules_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "rules: ["},
		{"empty rule list", "rules: []"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rules.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write rules file: %v", err)
			}
			_, err := LoadRules(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if kind := common.KindOf(err); kind != common.KindInvalidInput {
				t.Errorf("error kind = %s, want %s", kind, common.KindInvalidInput)
			}
		})
	}
}
