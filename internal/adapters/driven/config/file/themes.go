package file

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

//go:embed themes.yaml
var defaultThemes []byte

// DefaultThemes returns the built-in theme rules.
func DefaultThemes() domain.ThemeRules {
	rules, err := parseThemes(defaultThemes)
	if err != nil {
		panic(fmt.Sprintf("embedded themes.yaml: %v", err))
	}
	return rules
}

// LoadThemes returns the built-in rules with the rules of the YAML file at
// path layered on top. An empty path returns the defaults.
func LoadThemes(path string) (domain.ThemeRules, error) {
	rules := DefaultThemes()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ThemeRules{}, fmt.Errorf("read themes file: %w", err)
	}
	overrides, err := parseThemes(data)
	if err != nil {
		return domain.ThemeRules{}, fmt.Errorf("%s: %w", path, err)
	}
	maps.Copy(rules.Directories, overrides.Directories)
	maps.Copy(rules.Labels, overrides.Labels)
	return rules, nil
}

func parseThemes(data []byte) (domain.ThemeRules, error) {
	var rules domain.ThemeRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return domain.ThemeRules{}, fmt.Errorf("parse themes: %w", err)
	}
	if rules.Directories == nil {
		rules.Directories = map[string]string{}
	}
	if rules.Labels == nil {
		rules.Labels = map[string]string{}
	}
	for prefix, theme := range rules.Directories {
		if prefix == "" || strings.TrimSpace(theme) == "" {
			return domain.ThemeRules{}, fmt.Errorf("parse themes: empty directory rule %q: %q", prefix, theme)
		}
	}
	for label, theme := range rules.Labels {
		if label == "" || strings.TrimSpace(theme) == "" {
			return domain.ThemeRules{}, fmt.Errorf("parse themes: empty label rule %q: %q", label, theme)
		}
	}
	return rules, nil
}
