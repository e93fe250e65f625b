package securedata

import (
	"fmt"
	"regexp"

	"github.com/innkeephq/innkeep/internal/models"
)

// Deny-list of injection-indicative patterns. This is a backstop behind
// parameterized queries, not the primary defense.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunion\s+(all\s+)?select\b`),
	regexp.MustCompile(`(?i)\binsert\s+into\b`),
	regexp.MustCompile(`(?i)\bdrop\s+(table|database)\b`),
	regexp.MustCompile(`(?i)\bdelete\s+from\b`),
	regexp.MustCompile(`(?i)\btruncate\s+table\b`),
	regexp.MustCompile(`(?i)\bexec(ute)?\s*\(`),
	regexp.MustCompile(`(?i)\binformation_schema\b`),
	regexp.MustCompile(`(?i)\bpg_sleep\s*\(`),
	regexp.MustCompile(`;\s*--`),
	regexp.MustCompile(`(?i)\$where\b`),
	regexp.MustCompile(`(?i)javascript:`),
}

// ValidateParams rejects parameter sets containing injection-indicative
// keyword patterns anywhere in their string values.
func ValidateParams(params map[string]any) error {
	return validateValue(params, "")
}

func validateValue(v any, path string) error {
	switch val := v.(type) {
	case string:
		for _, pattern := range denyPatterns {
			if pattern.MatchString(val) {
				return fmt.Errorf("%w: suspicious pattern in parameter %q", models.ErrValidation, path)
			}
		}
	case map[string]any:
		for k, item := range val {
			p := k
			if path != "" {
				p = path + "." + k
			}
			if err := validateValue(item, p); err != nil {
				return err
			}
		}
	case []any:
		for i, item := range val {
			if err := validateValue(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case []string:
		for i, item := range val {
			if err := validateValue(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}
