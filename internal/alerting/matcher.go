package alerting

import (
	"strings"

	"github.com/good-yellow-bee/logalert/internal/models"
)

// Matches reports whether a log record satisfies the rule's filter: severity
// membership, source substring and message substring, all case-insensitive.
// Empty filters match anything. Matches is pure and safe for concurrent use.
func Matches(log *models.LogRecord, rule *models.AlertRule) bool {
	return matchSeverity(log.Severity, rule.Severities) &&
		containsFold(log.Source, rule.SourceIncludes) &&
		containsFold(log.Message, rule.MessageIncludes)
}

func matchSeverity(severity string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	severity = models.NormalizeSeverity(severity)
	for _, s := range allowed {
		if models.NormalizeSeverity(s) == severity {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
