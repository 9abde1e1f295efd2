package alerts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/good-yellow-bee/logalert/internal/models"
	"github.com/good-yellow-bee/logalert/internal/notifier"
)

const (
	maxNameLength      = 100
	maxSeverities      = 16
	maxSeverityLength  = 32
	maxIncludesLength  = 256
	maxEvaluateRecords = 10000
)

// ValidateRuleInput rejects input that cannot be stored meaningfully.
// Threshold and window are not checked here; the repository clamps them.
func ValidateRuleInput(in *models.RuleInput) error {
	if in.Name != nil && len(strings.TrimSpace(*in.Name)) > maxNameLength {
		return fmt.Errorf("name must be %d characters or less", maxNameLength)
	}
	if len(in.Severities) > maxSeverities {
		return fmt.Errorf("at most %d severities are allowed", maxSeverities)
	}
	for _, s := range in.Severities {
		if len(s) > maxSeverityLength {
			return fmt.Errorf("severity must be %d characters or less", maxSeverityLength)
		}
	}
	if err := validateIncludes("sourceIncludes", in.SourceIncludes); err != nil {
		return err
	}
	if err := validateIncludes("messageIncludes", in.MessageIncludes); err != nil {
		return err
	}
	if in.WebhookURL != nil {
		if u := strings.TrimSpace(*in.WebhookURL); u != "" {
			if err := notifier.ValidateWebhookURL(u); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateIncludes(field string, v *string) error {
	if v != nil && len(*v) > maxIncludesLength {
		return fmt.Errorf("%s must be %d characters or less", field, maxIncludesLength)
	}
	return nil
}

// ValidateEvaluateSize bounds the number of records in one evaluate call.
func ValidateEvaluateSize(n int) error {
	if n > maxEvaluateRecords {
		return errors.New("too many log records in one request")
	}
	return nil
}
