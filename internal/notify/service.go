package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/edallison777/vitracka-sub003/internal/coaching"
	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

// Service delivers safety alerts to the on-call admin. Delivery failure is
// reported to the caller; the sentinel decides what to do with it.
type Service struct {
	email   EmailSender
	toEmail string
	toName  string
	logger  *logging.Logger
}

// NewService creates an alert service. A nil sender disables delivery; alerts
// are logged instead.
func NewService(email EmailSender, toEmail, toName string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:   email,
		toEmail: toEmail,
		toName:  toName,
		logger:  logger,
	}
}

// NotifySafetyIntervention emails the admin about a sentinel intervention.
// Satisfies coaching.Notifier.
func (s *Service) NotifySafetyIntervention(ctx context.Context, intervention coaching.SafetyIntervention) error {
	if s.email == nil || s.toEmail == "" {
		s.logger.Warn("safety alert delivery disabled, logging only",
			"user_id", intervention.UserID,
			"category", string(intervention.Category),
			"severity", string(intervention.Severity),
		)
		return nil
	}

	subject := fmt.Sprintf("[%s] Safety intervention: %s",
		strings.ToUpper(string(intervention.Severity)), intervention.Category)

	msg := EmailMessage{
		To:      s.toEmail,
		ToName:  s.toName,
		Subject: subject,
		Body:    formatInterventionBody(intervention),
	}

	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("safety alert delivery failed",
			"error", err,
			"user_id", intervention.UserID,
			"category", string(intervention.Category),
		)
		return fmt.Errorf("notify: safety alert delivery failed: %w", err)
	}

	s.logger.Info("safety alert delivered",
		"user_id", intervention.UserID,
		"category", string(intervention.Category),
		"severity", string(intervention.Severity),
	)
	return nil
}

func formatInterventionBody(intervention coaching.SafetyIntervention) string {
	var b strings.Builder
	b.WriteString("A safety intervention occurred and requires review.\n\n")
	fmt.Fprintf(&b, "Time:       %s\n", intervention.Timestamp.Format("January 2, 2006 at 3:04 PM MST"))
	fmt.Fprintf(&b, "User ID:    %s\n", intervention.UserID)
	fmt.Fprintf(&b, "Category:   %s\n", intervention.Category)
	fmt.Fprintf(&b, "Severity:   %s\n", intervention.Severity)
	fmt.Fprintf(&b, "Trigger:    %s\n", intervention.TriggerContent)
	fmt.Fprintf(&b, "Follow-up:  %t\n", intervention.FollowUpRequired)
	b.WriteString("\nThe user received crisis resources. Review the audit trail for the full record.\n")
	return b.String()
}
