package coaching

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/edallison777/vitracka-sub003/internal/audit"
	"github.com/edallison777/vitracka-sub003/internal/observability/metrics"
	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

// MedicalTopic organizes the boundary filter's phrase tables.
type MedicalTopic string

const (
	TopicDiagnosis             MedicalTopic = "diagnosis"
	TopicTreatment             MedicalTopic = "treatment"
	TopicMedicalDecisions      MedicalTopic = "medical_decisions"
	TopicWeightLossMedical     MedicalTopic = "weight_loss_medical"
	TopicSubstantialWeightLoss MedicalTopic = "substantial_weight_loss"
)

// MedicalBoundaryResult reports whether the filter redirected a message.
type MedicalBoundaryResult struct {
	Redirected     bool
	Topic          MedicalTopic
	Response       string
	MatchedPhrases []string
}

// OutgoingViolation reports prescriptive medical language found in an
// agent-generated reply.
type OutgoingViolation struct {
	Violated    bool
	Pattern     string
	Replacement string
}

// clinicalGoalPounds is the threshold above which a stated numeric
// weight-loss goal warrants clinical guidance (roughly 14 kg).
const clinicalGoalPounds = 30

var medicalTopicPhrases = map[MedicalTopic][]string{
	TopicDiagnosis: {
		"what's wrong with my",
		"whats wrong with my",
		"do i have a condition",
		"diagnose",
		"my symptoms",
		"is this a symptom",
		"is this normal for my body",
	},
	TopicTreatment: {
		"what medication",
		"which medication",
		"should i take",
		"dosage",
		"my dose",
		"prescription",
		"change my medication",
		"stop taking my",
	},
	TopicMedicalDecisions: {
		"should i see a doctor",
		"do i need surgery",
		"is it safe for me to",
		"medical advice",
		"instead of seeing a doctor",
	},
	TopicWeightLossMedical: {
		"ozempic",
		"wegovy",
		"semaglutide",
		"tirzepatide",
		"glp-1 dose",
		"diet pills",
		"weight loss medication",
		"weight loss drug",
		"water fast",
	},
	TopicSubstantialWeightLoss: {
		"lose weight as fast as possible",
		"rapid weight loss",
		"crash diet",
		"extreme diet",
	},
}

// topicOrder makes match collection deterministic.
var topicOrder = []MedicalTopic{
	TopicDiagnosis,
	TopicTreatment,
	TopicMedicalDecisions,
	TopicWeightLossMedical,
	TopicSubstantialWeightLoss,
}

var urgentMedicalPattern = regexp.MustCompile(`(?i)\b(urgent|emergency|severe|unbearable|right now|getting worse fast)\b`)

var medicationPattern = regexp.MustCompile(`(?i)\b(medication|medicine|dose|dosage|prescription|pills?|ozempic|wegovy|semaglutide|tirzepatide)\b`)

// weightGoalPattern mirrors the detector's numeric extractor but applies the
// clinical threshold instead of the eating-disorder one.
var weightGoalPattern = regexp.MustCompile(`(?i)\b(?:lose|losing|drop|dropping)\s+(\d{1,4})\s*(pounds?|lbs?|kilos?|kilograms?|kg)\b`)

// Redirect templates. All of them route the user to a licensed clinician.
const (
	medicalUrgentResponse = "This sounds like something that needs prompt medical attention. Please contact your doctor today, or call 911 if it feels like an emergency. I can support your coaching goals, but a clinician needs to look at this."

	medicalMedicationResponse = "Medication questions — doses, starting, stopping, or switching — are decisions for you and your prescribing clinician, so I can't weigh in there. What I can do is support the habits around it: nutrition quality, hydration, and how you're feeling day to day."

	medicalSubstantialLossResponse = "A goal of that size is absolutely worth pursuing, and it deserves medical supervision to be done safely. Please talk with your healthcare provider about a plan — and I'd love to coach you through the daily habits once that plan is in place."

	medicalGeneralResponse = "That's a question for a licensed clinician rather than a coach, so I'd encourage you to bring it to your healthcare provider. I'm here for the coaching side: habits, consistency, and how your week is going."
)

// safeOutgoingAlternative replaces agent replies that contain prescriptive
// medical language.
const safeOutgoingAlternative = "For anything involving medication or treatment decisions, please check with your healthcare provider — they know your full picture. On the coaching side, I'm happy to help with habits, meals, and momentum."

// prescriptivePatterns catch agent-generated text that gives medical
// directives.
var prescriptivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\byou should (take|stop taking|start taking|increase|decrease|double|skip)\b`),
	regexp.MustCompile(`(?i)\bstop taking (your|the)\b`),
	regexp.MustCompile(`(?i)\b(increase|decrease|adjust|double) your (dose|dosage|medication)\b`),
	regexp.MustCompile(`(?i)\byou don'?t need (to see |a )?(doctor|physician)\b`),
	regexp.MustCompile(`(?i)\bno need to (see|consult) (a |your )?(doctor|physician|clinician)\b`),
	regexp.MustCompile(`(?i)\bi recommend (taking|stopping|starting)\b`),
}

// MedicalBoundary is the lower-authority medical-advice filter. It runs only
// after the sentinel has cleared a message and never overrides other agents.
type MedicalBoundary struct {
	auditor *audit.Logger
	metrics *metrics.ConciergeMetrics
	logger  *logging.Logger
}

// NewMedicalBoundary creates the filter.
func NewMedicalBoundary(auditor *audit.Logger, m *metrics.ConciergeMetrics, logger *logging.Logger) *MedicalBoundary {
	if auditor == nil {
		panic("coaching: medical boundary audit logger cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MedicalBoundary{
		auditor: auditor,
		metrics: m,
		logger:  logger.Component("medical_boundary"),
	}
}

// Screen checks an incoming, sentinel-cleared message for medical-advice
// requests and returns a redirect when one is found.
func (b *MedicalBoundary) Screen(ctx context.Context, message, userID string) MedicalBoundaryResult {
	lowered := strings.ToLower(message)

	var matched []string
	var firstTopic MedicalTopic
	topics := map[MedicalTopic]bool{}
	for _, topic := range topicOrder {
		for _, phrase := range medicalTopicPhrases[topic] {
			if strings.Contains(lowered, phrase) {
				matched = append(matched, phrase)
				topics[topic] = true
				if firstTopic == "" {
					firstTopic = topic
				}
			}
		}
	}

	substantialGoal := false
	if pounds, phrase, ok := extractClinicalGoal(message); ok && pounds >= clinicalGoalPounds {
		matched = append(matched, phrase)
		topics[TopicSubstantialWeightLoss] = true
		substantialGoal = true
		if firstTopic == "" {
			firstTopic = TopicSubstantialWeightLoss
		}
	}

	if len(matched) == 0 {
		return MedicalBoundaryResult{Redirected: false}
	}

	response, topic := b.selectRedirect(lowered, topics, substantialGoal, firstTopic)

	result := MedicalBoundaryResult{
		Redirected:     true,
		Topic:          topic,
		Response:       response,
		MatchedPhrases: matched,
	}

	b.metrics.ObserveMedicalRedirect(string(topic))
	if _, err := b.auditor.LogEvent(ctx, audit.Event{
		EventType:   audit.EventSystemDecision,
		Severity:    audit.SeverityInfo,
		UserID:      userID,
		AgentID:     "medical_boundary",
		Action:      "medical_redirect",
		Description: "medical-advice request redirected to a clinician",
		Metadata: map[string]any{
			"topic":           string(topic),
			"matched_phrases": matched,
		},
	}); err != nil {
		b.logger.Error("failed to audit medical redirect", "error", err, "user_id", userID)
	}

	return result
}

func (b *MedicalBoundary) selectRedirect(lowered string, topics map[MedicalTopic]bool, substantialGoal bool, firstTopic MedicalTopic) (string, MedicalTopic) {
	switch {
	case urgentMedicalPattern.MatchString(lowered):
		return medicalUrgentResponse, firstTopic
	case medicationPattern.MatchString(lowered):
		return medicalMedicationResponse, TopicTreatment
	case substantialGoal || topics[TopicSubstantialWeightLoss]:
		return medicalSubstantialLossResponse, TopicSubstantialWeightLoss
	default:
		return medicalGeneralResponse, firstTopic
	}
}

// ScreenOutgoing checks an agent-generated reply for prescriptive medical
// language and substitutes a safe alternative on violation.
func (b *MedicalBoundary) ScreenOutgoing(ctx context.Context, candidateReply, userID string) OutgoingViolation {
	for _, pattern := range prescriptivePatterns {
		if pattern.MatchString(candidateReply) {
			violation := OutgoingViolation{
				Violated:    true,
				Pattern:     pattern.String(),
				Replacement: safeOutgoingAlternative,
			}
			if _, err := b.auditor.LogEvent(ctx, audit.Event{
				EventType:   audit.EventSystemDecision,
				Severity:    audit.SeverityWarning,
				UserID:      userID,
				AgentID:     "medical_boundary",
				Action:      "outgoing_medical_language_replaced",
				Description: "agent reply contained prescriptive medical language",
				Metadata:    map[string]any{"pattern": violation.Pattern},
			}); err != nil {
				b.logger.Error("failed to audit outgoing violation", "error", err, "user_id", userID)
			}
			return violation
		}
	}
	return OutgoingViolation{Violated: false}
}

func extractClinicalGoal(text string) (int, string, bool) {
	m := weightGoalPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	if unit := strings.ToLower(m[2]); strings.HasPrefix(unit, "k") {
		n = n * 22 / 10
	}
	return n, strings.ToLower(m[0]), true
}
