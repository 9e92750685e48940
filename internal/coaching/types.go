// Package coaching implements the safety-gated dispatch core for the
// Vitracka coaching concierge: trigger detection, the safety sentinel, the
// medical boundary filter, per-session conversational state, specialist
// routing, and the turn pipeline that ties them together.
package coaching

import "time"

// Sender identifies who produced a conversation message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// ConversationMessage is immutable once created.
type ConversationMessage struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
	Sender        Sender    `json:"sender"`
	AgentID       string    `json:"agent_id,omitempty"`
	SafetyChecked bool      `json:"safety_checked"`
}

// CoachingStyle is the user's preferred coaching register.
type CoachingStyle string

const (
	StyleGentle     CoachingStyle = "gentle"
	StylePragmatic  CoachingStyle = "pragmatic"
	StyleUpbeat     CoachingStyle = "upbeat"
	StyleStructured CoachingStyle = "structured"
)

// GoalType describes the user's current weight goal phase.
type GoalType string

const (
	GoalLoss        GoalType = "loss"
	GoalMaintenance GoalType = "maintenance"
	GoalTransition  GoalType = "transition"
)

// UserProfile is the last-known profile snapshot consumed from the external
// profile store. It personalizes routing and composition only; it never
// bypasses safety checks.
type UserProfile struct {
	Name                   string        `json:"name,omitempty"`
	CoachingStyle          CoachingStyle `json:"coaching_style,omitempty"`
	OnGLP1                 bool          `json:"on_glp1"`
	GoalType               GoalType      `json:"goal_type,omitempty"`
	GamificationPreference string        `json:"gamification_preference,omitempty"`
	MedicalFlags           []string      `json:"medical_flags,omitempty"`
}

// TriggerCategory is one of the fixed safety topics the detector knows.
type TriggerCategory string

const (
	CategoryMedicalEmergency TriggerCategory = "medical_emergency"
	CategorySelfHarm         TriggerCategory = "self_harm"
	CategoryEatingDisorder   TriggerCategory = "eating_disorder"
	CategoryDepression       TriggerCategory = "depression"
)

// TriggerSeverity ranks how urgently a detected trigger must be handled.
type TriggerSeverity string

const (
	SeverityLow      TriggerSeverity = "low"
	SeverityMedium   TriggerSeverity = "medium"
	SeverityHigh     TriggerSeverity = "high"
	SeverityCritical TriggerSeverity = "critical"
)

// TriggerMatch is one detection hit. Ephemeral; consumed to build a
// SafetyIntervention.
type TriggerMatch struct {
	Category TriggerCategory
	Severity TriggerSeverity
	Phrase   string
}

// SafetyResponse is the sentinel's answer to screening an incoming message.
type SafetyResponse struct {
	IsIntervention       bool
	Category             TriggerCategory
	Severity             TriggerSeverity
	Response             string
	OverridesOtherAgents bool
	AdminNotified        bool
	FollowUpRequired     bool
	MatchedPhrases       []string
}

// VetoDecision is the sentinel's answer to reviewing a composed reply.
type VetoDecision struct {
	ShouldVeto          bool
	Reason              string
	AlternativeResponse string
	MatchedPhrases      []string
}

// SafetyIntervention is the immutable record of a sentinel intervention or
// veto, persisted via the audit logger with restricted classification.
type SafetyIntervention struct {
	UserID           string          `json:"user_id"`
	Category         TriggerCategory `json:"category"`
	Severity         TriggerSeverity `json:"severity"`
	TriggerContent   string          `json:"trigger_content"`
	Response         string          `json:"response"`
	AdminNotified    bool            `json:"admin_notified"`
	FollowUpRequired bool            `json:"follow_up_required"`
	Timestamp        time.Time       `json:"timestamp"`
}
