package coaching

import (
	"context"
	"fmt"
	"strings"
)

// progressKeywords gate the progress specialist. Matched case-insensitively
// against whole words.
var progressKeywords = []string{
	"weight", "weigh", "weighed", "scale", "progress", "goal", "milestone",
	"plateau", "tracking", "logged", "streak",
}

var motivationKeywords = []string{
	"motivation", "motivated", "unmotivated", "struggling", "discouraged",
	"frustrated", "give up", "giving up", "hard week", "fell off", "slipped",
	"can't keep", "tired of",
}

func containsAnyKeyword(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// ProgressSpecialist responds to goal and tracking questions with
// deterministic, profile-aware framing. No external calls.
type ProgressSpecialist struct{}

func (ProgressSpecialist) ID() string    { return "progress" }
func (ProgressSpecialist) Priority() int { return 3 }

func (ProgressSpecialist) CanHandle(msg ConversationMessage, _ ConversationContext) bool {
	return containsAnyKeyword(msg.Content, progressKeywords)
}

func (p ProgressSpecialist) Process(_ context.Context, req SpecialistRequest) (SpecialistResponse, error) {
	var b strings.Builder
	name := req.Context.Profile.Name
	if name != "" {
		fmt.Fprintf(&b, "%s, ", name)
	}

	switch req.Context.Profile.GoalType {
	case GoalMaintenance:
		b.WriteString("maintenance is its own achievement - consistency matters more than the number on any single day.")
	case GoalTransition:
		b.WriteString("transitioning to maintenance is a big shift. Focus on keeping the habits that got you here rather than chasing further loss.")
	default:
		b.WriteString("progress is rarely a straight line. What the trend shows over weeks matters far more than any single weigh-in.")
	}

	if req.Context.Profile.OnGLP1 {
		b.WriteString(" Since appetite changes can shift how progress feels, pay attention to nutrition quality alongside the scale.")
	}

	return SpecialistResponse{
		AgentID:    "progress",
		Text:       b.String(),
		Confidence: 0.85,
	}, nil
}

// MotivationSpecialist responds to discouragement with shame-free
// encouragement, adapted to the configured coaching style.
type MotivationSpecialist struct{}

func (MotivationSpecialist) ID() string    { return "motivation" }
func (MotivationSpecialist) Priority() int { return 5 }

func (MotivationSpecialist) CanHandle(msg ConversationMessage, _ ConversationContext) bool {
	return containsAnyKeyword(msg.Content, motivationKeywords)
}

func (m MotivationSpecialist) Process(_ context.Context, req SpecialistRequest) (SpecialistResponse, error) {
	var text string
	switch req.Context.Profile.CoachingStyle {
	case StylePragmatic:
		text = "Rough patches are data, not verdicts. Pick the single smallest habit you can restart today and let the rest wait."
	case StyleUpbeat:
		text = "Everyone hits a wall sometimes - and you showed up anyway, which is the part that counts! One small win today resets the momentum."
	case StyleStructured:
		text = "Let's break this down: name one thing that went well this week, one thing that slipped, and one concrete step for tomorrow. Small, specific steps rebuild momentum."
	default:
		text = "It's completely okay to have hard stretches. Be kind to yourself - what you're feeling is part of the process, not a failure. Tomorrow is a fresh start."
	}

	if name := req.Context.Profile.Name; name != "" {
		text = name + ", " + strings.ToLower(text[:1]) + text[1:]
	}

	return SpecialistResponse{
		AgentID:          "motivation",
		Text:             text,
		Confidence:       0.8,
		RequiresFollowUp: false,
	}, nil
}
