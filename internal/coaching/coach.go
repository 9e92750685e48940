package coaching

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edallison777/vitracka-sub003/pkg/logging"
)

const coachSystemPrompt = `You are a compassionate, adaptive weight management coach for the Vitracka app.

CORE PRINCIPLES:
1. SHAME-FREE LANGUAGE: Never use guilt, shame, or judgment. Reframe setbacks as learning opportunities.
2. ADAPTIVE COACHING: Adjust your tone and approach based on user preferences (gentle, pragmatic, upbeat, structured).
3. GLP-1 AWARENESS: For users on GLP-1 medications, focus on nutrition quality over quantity, acknowledge appetite changes.
4. GOAL-AWARE: Tailor messaging to whether the user is losing weight, maintaining, or transitioning.
5. GAMIFICATION SENSITIVITY: Adapt competitive language based on the user's gamification preference.

RESPONSE GUIDELINES:
- Keep responses concise (2-3 sentences for check-ins, longer for complex questions)
- Always end with encouragement or a forward-looking statement
- Use the user's name when provided
- Never give medical advice, diagnosis, or medication guidance
- Acknowledge emotions without dwelling on negativity

Remember: your role is to support, not judge. Every interaction should leave the user feeling motivated and capable.`

// CoachSpecialist is the catch-all responder backed by the external
// generation service. It enforces its own timeout and personalizes the
// prompt from the profile snapshot.
type CoachSpecialist struct {
	client     LLMClient
	model      string
	timeout    time.Duration
	priority   int
	confidence float64
	logger     *logging.Logger
}

// CoachConfig configures the coach specialist.
type CoachConfig struct {
	Model      string
	Timeout    time.Duration
	Priority   int
	Confidence float64
}

// NewCoachSpecialist creates the LLM-backed coach.
func NewCoachSpecialist(client LLMClient, cfg CoachConfig, logger *logging.Logger) *CoachSpecialist {
	if client == nil {
		panic("coaching: coach llm client cannot be nil")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		panic("coaching: coach model id required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	priority := cfg.Priority
	if priority <= 0 {
		priority = 10
	}
	confidence := cfg.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.75
	}
	return &CoachSpecialist{
		client:     client,
		model:      cfg.Model,
		timeout:    timeout,
		priority:   priority,
		confidence: confidence,
		logger:     logger.Component("coach"),
	}
}

func (c *CoachSpecialist) ID() string    { return "coach" }
func (c *CoachSpecialist) Priority() int { return c.priority }

// CanHandle accepts everything; the coach is the conversational catch-all.
func (c *CoachSpecialist) CanHandle(ConversationMessage, ConversationContext) bool { return true }

// Process generates a coaching reply from the message and recent history.
func (c *CoachSpecialist) Process(ctx context.Context, req SpecialistRequest) (SpecialistResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := historyAsChat(req.Context.Messages, req.Message.ID)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: req.Message.Content})

	system := []string{coachSystemPrompt}
	if contextPrompt := buildContextPrompt(req.Context.Profile); contextPrompt != "" {
		system = append(system, contextPrompt)
	}

	resp, err := c.client.Complete(ctx, LLMRequest{
		Model:       c.model,
		System:      system,
		Messages:    messages,
		MaxTokens:   2048,
		Temperature: 0.7,
	})
	if err != nil {
		return SpecialistResponse{}, fmt.Errorf("coaching: coach generation failed: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return SpecialistResponse{}, fmt.Errorf("coaching: coach returned empty reply")
	}

	return SpecialistResponse{
		AgentID:    c.ID(),
		Text:       resp.Text,
		Confidence: c.confidence,
	}, nil
}

// buildContextPrompt renders the profile snapshot as generation context.
func buildContextPrompt(profile UserProfile) string {
	var parts []string

	if profile.Name != "" {
		parts = append(parts, fmt.Sprintf("The user's name is %s", profile.Name))
	}
	if profile.CoachingStyle != "" {
		parts = append(parts, fmt.Sprintf("Use %s coaching style", profile.CoachingStyle))
	}
	if profile.OnGLP1 {
		parts = append(parts, "User is on GLP-1 medication - focus on nutrition quality")
	}
	switch profile.GoalType {
	case GoalLoss:
		parts = append(parts, "User is actively losing weight")
	case GoalMaintenance:
		parts = append(parts, "User is maintaining their weight")
	case GoalTransition:
		parts = append(parts, "User is transitioning to maintenance")
	}
	switch profile.GamificationPreference {
	case "high":
		parts = append(parts, "User loves competitive challenges and achievements")
	case "low":
		parts = append(parts, "User prefers minimal gamification")
	}

	if len(parts) == 0 {
		return ""
	}
	return "CONTEXT: " + strings.Join(parts, ". ") + "."
}

// historyAsChat converts recent session history for the generation request,
// excluding the current message (appended separately by the caller).
func historyAsChat(messages []ConversationMessage, currentID string) []ChatMessage {
	chat := make([]ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.ID == currentID {
			continue
		}
		role := ChatRoleUser
		if msg.Sender == SenderAgent {
			role = ChatRoleAssistant
		}
		chat = append(chat, ChatMessage{Role: role, Content: msg.Content})
	}
	return chat
}
