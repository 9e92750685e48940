package coaching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressSpecialistRouting(t *testing.T) {
	p := ProgressSpecialist{}

	accepts := []string{
		"how is my weight trending",
		"I hit a plateau",
		"am I making progress toward my goal",
	}
	for _, text := range accepts {
		assert.True(t, p.CanHandle(NewUserMessage(text, testTime()), ConversationContext{}), "text %q", text)
	}

	rejects := []string{
		"what's a good breakfast",
		"I had a fun weekend",
	}
	for _, text := range rejects {
		assert.False(t, p.CanHandle(NewUserMessage(text, testTime()), ConversationContext{}), "text %q", text)
	}
}

func TestProgressSpecialistGoalAwareness(t *testing.T) {
	p := ProgressSpecialist{}
	msg := NewUserMessage("how is my progress", testTime())

	resp, err := p.Process(context.Background(), SpecialistRequest{
		Message: msg,
		Context: ConversationContext{Profile: UserProfile{Name: "Sam", GoalType: GoalMaintenance}},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Sam")
	assert.Contains(t, resp.Text, "maintenance")

	resp, err = p.Process(context.Background(), SpecialistRequest{
		Message: msg,
		Context: ConversationContext{Profile: UserProfile{GoalType: GoalLoss, OnGLP1: true}},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "trend")
	assert.Contains(t, resp.Text, "nutrition quality")
}

func TestMotivationSpecialistRouting(t *testing.T) {
	m := MotivationSpecialist{}

	assert.True(t, m.CanHandle(NewUserMessage("I'm really struggling this week", testTime()), ConversationContext{}))
	assert.True(t, m.CanHandle(NewUserMessage("I feel like giving up on this", testTime()), ConversationContext{}))
	assert.False(t, m.CanHandle(NewUserMessage("what's for dinner", testTime()), ConversationContext{}))
}

func TestMotivationSpecialistStyleAdaptation(t *testing.T) {
	m := MotivationSpecialist{}
	msg := NewUserMessage("I'm struggling", testTime())

	styles := map[CoachingStyle]string{
		StylePragmatic:  "data",
		StyleUpbeat:     "momentum",
		StyleStructured: "break this down",
		StyleGentle:     "kind to yourself",
	}
	for style, want := range styles {
		resp, err := m.Process(context.Background(), SpecialistRequest{
			Message: msg,
			Context: ConversationContext{Profile: UserProfile{CoachingStyle: style}},
		})
		require.NoError(t, err)
		assert.Contains(t, resp.Text, want, "style %s", style)
	}
}
