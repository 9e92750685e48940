package coaching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectNoTriggers(t *testing.T) {
	for _, text := range []string{
		"",
		"   ",
		"had a great week, hit my step goal every day",
		"what should I eat for breakfast",
	} {
		assert.Empty(t, Detect(text), "text %q", text)
	}
}

func TestDetectCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		text     string
		category TriggerCategory
		severity TriggerSeverity
	}{
		{"I want to kill myself", CategorySelfHarm, SeverityCritical},
		{"I've been thinking about suicide", CategorySelfHarm, SeverityCritical},
		{"sometimes I hurt myself on purpose", CategorySelfHarm, SeverityHigh},
		{"I've been purging after dinner", CategoryEatingDisorder, SeverityHigh},
		{"I keep throwing up after meals", CategoryEatingDisorder, SeverityHigh},
		{"I'm starving myself to hit the goal", CategoryEatingDisorder, SeverityCritical},
		{"I skip meals to lose weight faster", CategoryEatingDisorder, SeverityMedium},
		{"I'm having chest pain and my arm is numb", CategoryMedicalEmergency, SeverityCritical},
		{"I feel so depressed lately", CategoryDepression, SeverityMedium},
		{"no motivation at all this week", CategoryDepression, SeverityLow},
	}
	for _, tt := range tests {
		matches := Detect(tt.text)
		require.NotEmpty(t, matches, "text %q", tt.text)
		dominant, ok := Dominant(matches)
		require.True(t, ok)
		assert.Equal(t, tt.category, dominant.Category, "text %q", tt.text)
		assert.Equal(t, tt.severity, dominant.Severity, "text %q", tt.text)
	}
}

func TestDetectDominancePriority(t *testing.T) {
	// Medical emergency outranks self-harm regardless of mention order.
	matches := Detect("I feel suicidal and I have chest pain")
	require.GreaterOrEqual(t, len(matches), 2)
	dominant, ok := Dominant(matches)
	require.True(t, ok)
	assert.Equal(t, CategoryMedicalEmergency, dominant.Category)

	// Within a category, higher severity wins.
	matches = Detect("I hate my body and I've been purging")
	dominant, ok = Dominant(matches)
	require.True(t, ok)
	assert.Equal(t, CategoryEatingDisorder, dominant.Category)
	assert.Equal(t, SeverityHigh, dominant.Severity)
}

func TestDetectRetainsAllMatches(t *testing.T) {
	matches := Detect("I feel worthless and I've been skipping meals to lose weight")
	require.Len(t, matches, 2)
	phrases := MatchedPhrases(matches)
	assert.Contains(t, phrases, "skipping meals to lose")
	assert.Contains(t, phrases, "feel worthless")
	// Eating disorder outranks depression.
	assert.Equal(t, CategoryEatingDisorder, matches[0].Category)
}

func TestExtremeGoalExtraction(t *testing.T) {
	tests := []struct {
		text    string
		pounds  int
		matched bool
	}{
		{"I want to lose 60 pounds by summer", 60, true},
		{"trying to drop 55 lbs", 55, true},
		{"losing 30 kg would change my life", 66, true},
		{"I want to lose 15 pounds", 15, true},
		{"I want to lose weight", 0, false},
	}
	for _, tt := range tests {
		pounds, _, ok := extractGoalPounds(tt.text)
		assert.Equal(t, tt.matched, ok, "text %q", tt.text)
		if tt.matched {
			assert.Equal(t, tt.pounds, pounds, "text %q", tt.text)
		}
	}
}

func TestDetectFlagsExtremeNumericGoal(t *testing.T) {
	matches := Detect("my plan is to lose 80 pounds in three months")
	require.Len(t, matches, 1)
	assert.Equal(t, CategoryEatingDisorder, matches[0].Category)
	assert.Equal(t, SeverityMedium, matches[0].Severity)

	// Below the threshold is not a detection signal.
	assert.Empty(t, Detect("my plan is to lose 20 pounds this year"))

	// Kilogram goals normalize to pounds before the threshold check.
	matches = Detect("I need to drop 25 kg")
	require.Len(t, matches, 1)
	assert.Equal(t, CategoryEatingDisorder, matches[0].Category)
}

func TestDetectDeterministic(t *testing.T) {
	const text = "I'm so depressed and I've been purging and I feel worthless"
	first := Detect(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Detect(text))
	}
}

func TestDetectCaseInsensitive(t *testing.T) {
	matches := Detect("I WANT TO KILL MYSELF")
	require.NotEmpty(t, matches)
	assert.Equal(t, CategorySelfHarm, matches[0].Category)
	assert.Equal(t, SeverityCritical, matches[0].Severity)
}
