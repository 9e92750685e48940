package coaching

import (
	"math/rand"
	"sync"
)

// Crisis resources referenced by the safety templates.
const (
	crisisLifeline  = "988 Suicide & Crisis Lifeline (call or text 988)"
	crisisTextLine  = "Crisis Text Line (text HOME to 741741)"
	nedaHelpline    = "National Eating Disorders Association Helpline at 1-800-931-2237"
	emergencyNumber = "911"
	samhsaHelpline  = "SAMHSA National Helpline at 1-800-662-4357"
)

// responseKind selects a safety template family for a (category, severity)
// pair.
type responseKind int

const (
	kindCrisis responseKind = iota
	kindEatingDisorder
	kindMentalHealth
	kindMedicalEmergency
)

var crisisTemplates = []string{
	"I'm really concerned about what you just shared, and I want you to know you're not alone. Please reach out to the " + crisisLifeline + " or the " + crisisTextLine + " right now — they're free, confidential, and available 24/7. Your life matters.",
	"What you're describing sounds really serious, and you deserve immediate support from someone trained to help. Please contact the " + crisisLifeline + " now, or the " + crisisTextLine + ". I'm glad you told me — please don't carry this alone.",
}

var eatingDisorderTemplates = []string{
	"I hear you, and I want you to know that what you're going through deserves real care — more than a coaching app can give. Please reach out to the " + nedaHelpline + "; they understand exactly what this feels like. Your worth is never measured by food or weight.",
	"Thank you for trusting me with this. These patterns around food can be really hard, and you deserve specialized support. The " + nedaHelpline + " is a caring place to start. You don't have to figure this out by yourself.",
}

var mentalHealthTemplates = []string{
	"It sounds like you're carrying something heavy right now, and I want you to have more support than I can offer. Talking with a mental health professional can really help — the " + samhsaHelpline + " can connect you with someone. In the meantime, please be gentle with yourself.",
	"I'm sorry you're feeling this way. These feelings are real and they matter, and a counselor or therapist can help in ways a coach can't. The " + samhsaHelpline + " is free and confidential if you'd like help finding support.",
}

var medicalEmergencyTemplates = []string{
	"What you're describing could be a medical emergency. Please call " + emergencyNumber + " or go to the nearest emergency room right away — don't wait. Your safety comes first.",
	"Please stop and get medical help now: call " + emergencyNumber + " or have someone take you to an emergency room immediately. This isn't something to push through.",
}

// genericCrisisResponse is the fail-closed fallback when detection or
// template selection itself fails.
const genericCrisisResponse = "I want to make sure you're safe. If you're in crisis or thinking about hurting yourself, please contact the " + crisisLifeline + " or call " + emergencyNumber + " for emergencies. If this was a false alarm, I apologize — your wellbeing always comes first."

// vetoResponse replaces a composed reply that failed the post-hoc check.
const vetoResponseText = "I want to be careful here, because this topic deserves more support than I can responsibly give. If you're struggling, the " + crisisLifeline + " and your healthcare provider are the right places to turn. I'm here for your coaching questions whenever you're ready."

// fallbackReply is used when no specialist produced a response.
const fallbackReply = "I'm here with you. Tell me a little more about what's on your mind — whether it's your goals, how the week has gone, or anything you're finding hard right now."

// templateKindFor maps the dominant (category, severity) to a template
// family.
func templateKindFor(category TriggerCategory, severity TriggerSeverity) responseKind {
	switch category {
	case CategoryMedicalEmergency:
		return kindMedicalEmergency
	case CategorySelfHarm:
		if severity == SeverityCritical {
			return kindCrisis
		}
		return kindMentalHealth
	case CategoryEatingDisorder:
		if severity == SeverityCritical {
			return kindCrisis
		}
		return kindEatingDisorder
	case CategoryDepression:
		return kindMentalHealth
	default:
		return kindCrisis
	}
}

// templatePicker selects one variant from a template family using an
// injectable seeded source, so tests can assert exact output while
// production still varies phrasing.
type templatePicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newTemplatePicker(seed int64) *templatePicker {
	return &templatePicker{rng: rand.New(rand.NewSource(seed))}
}

func (p *templatePicker) pick(kind responseKind) string {
	variants := crisisTemplates
	switch kind {
	case kindEatingDisorder:
		variants = eatingDisorderTemplates
	case kindMentalHealth:
		variants = mentalHealthTemplates
	case kindMedicalEmergency:
		variants = medicalEmergencyTemplates
	}
	if len(variants) == 0 {
		return genericCrisisResponse
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return variants[p.rng.Intn(len(variants))]
}
