package coaching

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// categoryRank orders categories by authority. Lower rank wins.
var categoryRank = map[TriggerCategory]int{
	CategoryMedicalEmergency: 0,
	CategorySelfHarm:         1,
	CategoryEatingDisorder:   2,
	CategoryDepression:       3,
}

// severityRank orders severities within a category. Lower rank wins.
var severityRank = map[TriggerSeverity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// triggerEntry is one phrase in the flattened detection table.
type triggerEntry struct {
	category TriggerCategory
	severity TriggerSeverity
	phrase   string
}

// triggerTable is built once at init, sorted by (category rank, severity
// rank, declaration order), so Detect is a single pass and dominance is
// resolved by table position alone.
var triggerTable = buildTriggerTable()

func buildTriggerTable() []triggerEntry {
	type group struct {
		category TriggerCategory
		severity TriggerSeverity
		phrases  []string
	}

	// Declaration order within a (category, severity) pair is the
	// deterministic tie-breaker.
	groups := []group{
		{CategoryMedicalEmergency, SeverityCritical, []string{
			"chest pain",
			"can't breathe",
			"cannot breathe",
			"heart attack",
			"having a stroke",
			"overdose",
			"overdosed",
		}},
		{CategoryMedicalEmergency, SeverityHigh, []string{
			"severe pain",
			"fainted",
			"keep passing out",
			"coughing up blood",
		}},
		{CategorySelfHarm, SeverityCritical, []string{
			"kill myself",
			"end my life",
			"suicide",
			"suicidal",
			"don't want to live",
			"better off dead",
		}},
		{CategorySelfHarm, SeverityHigh, []string{
			"hurt myself",
			"hurting myself",
			"harm myself",
			"self-harm",
			"self harm",
			"cutting myself",
		}},
		{CategorySelfHarm, SeverityMedium, []string{
			"no reason to go on",
			"wish i could disappear",
		}},
		{CategoryEatingDisorder, SeverityCritical, []string{
			"starving myself",
			"haven't eaten in days",
			"refuse to eat anything",
		}},
		{CategoryEatingDisorder, SeverityHigh, []string{
			"purging",
			"purge",
			"throwing up after",
			"throw up after",
			"vomit after eating",
			"laxatives to lose",
			"binge and purge",
		}},
		{CategoryEatingDisorder, SeverityMedium, []string{
			"skip meals to lose",
			"skipping meals to lose",
			"afraid to eat",
			"terrified of eating",
			"punish myself for eating",
		}},
		{CategoryEatingDisorder, SeverityLow, []string{
			"hate my body",
			"disgusted by my body",
		}},
		{CategoryDepression, SeverityHigh, []string{
			"can't get out of bed",
			"nothing matters anymore",
			"completely hopeless",
		}},
		{CategoryDepression, SeverityMedium, []string{
			"so depressed",
			"feel worthless",
			"feeling worthless",
			"crying all the time",
			"crying every day",
		}},
		{CategoryDepression, SeverityLow, []string{
			"feeling down",
			"no motivation",
			"feel like giving up",
		}},
	}

	var table []triggerEntry
	for _, g := range groups {
		for _, phrase := range g.phrases {
			table = append(table, triggerEntry{g.category, g.severity, phrase})
		}
	}

	// The declaration above is already grouped by category/severity rank,
	// but sort anyway so a reordered declaration cannot change dominance.
	// Stable sort keeps declaration order within equal (category, severity).
	sort.SliceStable(table, func(i, j int) bool {
		if categoryRank[table[i].category] != categoryRank[table[j].category] {
			return categoryRank[table[i].category] < categoryRank[table[j].category]
		}
		return severityRank[table[i].severity] < severityRank[table[j].severity]
	})
	return table
}

// extremeGoalPattern catches numeric weight-loss goals, e.g. "lose 60 pounds".
var extremeGoalPattern = regexp.MustCompile(`(?i)\b(?:lose|losing|drop|dropping)\s+(\d{1,4})\s*(pounds?|lbs?|kilos?|kilograms?|kg)\b`)

// extremeGoalPounds is the detector's threshold for flagging a numeric goal
// as an eating-disorder signal. The medical boundary filter applies its own,
// lower clinical threshold.
const extremeGoalPounds = 50

// Detect maps text to zero or more trigger matches. Pure function; matches
// come back in table-priority order, so the first element is the dominant
// one. All matched phrases are retained for the audit trail.
func Detect(text string) []TriggerMatch {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return nil
	}

	var matches []TriggerMatch
	for _, entry := range triggerTable {
		if strings.Contains(lowered, entry.phrase) {
			matches = append(matches, TriggerMatch{
				Category: entry.category,
				Severity: entry.severity,
				Phrase:   entry.phrase,
			})
		}
	}

	if pounds, phrase, ok := extractGoalPounds(text); ok && pounds >= extremeGoalPounds {
		matches = append(matches, TriggerMatch{
			Category: CategoryEatingDisorder,
			Severity: SeverityMedium,
			Phrase:   phrase,
		})
		// Re-establish priority order after the append.
		matches = sortMatches(matches)
	}

	return matches
}

// Dominant returns the single match that drives the response, or false when
// there are no matches.
func Dominant(matches []TriggerMatch) (TriggerMatch, bool) {
	if len(matches) == 0 {
		return TriggerMatch{}, false
	}
	return matches[0], true
}

func sortMatches(matches []TriggerMatch) []TriggerMatch {
	sorted := make([]TriggerMatch, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		if categoryRank[sorted[i].Category] != categoryRank[sorted[j].Category] {
			return categoryRank[sorted[i].Category] < categoryRank[sorted[j].Category]
		}
		return severityRank[sorted[i].Severity] < severityRank[sorted[j].Severity]
	})
	return sorted
}

// extractGoalPounds parses a numeric weight-loss goal, normalizing kilograms
// to pounds.
func extractGoalPounds(text string) (int, string, bool) {
	m := extremeGoalPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	unit := strings.ToLower(m[2])
	if strings.HasPrefix(unit, "k") {
		n = n * 22 / 10
	}
	return n, strings.ToLower(m[0]), true
}

// MatchedPhrases flattens matches for audit metadata.
func MatchedPhrases(matches []TriggerMatch) []string {
	phrases := make([]string, 0, len(matches))
	for _, m := range matches {
		phrases = append(phrases, m.Phrase)
	}
	return phrases
}
