package triage

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Result is the outcome of one classification call. It is created fresh per
// call and never mutated afterwards.
type Result struct {
	Urgency           UrgencyLevel `json:"urgency"`
	MatchedCategories []string     `json:"matched_categories"`
	Confidence        float64      `json:"confidence"`
	Recommendations   []string     `json:"recommendations"`
	NextSteps         []string     `json:"next_steps"`
	// IsEmergency is derived solely from Urgency so that presentation layers
	// never compute the alert condition independently.
	IsEmergency bool `json:"is_emergency"`
}

// Pediatric override categories. These fire on age plus symptom signal
// combinations that the generic rule table does not encode.
const (
	CategoryInfantFever        = "pediatric_infant_fever"
	CategoryPediatricBreathing = "pediatric_breathing_difficulty"
)

// MinSymptomLength is the minimum normalized rune count for a symptom
// description to be classifiable. Shorter input is treated as insufficient
// information, not as an error; conversation layers use the same threshold to
// ask for clarification instead of classifying a fallback.
const MinSymptomLength = 3

const (
	infantAgeLimit  = 1
	toddlerAgeLimit = 5
	feverThresholdF = 100.4
	maxPlausibleAge = 130
)

// speechCorrections rewrites common speech-to-text mistranscriptions of
// medical terms before matching. Order matters: entries are applied first to
// last.
var speechCorrections = []struct{ from, to string }{
	{"chest pane", "chest pain"},
	{"difficultly breathing", "difficulty breathing"},
	{"shortness of breathe", "shortness of breath"},
	{"head egg", "headache"},
	{"head ache", "headache"},
	{"stomach egg", "stomach ache"},
	{"feel dizzy", "dizzy"},
	{"throwing up", "vomiting"},
	{"can't breath", "difficulty breathing"},
	{"cannot breath", "difficulty breathing"},
	{"high temperature", "fever"},
	{"running temperature", "fever"},
	{"heart attack", "chest pain"},
	{"stroke symptoms", "sudden weakness"},
}

var feverMarkers = []string{"fever", "temperature", "temp"}

var pediatricBreathingPhrases = []string{
	"difficulty breathing", "trouble breathing", "can't breathe",
	"cannot breathe", "shortness of breath", "gasping", "wheezing",
	"breathing fast", "struggling to breathe",
}

var temperatureReading = regexp.MustCompile(`\b(\d{2,3}(?:\.\d+)?)\b`)

// Normalize lowercases the text, collapses whitespace and applies the
// speech-input corrections. All matching operates over this form.
func Normalize(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	for _, c := range speechCorrections {
		normalized = strings.ReplaceAll(normalized, c.from, c.to)
	}
	return normalized
}

// Engine is the symptom-to-urgency classification core. It is stateless
// beyond the read-only rule table and safe for concurrent use.
type Engine struct {
	table *RuleTable
}

func NewEngine(table *RuleTable) *Engine {
	return &Engine{table: table}
}

// Classify assigns an urgency tier to a free-text symptom description. It is
// total over any string input and any age: malformed input degrades to the
// safety-biased defaults, never to an error.
//
// Tiers are checked in strict priority order and the first tier with any
// match wins; within the winning tier every matching category is collected in
// table order.
func (e *Engine) Classify(text string, age *int, countryCode string) Result {
	normalized := Normalize(text)

	if utf8.RuneCountInString(normalized) < MinSymptomLength {
		// Insufficient information defaults to outpatient, not self-care.
		return e.compose(LevelOutpatient, confidenceOutpatient, nil, countryCode)
	}

	// Age-gated pediatric rules run before generic matching and cannot be
	// weakened by rule-table customization.
	if category, ok := assessPediatric(age, normalized); ok {
		return e.compose(LevelEmergency, confidenceEmergency, []string{category}, countryCode)
	}

	if flags := e.DetectRedFlags(normalized); len(flags) > 0 {
		return e.compose(LevelEmergency, confidenceEmergency, flags, countryCode)
	}

	for _, tier := range []UrgencyLevel{LevelUrgent, LevelOutpatient, LevelSelfCare} {
		if categories := e.matchTier(normalized, tier); len(categories) > 0 {
			return e.compose(tier, confidenceForTier(tier), categories, countryCode)
		}
	}

	return e.compose(LevelSelfCare, confidenceSelfCare, nil, countryCode)
}

// DetectRedFlags returns every emergency category triggered by the normalized
// text, in table order. All emergency rules are checked so the caller sees
// every red flag present, not just the first.
func (e *Engine) DetectRedFlags(normalized string) []string {
	return e.matchTier(normalized, LevelEmergency)
}

func (e *Engine) matchTier(normalized string, tier UrgencyLevel) []string {
	var matched []string
	for _, rule := range e.table.Lookup(tier) {
		for _, phrase := range rule.Phrases {
			if strings.Contains(normalized, phrase) {
				matched = append(matched, rule.Category)
				break
			}
		}
	}
	return matched
}

// assessPediatric applies the child-specific promotion rules, first match
// wins. A missing or implausible age disables the override; generic
// classification still proceeds.
func assessPediatric(age *int, normalized string) (string, bool) {
	if age == nil || *age < 0 || *age > maxPlausibleAge {
		return "", false
	}
	if *age < infantAgeLimit && hasFeverReadingAtOrAbove(normalized, feverThresholdF) {
		return CategoryInfantFever, true
	}
	if *age < toddlerAgeLimit && containsAny(normalized, pediatricBreathingPhrases) {
		return CategoryPediatricBreathing, true
	}
	return "", false
}

// hasFeverReadingAtOrAbove reports whether the text mentions a fever marker
// together with an explicit temperature reading at or above the threshold.
func hasFeverReadingAtOrAbove(normalized string, threshold float64) bool {
	if !containsAny(normalized, feverMarkers) {
		return false
	}
	for _, reading := range temperatureReading.FindAllString(normalized, -1) {
		if value, err := strconv.ParseFloat(reading, 64); err == nil && value >= threshold {
			return true
		}
	}
	return false
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func (e *Engine) compose(urgency UrgencyLevel, confidence float64, categories []string, countryCode string) Result {
	if categories == nil {
		categories = []string{}
	}
	recommendations, nextSteps := Recommendations(urgency, countryCode)
	return Result{
		Urgency:           urgency,
		MatchedCategories: categories,
		Confidence:        confidence,
		Recommendations:   recommendations,
		NextSteps:         nextSteps,
		IsEmergency:       urgency == LevelEmergency,
	}
}
