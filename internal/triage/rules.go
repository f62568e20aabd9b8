package triage

import "fmt"

// UrgencyLevel is the care tier assigned to a symptom report, ordered by
// descending severity.
type UrgencyLevel string

const (
	LevelEmergency  UrgencyLevel = "emergency"
	LevelUrgent     UrgencyLevel = "urgent"
	LevelOutpatient UrgencyLevel = "outpatient"
	LevelSelfCare   UrgencyLevel = "self-care"
)

// Severity returns a comparable rank; higher means more severe.
func (u UrgencyLevel) Severity() int {
	switch u {
	case LevelEmergency:
		return 4
	case LevelUrgent:
		return 3
	case LevelOutpatient:
		return 2
	case LevelSelfCare:
		return 1
	}
	return 0
}

// Fixed per-tier confidence values. These are deliberately constants rather
// than scores derived from match counts: the engine signals categorical trust
// in the safety ordering, not statistical certainty per match.
const (
	confidenceEmergency  = 0.9
	confidenceUrgent     = 0.8
	confidenceOutpatient = 0.7
	confidenceSelfCare   = 0.6
)

func confidenceForTier(tier UrgencyLevel) float64 {
	switch tier {
	case LevelEmergency:
		return confidenceEmergency
	case LevelUrgent:
		return confidenceUrgent
	case LevelOutpatient:
		return confidenceOutpatient
	default:
		return confidenceSelfCare
	}
}

// TriggerRule maps a named symptom category to the lowercase phrases that
// trigger it and the tier it belongs to.
type TriggerRule struct {
	Category       string
	Phrases        []string
	Tier           UrgencyLevel
	BaseConfidence float64
}

// RuleTable is the immutable set of trigger rules the engine matches against.
// It is built once at startup and shared by all sessions; concurrent readers
// need no locking.
type RuleTable struct {
	rules  []TriggerRule
	byTier map[UrgencyLevel][]TriggerRule
}

// NewRuleTable validates rules and builds the lookup table. Each category must
// be registered in exactly one tier; a duplicate makes startup fail rather
// than silently changing priority-order semantics at classification time.
func NewRuleTable(rules []TriggerRule) (*RuleTable, error) {
	seen := make(map[string]UrgencyLevel, len(rules))
	byTier := make(map[UrgencyLevel][]TriggerRule)

	for _, rule := range rules {
		if rule.Category == "" {
			return nil, fmt.Errorf("trigger rule with empty category")
		}
		if len(rule.Phrases) == 0 {
			return nil, fmt.Errorf("category %q has no trigger phrases", rule.Category)
		}
		if rule.Tier.Severity() == 0 {
			return nil, fmt.Errorf("category %q has unknown tier %q", rule.Category, rule.Tier)
		}
		if rule.BaseConfidence < 0 || rule.BaseConfidence > 1 {
			return nil, fmt.Errorf("category %q has confidence %v outside [0,1]", rule.Category, rule.BaseConfidence)
		}
		if tier, dup := seen[rule.Category]; dup {
			return nil, fmt.Errorf("category %q registered in both %q and %q tiers", rule.Category, tier, rule.Tier)
		}
		seen[rule.Category] = rule.Tier
		byTier[rule.Tier] = append(byTier[rule.Tier], rule)
	}

	return &RuleTable{rules: rules, byTier: byTier}, nil
}

// Lookup returns the rules of a tier in table-definition order.
func (t *RuleTable) Lookup(tier UrgencyLevel) []TriggerRule {
	return t.byTier[tier]
}

// DefaultRules returns the built-in trigger rule set.
func DefaultRules() []TriggerRule {
	return []TriggerRule{
		// Emergency red flags: presence alone mandates an emergency response.
		{
			Category: "chest_pain",
			Tier:     LevelEmergency, BaseConfidence: confidenceEmergency,
			Phrases: []string{
				"chest pain", "chest tightness", "crushing chest pain",
				"squeezing chest", "pressure in chest",
			},
		},
		{
			Category: "breathing",
			Tier:     LevelEmergency, BaseConfidence: confidenceEmergency,
			Phrases: []string{
				"difficulty breathing", "shortness of breath", "can't breathe",
				"gasping for air", "wheezing severely",
			},
		},
		{
			Category: "neurological",
			Tier:     LevelEmergency, BaseConfidence: confidenceEmergency,
			Phrases: []string{
				"sudden weakness", "facial drooping", "slurred speech",
				"severe headache", "confusion", "loss of consciousness",
				"seizure", "stroke symptoms",
			},
		},
		{
			Category: "bleeding",
			Tier:     LevelEmergency, BaseConfidence: confidenceEmergency,
			Phrases: []string{
				"severe bleeding", "uncontrolled bleeding", "heavy bleeding",
				"bleeding that won't stop",
			},
		},
		{
			Category: "trauma",
			Tier:     LevelEmergency, BaseConfidence: confidenceEmergency,
			Phrases: []string{
				"head injury", "severe injury", "broken bone visible",
				"deep cut", "severe burn",
			},
		},
		{
			Category: "allergic",
			Tier:     LevelEmergency, BaseConfidence: confidenceEmergency,
			Phrases: []string{
				"severe allergic reaction", "anaphylaxis", "swollen throat",
				"difficulty swallowing due to swelling",
			},
		},
		{
			Category: "pediatric_emergency",
			Tier:     LevelEmergency, BaseConfidence: confidenceEmergency,
			Phrases: []string{
				"infant fever over 100.4", "baby not responding",
				"child difficulty breathing", "severe dehydration in child",
			},
		},

		// Urgent: clinic visit within 24 hours.
		{
			Category: "infection",
			Tier:     LevelUrgent, BaseConfidence: confidenceUrgent,
			Phrases: []string{
				"high fever", "fever over 101", "fever for more than 3 days",
				"severe sore throat", "difficulty swallowing",
			},
		},
		{
			Category: "pain",
			Tier:     LevelUrgent, BaseConfidence: confidenceUrgent,
			Phrases: []string{
				"severe abdominal pain", "intense pain", "unbearable pain",
				"sudden severe pain",
			},
		},
		{
			Category: "respiratory",
			Tier:     LevelUrgent, BaseConfidence: confidenceUrgent,
			Phrases: []string{
				"persistent cough with fever", "coughing up blood",
				"chest congestion with fever",
			},
		},
		{
			Category: "pediatric_urgent",
			Tier:     LevelUrgent, BaseConfidence: confidenceUrgent,
			Phrases: []string{
				"child fever over 102", "child vomiting repeatedly",
				"child severe cough", "child rash with fever",
			},
		},

		// Outpatient: telemedicine or clinic visit within days.
		{
			Category: "mild_infection",
			Tier:     LevelOutpatient, BaseConfidence: confidenceOutpatient,
			Phrases: []string{
				"sore throat", "mild fever", "runny nose", "congestion",
				"cough without fever", "ear pain",
			},
		},
		{
			Category: "digestive",
			Tier:     LevelOutpatient, BaseConfidence: confidenceOutpatient,
			Phrases: []string{
				"nausea", "mild stomach pain", "indigestion", "heartburn",
			},
		},
		{
			Category: "skin",
			Tier:     LevelOutpatient, BaseConfidence: confidenceOutpatient,
			Phrases: []string{
				"rash", "itchy skin", "minor cut", "bruise",
			},
		},
		{
			Category: "musculoskeletal",
			Tier:     LevelOutpatient, BaseConfidence: confidenceOutpatient,
			Phrases: []string{
				"muscle ache", "joint pain", "back pain", "strain",
			},
		},

		// Self-care.
		{
			Category: "minor",
			Tier:     LevelSelfCare, BaseConfidence: confidenceSelfCare,
			Phrases: []string{
				"mild headache", "fatigue", "tired", "stress",
				"minor ache", "slight discomfort",
			},
		},
	}
}

// DefaultRuleTable builds the built-in table. It panics on an invalid default
// rule set, which is a programming error caught at process start.
func DefaultRuleTable() *RuleTable {
	table, err := NewRuleTable(DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("invalid default rule table: %v", err))
	}
	return table
}
