package triage

import (
	"reflect"
	"testing"
)

func TestNewRuleTableValidation(t *testing.T) {
	valid := TriggerRule{
		Category: "chest_pain",
		Phrases:  []string{"chest pain"},
		Tier:     LevelEmergency, BaseConfidence: 0.9,
	}

	tests := []struct {
		name    string
		rules   []TriggerRule
		wantErr bool
	}{
		{
			name:  "valid single rule",
			rules: []TriggerRule{valid},
		},
		{
			name: "category in two tiers rejected",
			rules: []TriggerRule{
				valid,
				{Category: "chest_pain", Phrases: []string{"chest ache"}, Tier: LevelUrgent, BaseConfidence: 0.8},
			},
			wantErr: true,
		},
		{
			name:    "empty category rejected",
			rules:   []TriggerRule{{Phrases: []string{"x"}, Tier: LevelUrgent, BaseConfidence: 0.8}},
			wantErr: true,
		},
		{
			name:    "no phrases rejected",
			rules:   []TriggerRule{{Category: "pain", Tier: LevelUrgent, BaseConfidence: 0.8}},
			wantErr: true,
		},
		{
			name:    "unknown tier rejected",
			rules:   []TriggerRule{{Category: "pain", Phrases: []string{"x"}, Tier: UrgencyLevel("critical"), BaseConfidence: 0.8}},
			wantErr: true,
		},
		{
			name:    "confidence above one rejected",
			rules:   []TriggerRule{{Category: "pain", Phrases: []string{"x"}, Tier: LevelUrgent, BaseConfidence: 1.5}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleTable(tt.rules)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRuleTable error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultRulesAreValid(t *testing.T) {
	if _, err := NewRuleTable(DefaultRules()); err != nil {
		t.Fatalf("default rules failed validation: %v", err)
	}
}

func TestLookupPreservesTableOrder(t *testing.T) {
	table := DefaultRuleTable()

	var categories []string
	for _, rule := range table.Lookup(LevelEmergency) {
		categories = append(categories, rule.Category)
	}

	want := []string{
		"chest_pain", "breathing", "neurological", "bleeding",
		"trauma", "allergic", "pediatric_emergency",
	}
	if !reflect.DeepEqual(categories, want) {
		t.Errorf("emergency categories = %v, want %v", categories, want)
	}
}

func TestLookupUnknownTierIsEmpty(t *testing.T) {
	table := DefaultRuleTable()
	if rules := table.Lookup(UrgencyLevel("nope")); len(rules) != 0 {
		t.Errorf("expected no rules for unknown tier, got %d", len(rules))
	}
}

func TestSeverityOrdering(t *testing.T) {
	levels := []UrgencyLevel{LevelSelfCare, LevelOutpatient, LevelUrgent, LevelEmergency}
	for i := 1; i < len(levels); i++ {
		if levels[i].Severity() <= levels[i-1].Severity() {
			t.Errorf("%s should rank above %s", levels[i], levels[i-1])
		}
	}
}
