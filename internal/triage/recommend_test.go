package triage

import (
	"strings"
	"testing"
)

func TestRecommendationsNeverEmpty(t *testing.T) {
	levels := []UrgencyLevel{LevelEmergency, LevelUrgent, LevelOutpatient, LevelSelfCare}
	for _, level := range levels {
		recommendations, nextSteps := Recommendations(level, "US")
		if len(recommendations) == 0 {
			t.Errorf("%s: empty recommendations", level)
		}
		if len(nextSteps) == 0 {
			t.Errorf("%s: empty next steps", level)
		}
	}
}

func TestEmergencyNumber(t *testing.T) {
	tests := []struct {
		countryCode string
		want        string
	}{
		{"US", "911"},
		{"IN", "108"},
		{"UK", "999"},
		{"EU", "112"},
		{"ZZ", "911"},
		{"", "911"},
	}
	for _, tt := range tests {
		if got := EmergencyNumber(tt.countryCode); got != tt.want {
			t.Errorf("EmergencyNumber(%q) = %s, want %s", tt.countryCode, got, tt.want)
		}
	}
}

func TestEmergencyNumberInjectedIntoNextSteps(t *testing.T) {
	_, nextSteps := Recommendations(LevelEmergency, "IN")
	if !strings.Contains(nextSteps[0], "108") {
		t.Errorf("next steps %v should carry the IN emergency number", nextSteps)
	}

	// Unknown codes fall back to the US number.
	_, nextSteps = Recommendations(LevelEmergency, "ZZ")
	if !strings.Contains(nextSteps[0], "911") {
		t.Errorf("next steps %v should fall back to 911", nextSteps)
	}
}

func TestHelpfulResourcesCoversAllTiers(t *testing.T) {
	levels := []UrgencyLevel{LevelEmergency, LevelUrgent, LevelOutpatient, LevelSelfCare}
	seen := make(map[string]bool)
	for _, level := range levels {
		text := HelpfulResources(level, "US")
		if text == "" {
			t.Errorf("%s: empty resources line", level)
		}
		if seen[text] {
			t.Errorf("%s: resources line duplicates another tier", level)
		}
		seen[text] = true
	}
}
