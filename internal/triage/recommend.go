package triage

import "fmt"

// DefaultCountryCode is used when the caller supplies no or an unknown
// country code.
const DefaultCountryCode = "US"

var emergencyNumbers = map[string]string{
	"US": "911",
	"IN": "108",
	"UK": "999",
	"EU": "112",
}

// EmergencyNumber returns the emergency phone number for a country code,
// falling back to the US number for unknown codes.
func EmergencyNumber(countryCode string) string {
	if number, ok := emergencyNumbers[countryCode]; ok {
		return number
	}
	return emergencyNumbers[DefaultCountryCode]
}

// Recommendations maps an urgency tier to human-readable guidance and next
// steps, injecting the region-specific emergency number. Every tier has a
// non-empty template; the function is pure and total.
func Recommendations(urgency UrgencyLevel, countryCode string) (recommendations, nextSteps []string) {
	number := EmergencyNumber(countryCode)

	switch urgency {
	case LevelEmergency:
		recommendations = []string{
			"This may be a medical emergency",
			"Do not delay seeking immediate medical attention",
			"Do not drive yourself - call for emergency transport if needed",
		}
		nextSteps = []string{
			fmt.Sprintf("Call emergency services immediately (%s)", number),
			"Go to the nearest emergency room",
			"Contact emergency contacts or family members",
		}
	case LevelUrgent:
		recommendations = []string{
			"Your symptoms require prompt medical attention",
			"Seek care within the next 24 hours",
			"Monitor symptoms closely for any worsening",
		}
		nextSteps = []string{
			"Contact your primary care doctor",
			"Visit an urgent care clinic",
			"Consider telemedicine consultation",
			"Go to ER if symptoms worsen",
		}
	case LevelOutpatient:
		recommendations = []string{
			"Your symptoms should be evaluated by a healthcare provider",
			"Schedule an appointment within the next few days",
			"Monitor symptoms and note any changes",
		}
		nextSteps = []string{
			"Schedule telemedicine consultation",
			"Book appointment with primary care doctor",
			"Visit local clinic",
			"Try home remedies while waiting for appointment",
		}
	default:
		recommendations = []string{
			"Your symptoms appear mild and may be managed at home",
			"Continue monitoring your symptoms",
			"Seek medical attention if symptoms worsen or persist",
		}
		nextSteps = []string{
			"Rest and stay hydrated",
			"Use over-the-counter remedies as appropriate",
			"Monitor symptoms for 24-48 hours",
			"Contact healthcare provider if no improvement",
		}
	}

	return recommendations, nextSteps
}

// HelpfulResources returns the supplemental resource line shown after an
// assessment.
func HelpfulResources(urgency UrgencyLevel, countryCode string) string {
	switch urgency {
	case LevelEmergency:
		return fmt.Sprintf("Emergency contacts: Call %s immediately.", EmergencyNumber(countryCode))
	case LevelUrgent:
		return "Find urgent care centers: Use Google Maps to search \"urgent care near me\" or contact your doctor's office."
	case LevelOutpatient:
		return "Telemedicine options: Many healthcare providers offer video consultations. Contact your insurance provider for covered options."
	default:
		return "Health information: Reliable sources include CDC.gov, Mayo Clinic, or your healthcare provider's patient portal."
	}
}
