package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/vyshu-2006/Hack4Health/internal/metrics"
	"github.com/vyshu-2006/Hack4Health/internal/triage"
)

var (
	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("empty message")
	// ErrSessionBusy is returned under the reject busy policy when a session
	// already has an in-flight message.
	ErrSessionBusy = errors.New("session busy")
)

// BusyPolicy controls what happens when a second message arrives for a
// session while one is still being processed.
type BusyPolicy string

const (
	// BusySerialize queues the second message behind the first. This is the
	// default.
	BusySerialize BusyPolicy = "serialize"
	// BusyReject fails the second message with ErrSessionBusy.
	BusyReject BusyPolicy = "reject"
)

// Alerter delivers emergency escalations to clinicians. Failures are logged
// and never block the user-facing response.
type Alerter interface {
	EmergencyAlert(ctx context.Context, s *Session, result triage.Result) error
}

// Reply is the bot's response to one user message.
type Reply struct {
	Messages    []Message `json:"messages"`
	IsEmergency bool      `json:"is_emergency"`
}

type Service interface {
	CreateSession(ctx context.Context, userID string, patientAge *int) (*Session, error)
	ProcessMessage(ctx context.Context, sessionID, text string) (*Reply, error)
	History(ctx context.Context, sessionID string) (*Session, error)
	Reset(ctx context.Context, sessionID string) (*Reply, error)
}

type service struct {
	repo        Repository
	engine      *triage.Engine
	alerter     Alerter
	countryCode string
	busyPolicy  BusyPolicy

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is a per-session mutex with a reference count so the lock map
// can drop entries once no turn holds or waits on them.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(repo Repository, engine *triage.Engine, alerter Alerter, countryCode string, busyPolicy BusyPolicy) Service {
	if countryCode == "" {
		countryCode = triage.DefaultCountryCode
	}
	if busyPolicy != BusyReject {
		busyPolicy = BusySerialize
	}
	return &service{
		repo:        repo,
		engine:      engine,
		alerter:     alerter,
		countryCode: countryCode,
		busyPolicy:  busyPolicy,
		locks:       make(map[string]*sessionLock),
	}
}

// lockSession acquires the per-session mutex according to the busy policy.
// The state machine assumes exclusive ownership of the session during a
// transition. Entries are removed from the lock map as soon as the last
// holder or waiter releases them, so idle sessions cost no memory.
func (s *service) lockSession(id string) (unlock func(), err error) {
	s.mu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sessionLock{}
		s.locks[id] = lock
	}
	lock.refs++
	s.mu.Unlock()

	if s.busyPolicy == BusyReject {
		if !lock.mu.TryLock() {
			s.releaseLock(id, lock)
			return nil, ErrSessionBusy
		}
	} else {
		lock.mu.Lock()
	}
	return func() {
		lock.mu.Unlock()
		s.releaseLock(id, lock)
	}, nil
}

func (s *service) releaseLock(id string, lock *sessionLock) {
	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, id)
	}
	s.mu.Unlock()
}

func (s *service) CreateSession(ctx context.Context, userID string, patientAge *int) (*Session, error) {
	session := NewSession(userID)
	session.PatientAge = patientAge

	for _, text := range s.greetingMessages() {
		session.AddBotMessage(text, MessageTypeText)
	}

	if err := s.repo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	metrics.RecordSessionCreated()
	return session, nil
}

func (s *service) History(ctx context.Context, sessionID string) (*Session, error) {
	return s.repo.GetByID(ctx, sessionID)
}

// ProcessMessage appends the user message to the transcript, runs the
// conversation state machine and returns the bot messages produced this turn.
func (s *service) ProcessMessage(ctx context.Context, sessionID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	unlock, err := s.lockSession(sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// The user message lands in the transcript before any transition logic
	// runs.
	session.AddUserMessage(text)
	before := len(session.Messages)

	switch session.State {
	case StateGreeting:
		session.State = StateCollectingSymptoms
		s.collectSymptoms(session, text)
	case StateCollectingSymptoms, StateAwaitingClarification:
		s.collectSymptoms(session, text)
	case StateFollowUp:
		s.handleFollowUp(session, text)
	default:
		session.AddBotMessage("I understand. Is there anything else you'd like to discuss about your health?", MessageTypeText)
	}

	reply := &Reply{Messages: append([]Message(nil), session.Messages[before:]...)}
	if session.LastResult != nil {
		reply.IsEmergency = session.LastResult.IsEmergency
	}

	if err := s.repo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return reply, nil
}

// Reset returns the session to the greeting state for a fresh conversation.
// The transcript is kept; accumulated symptoms and the last classification
// are cleared.
func (s *service) Reset(ctx context.Context, sessionID string) (*Reply, error) {
	unlock, err := s.lockSession(sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session.State = StateGreeting
	session.SymptomText = ""
	session.LastResult = nil

	before := len(session.Messages)
	for _, text := range s.greetingMessages() {
		session.AddBotMessage(text, MessageTypeText)
	}

	if err := s.repo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return &Reply{Messages: append([]Message(nil), session.Messages[before:]...)}, nil
}

// collectSymptoms accumulates symptom text and, once enough information is
// present, runs classification and presents the result.
func (s *service) collectSymptoms(session *Session, text string) {
	session.SymptomText = strings.TrimSpace(session.SymptomText + " " + text)

	if utf8.RuneCountInString(triage.Normalize(session.SymptomText)) < triage.MinSymptomLength {
		session.State = StateAwaitingClarification
		session.AddBotMessage("Could you describe your symptoms in a bit more detail? For example, where it hurts, how long it has lasted, and how severe it feels.", MessageTypeText)
		return
	}

	s.classifyAndPresent(session)
}

func (s *service) classifyAndPresent(session *Session) {
	session.State = StateClassifying
	result := s.engine.Classify(session.SymptomText, session.PatientAge, s.countryCode)
	session.LastResult = &result
	metrics.RecordClassification(string(result.Urgency))

	session.State = StatePresentingResult
	session.AddBotMessage("Thank you for sharing your symptoms. Let me assess this information.", MessageTypeText)

	if result.IsEmergency {
		s.presentEmergency(session, result)
	} else {
		s.presentAssessment(session, result)
	}

	session.AddBotMessage(triage.HelpfulResources(result.Urgency, s.countryCode), MessageTypeText)
	session.State = StateFollowUp
	session.AddBotMessage("Do you have any questions about this assessment, or would you like to discuss any other symptoms?", MessageTypeText)

	if result.IsEmergency && s.alerter != nil {
		if err := s.alerter.EmergencyAlert(context.Background(), session, result); err != nil {
			log.Printf("emergency alert for session %s failed: %v", session.ID, err)
		} else {
			metrics.RecordEmergencyAlert()
		}
	}
}

func (s *service) presentEmergency(session *Session, result triage.Result) {
	number := triage.EmergencyNumber(s.countryCode)
	session.AddBotMessage("🚨 MEDICAL EMERGENCY DETECTED 🚨", MessageTypeEmergency)
	session.AddBotMessage("Your symptoms indicate a potential medical emergency.", MessageTypeEmergency)
	session.AddBotMessage(fmt.Sprintf("Please call emergency services immediately (%s) or go to the nearest emergency room.", number), MessageTypeEmergency)
	session.AddBotMessage("Do not delay seeking immediate medical attention.", MessageTypeEmergency)
	session.AddBotMessage(fmt.Sprintf("Emergency services: %s", number), MessageTypeEmergency)
}

func (s *service) presentAssessment(session *Session, result triage.Result) {
	session.AddBotMessage(fmt.Sprintf("Urgency Level: %s", displayName(result.Urgency)), MessageTypeAssessment)

	session.AddBotMessage("Recommendations:", MessageTypeAssessment)
	for _, rec := range result.Recommendations {
		session.AddBotMessage("• "+rec, MessageTypeAssessment)
	}

	session.AddBotMessage("Suggested next steps:", MessageTypeAssessment)
	for _, step := range result.NextSteps {
		session.AddBotMessage("• "+step, MessageTypeAssessment)
	}
}

var followUpSymptomKeywords = []string{
	"pain", "ache", "hurt", "fever", "cough", "nausea", "dizzy", "tired",
	"bleeding", "rash", "symptom",
}

var followUpQuestionWords = []string{"why", "how", "what", "when", "should i", "can i"}

var followUpGoodbyeWords = []string{"thank", "bye", "goodbye", "no more", "that's all"}

// handleFollowUp answers questions about the assessment, says goodbye, or
// treats new symptom mentions as a fresh report that replaces the previous
// classification.
func (s *service) handleFollowUp(session *Session, text string) {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, followUpSymptomKeywords):
		session.State = StateCollectingSymptoms
		session.SymptomText = text
		s.collectSymptoms(session, "")
	case containsAny(lower, followUpQuestionWords):
		session.AddBotMessage("Based on the symptoms you described, my assessment considers several factors including severity, duration, and potential red flags for emergency conditions.", MessageTypeText)
		if session.LastResult != nil {
			switch session.LastResult.Urgency {
			case triage.LevelEmergency:
				session.AddBotMessage("Your symptoms matched emergency warning signs that require immediate medical attention for your safety.", MessageTypeText)
			case triage.LevelUrgent:
				session.AddBotMessage("Your symptoms suggest a condition that should be evaluated promptly to prevent complications.", MessageTypeText)
			default:
				session.AddBotMessage("Your symptoms appear to be manageable with appropriate care and monitoring.", MessageTypeText)
			}
		}
	case containsAny(lower, followUpGoodbyeWords):
		session.AddBotMessage("You're welcome! Remember to seek medical attention if your symptoms worsen or you develop new concerning symptoms.", MessageTypeText)
		session.AddBotMessage("Take care, and don't hesitate to use this service again if needed. Stay safe!", MessageTypeText)
	default:
		session.AddBotMessage("I understand your concern. If you have specific questions about your symptoms or the recommendations, please feel free to ask.", MessageTypeText)
		session.AddBotMessage("You can also describe any new or additional symptoms you might be experiencing.", MessageTypeText)
	}
}

func (s *service) greetingMessages() []string {
	number := triage.EmergencyNumber(s.countryCode)
	return []string{
		"Hello! I'm your healthcare triage assistant. I'm here to help assess your symptoms and guide you to appropriate care.",
		"Please describe your symptoms or health concerns in your own words. For example: 'I have a headache and feel tired' or 'My child has fever and cough'.",
		fmt.Sprintf("Important: If this is a life-threatening emergency, please call emergency services (%s) immediately.", number),
	}
}

func displayName(urgency triage.UrgencyLevel) string {
	switch urgency {
	case triage.LevelEmergency:
		return "Emergency"
	case triage.LevelUrgent:
		return "Urgent"
	case triage.LevelOutpatient:
		return "Outpatient"
	default:
		return "Self-Care"
	}
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
