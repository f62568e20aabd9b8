package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vyshu-2006/Hack4Health/internal/triage"
)

// Sender identifies who authored a transcript entry.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// MessageType tags transcript entries so presentation layers can handle them
// exhaustively.
type MessageType string

const (
	MessageTypeText       MessageType = "text"
	MessageTypeAssessment MessageType = "assessment"
	MessageTypeEmergency  MessageType = "emergency"
)

// State is the conversation state of a session.
type State string

const (
	StateGreeting              State = "greeting"
	StateCollectingSymptoms    State = "collecting_symptoms"
	StateAwaitingClarification State = "awaiting_clarification"
	StateClassifying           State = "classifying"
	StatePresentingResult      State = "presenting_result"
	StateFollowUp              State = "follow_up"
)

// Message is one transcript entry.
type Message struct {
	ID        string      `json:"id"`
	Sender    Sender      `json:"sender"`
	Text      string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"message_type"`
}

// Session holds one conversation: its transcript, conversation state and the
// most recent classification. It is mutated only by the chat service, which
// serializes access per session; transcript order is the single source of
// truth for replay and export.
type Session struct {
	ID          string         `json:"session_id"`
	UserID      string         `json:"user_id"`
	CreatedAt   time.Time      `json:"created_at"`
	Messages    []Message      `json:"messages"`
	State       State          `json:"current_state"`
	SymptomText string         `json:"symptom_text"`
	LastResult  *triage.Result `json:"triage_result,omitempty"`
	PatientAge  *int           `json:"patient_age,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewSession creates a session in the greeting state.
func NewSession(userID string) *Session {
	id := uuid.New().String()
	if userID == "" {
		userID = "user_" + id[:8]
	}
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
		State:     StateGreeting,
	}
}

func (s *Session) appendMessage(sender Sender, text string, msgType MessageType) Message {
	msg := Message{
		ID:        uuid.New().String(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UTC(),
		Type:      msgType,
	}
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = msg.Timestamp
	return msg
}

// AddUserMessage appends a user entry to the transcript.
func (s *Session) AddUserMessage(text string) Message {
	return s.appendMessage(SenderUser, text, MessageTypeText)
}

// AddBotMessage appends a bot entry to the transcript.
func (s *Session) AddBotMessage(text string, msgType MessageType) Message {
	return s.appendMessage(SenderBot, text, msgType)
}

// Symptoms joins every user message into one free-text symptom summary for
// clinician review and export.
func (s *Session) Symptoms() string {
	var parts []string
	for _, msg := range s.Messages {
		if msg.Sender == SenderUser {
			parts = append(parts, msg.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Clone returns a deep copy so stored sessions never alias caller-held state.
func (s *Session) Clone() *Session {
	copied := *s
	copied.Messages = append([]Message(nil), s.Messages...)
	if s.LastResult != nil {
		result := *s.LastResult
		result.MatchedCategories = append([]string(nil), s.LastResult.MatchedCategories...)
		result.Recommendations = append([]string(nil), s.LastResult.Recommendations...)
		result.NextSteps = append([]string(nil), s.LastResult.NextSteps...)
		copied.LastResult = &result
	}
	if s.PatientAge != nil {
		age := *s.PatientAge
		copied.PatientAge = &age
	}
	return &copied
}
