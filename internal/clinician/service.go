package clinician

import (
	"context"
	"time"

	"github.com/vyshu-2006/Hack4Health/internal/chat"
	"github.com/vyshu-2006/Hack4Health/internal/triage"
)

// Summary is the per-session row shown on the clinician dashboard.
type Summary struct {
	SessionID    string         `json:"session_id"`
	UserID       string         `json:"user_id"`
	CreatedAt    time.Time      `json:"created_at"`
	Symptoms     string         `json:"symptoms"`
	TriageResult *triage.Result `json:"triage_result"`
	MessageCount int            `json:"message_count"`
	Status       chat.State     `json:"status"`
}

// Export is the machine-readable session hand-off format.
type Export struct {
	SessionID    string         `json:"session_id"`
	UserID       string         `json:"user_id"`
	CreatedAt    time.Time      `json:"created_at"`
	Symptoms     string         `json:"symptoms"`
	TriageResult *triage.Result `json:"triage_result"`
	Conversation []chat.Message `json:"conversation"`
}

// Reporter renders PDF session reports and delivers them to the on-call
// clinician chat.
type Reporter interface {
	SessionPDF(session *chat.Session) ([]byte, error)
	SendSessionReport(ctx context.Context, session *chat.Session) error
}

// Service provides session views and report hand-off for clinician review.
type Service struct {
	repo    chat.Repository
	reports Reporter
}

func NewService(repo chat.Repository, reports Reporter) *Service {
	return &Service{repo: repo, reports: reports}
}

func (s *Service) ListSessions(ctx context.Context) ([]Summary, error) {
	sessions, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, Summary{
			SessionID:    session.ID,
			UserID:       session.UserID,
			CreatedAt:    session.CreatedAt,
			Symptoms:     session.Symptoms(),
			TriageResult: session.LastResult,
			MessageCount: len(session.Messages),
			Status:       session.State,
		})
	}
	return summaries, nil
}

func (s *Service) SessionDetail(ctx context.Context, sessionID string) (*chat.Session, error) {
	return s.repo.GetByID(ctx, sessionID)
}

func (s *Service) ExportSession(ctx context.Context, sessionID string) (*Export, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &Export{
		SessionID:    session.ID,
		UserID:       session.UserID,
		CreatedAt:    session.CreatedAt,
		Symptoms:     session.Symptoms(),
		TriageResult: session.LastResult,
		Conversation: session.Messages,
	}, nil
}

func (s *Service) SessionReportPDF(ctx context.Context, sessionID string) ([]byte, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.reports.SessionPDF(session)
}

// SendSessionReport pushes the session PDF to the clinician Telegram chat.
func (s *Service) SendSessionReport(ctx context.Context, sessionID string) error {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.reports.SendSessionReport(ctx, session)
}
