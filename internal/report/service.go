package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"

	"github.com/vyshu-2006/Hack4Health/internal/chat"
	"github.com/vyshu-2006/Hack4Health/internal/triage"
)

// fontPaths are the known DejaVu install locations, tried in order.
var fontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

// Service escalates emergencies to the on-call clinician chat and renders
// PDF session reports for clinician review.
type Service struct {
	tgClient        TelegramClient
	clinicianChatID int64
}

func NewService(tg TelegramClient, clinicianChatID int64) *Service {
	return &Service{
		tgClient:        tg,
		clinicianChatID: clinicianChatID,
	}
}

// EmergencyAlert notifies the clinician chat about an emergency
// classification.
func (s *Service) EmergencyAlert(ctx context.Context, session *chat.Session, result triage.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "EMERGENCY triage alert\n\n")
	fmt.Fprintf(&b, "Session: %s\n", session.ID)
	fmt.Fprintf(&b, "Patient: %s\n", session.UserID)
	if session.PatientAge != nil {
		fmt.Fprintf(&b, "Age: %d\n", *session.PatientAge)
	}
	fmt.Fprintf(&b, "Reported: %s\n", session.Symptoms())
	if len(result.MatchedCategories) > 0 {
		fmt.Fprintf(&b, "Red flags: %s\n", strings.Join(result.MatchedCategories, ", "))
	}
	fmt.Fprintf(&b, "Confidence: %.1f\n", result.Confidence)

	return s.tgClient.SendMessage(ctx, s.clinicianChatID, b.String())
}

// SendSessionReport renders the session PDF and delivers it to the clinician
// chat.
func (s *Service) SendSessionReport(ctx context.Context, session *chat.Session) error {
	data, err := s.SessionPDF(session)
	if err != nil {
		return err
	}
	fileName := fmt.Sprintf("triage_%s.pdf", session.ID)
	return s.tgClient.SendDocument(ctx, s.clinicianChatID, data, fileName)
}

// SessionPDF renders a clinician-facing report: patient info, symptom
// summary, triage outcome and full transcript.
func (s *Service) SessionPDF(session *chat.Session) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF, ensure ttf-dejavu is installed: %w", fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 18); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Symptom Triage Report")
	pdf.Br(28)

	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Generated: %s", time.Now().Format("02.01.2006 15:04")))
	pdf.Br(14)
	pdf.Cell(nil, fmt.Sprintf("Session: %s", session.ID))
	pdf.Br(14)
	pdf.Cell(nil, fmt.Sprintf("Patient: %s", session.UserID))
	pdf.Br(14)
	if session.PatientAge != nil {
		pdf.Cell(nil, fmt.Sprintf("Age: %d", *session.PatientAge))
		pdf.Br(14)
	}
	pdf.Br(8)

	if err := writeSection(&pdf, "Reported symptoms", []string{session.Symptoms()}); err != nil {
		return nil, err
	}

	if result := session.LastResult; result != nil {
		lines := []string{
			fmt.Sprintf("Urgency: %s (confidence %.1f)", result.Urgency, result.Confidence),
		}
		if len(result.MatchedCategories) > 0 {
			lines = append(lines, "Matched categories: "+strings.Join(result.MatchedCategories, ", "))
		}
		for _, rec := range result.Recommendations {
			lines = append(lines, "- "+rec)
		}
		for _, step := range result.NextSteps {
			lines = append(lines, "- "+step)
		}
		if err := writeSection(&pdf, "Triage assessment", lines); err != nil {
			return nil, err
		}
	} else {
		if err := writeSection(&pdf, "Triage assessment", []string{"No classification performed yet."}); err != nil {
			return nil, err
		}
	}

	var transcript []string
	for _, msg := range session.Messages {
		transcript = append(transcript, fmt.Sprintf("[%s] %s: %s",
			msg.Timestamp.Format("15:04:05"), msg.Sender, msg.Text))
	}
	if err := writeSection(&pdf, "Conversation", transcript); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSection(pdf *gopdf.GoPdf, title string, lines []string) error {
	if err := pdf.SetFont("DejaVu", "", 13); err != nil {
		return err
	}
	pdf.Cell(nil, title+":")
	pdf.Br(16)

	if err := pdf.SetFont("DejaVu", "", 10); err != nil {
		return err
	}
	for _, line := range lines {
		if line == "" {
			continue
		}
		wrapped, _ := pdf.SplitText(line, 500)
		for _, w := range wrapped {
			pdf.Cell(nil, w)
			pdf.Br(12)
		}
	}
	pdf.Br(10)
	return nil
}
