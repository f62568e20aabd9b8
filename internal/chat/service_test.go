package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/vyshu-2006/Hack4Health/internal/triage"
)

type fakeAlerter struct {
	mu    sync.Mutex
	calls int
	last  triage.Result
	err   error
}

func (f *fakeAlerter) EmergencyAlert(_ context.Context, _ *Session, result triage.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = result
	return f.err
}

func intPtr(i int) *int { return &i }

func newTestService(t *testing.T, alerter Alerter, policy BusyPolicy) (Service, Repository) {
	t.Helper()
	repo := NewMemoryRepository()
	engine := triage.NewEngine(triage.DefaultRuleTable())
	return NewService(repo, engine, alerter, "US", policy), repo
}

func TestCreateSessionGreets(t *testing.T) {
	svc, _ := newTestService(t, nil, BusySerialize)

	session, err := svc.CreateSession(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if session.State != StateGreeting {
		t.Errorf("state = %s, want %s", session.State, StateGreeting)
	}
	if len(session.Messages) != 3 {
		t.Fatalf("expected 3 greeting messages, got %d", len(session.Messages))
	}
	for _, msg := range session.Messages {
		if msg.Sender != SenderBot {
			t.Errorf("greeting sender = %s, want bot", msg.Sender)
		}
	}
	if session.UserID == "" {
		t.Error("expected a generated user id")
	}
	if session.LastResult != nil {
		t.Error("new session must not carry a classification")
	}
}

func TestProcessMessageRunsTriage(t *testing.T) {
	svc, repo := newTestService(t, nil, BusySerialize)
	session, _ := svc.CreateSession(context.Background(), "patient-1", nil)

	reply, err := svc.ProcessMessage(context.Background(), session.ID, "I have a mild headache and slight fatigue")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if reply.IsEmergency {
		t.Error("mild symptoms flagged as emergency")
	}
	if len(reply.Messages) == 0 {
		t.Fatal("expected bot responses")
	}

	stored, err := repo.GetByID(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.State != StateFollowUp {
		t.Errorf("state = %s, want %s", stored.State, StateFollowUp)
	}
	if stored.LastResult == nil {
		t.Fatal("expected a stored classification")
	}
	if stored.LastResult.Urgency != triage.LevelSelfCare {
		t.Errorf("urgency = %s, want %s", stored.LastResult.Urgency, triage.LevelSelfCare)
	}

	var sawUrgencyLine bool
	for _, msg := range reply.Messages {
		if msg.Type == MessageTypeAssessment && strings.Contains(msg.Text, "Urgency Level: Self-Care") {
			sawUrgencyLine = true
		}
	}
	if !sawUrgencyLine {
		t.Error("assessment messages missing the urgency line")
	}
}

func TestProcessMessageEmergencyAlerts(t *testing.T) {
	alerter := &fakeAlerter{}
	svc, _ := newTestService(t, alerter, BusySerialize)
	session, _ := svc.CreateSession(context.Background(), "patient-2", nil)

	reply, err := svc.ProcessMessage(context.Background(), session.ID, "I have severe chest pain and difficulty breathing")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if !reply.IsEmergency {
		t.Fatal("expected is_emergency to be set")
	}
	var emergencyMessages int
	for _, msg := range reply.Messages {
		if msg.Type == MessageTypeEmergency {
			emergencyMessages++
		}
	}
	if emergencyMessages == 0 {
		t.Error("expected emergency-tagged messages in the reply")
	}

	if alerter.calls != 1 {
		t.Fatalf("alerter called %d times, want 1", alerter.calls)
	}
	if alerter.last.Urgency != triage.LevelEmergency {
		t.Errorf("alert urgency = %s, want emergency", alerter.last.Urgency)
	}
}

func TestAlerterFailureDoesNotFailTheTurn(t *testing.T) {
	alerter := &fakeAlerter{err: errors.New("telegram down")}
	svc, _ := newTestService(t, alerter, BusySerialize)
	session, _ := svc.CreateSession(context.Background(), "", nil)

	reply, err := svc.ProcessMessage(context.Background(), session.ID, "severe bleeding that won't stop")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !reply.IsEmergency {
		t.Error("expected emergency reply despite alert failure")
	}
}

func TestShortInputAsksForClarification(t *testing.T) {
	svc, repo := newTestService(t, nil, BusySerialize)
	session, _ := svc.CreateSession(context.Background(), "", nil)

	reply, err := svc.ProcessMessage(context.Background(), session.ID, "hi")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if reply.IsEmergency {
		t.Error("clarification turn flagged as emergency")
	}

	stored, _ := repo.GetByID(context.Background(), session.ID)
	if stored.State != StateAwaitingClarification {
		t.Errorf("state = %s, want %s", stored.State, StateAwaitingClarification)
	}
	if stored.LastResult != nil {
		t.Error("no classification should run on insufficient input")
	}

	// The follow-up detail accumulates with the earlier fragment and is
	// classified as one report.
	if _, err := svc.ProcessMessage(context.Background(), session.ID, "it is a mild headache"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	stored, _ = repo.GetByID(context.Background(), session.ID)
	if stored.State != StateFollowUp {
		t.Errorf("state = %s, want %s", stored.State, StateFollowUp)
	}
	if stored.LastResult == nil || stored.LastResult.Urgency != triage.LevelSelfCare {
		t.Errorf("stored result = %+v, want self-care", stored.LastResult)
	}
}

func TestFollowUpNewSymptomsReplaceClassification(t *testing.T) {
	svc, repo := newTestService(t, nil, BusySerialize)
	session, _ := svc.CreateSession(context.Background(), "", nil)

	if _, err := svc.ProcessMessage(context.Background(), session.ID, "I have a mild headache"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	reply, err := svc.ProcessMessage(context.Background(), session.ID, "now I feel crushing chest pain")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !reply.IsEmergency {
		t.Fatal("re-classification should escalate to emergency")
	}

	stored, _ := repo.GetByID(context.Background(), session.ID)
	if stored.LastResult.Urgency != triage.LevelEmergency {
		t.Errorf("urgency = %s, want emergency", stored.LastResult.Urgency)
	}
}

func TestFollowUpQuestionExplainsAssessment(t *testing.T) {
	svc, _ := newTestService(t, nil, BusySerialize)
	session, _ := svc.CreateSession(context.Background(), "", nil)

	if _, err := svc.ProcessMessage(context.Background(), session.ID, "I have a mild headache"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	reply, err := svc.ProcessMessage(context.Background(), session.ID, "should i be worried about this")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	var sawExplanation bool
	for _, msg := range reply.Messages {
		if strings.Contains(msg.Text, "manageable with appropriate care") {
			sawExplanation = true
		}
	}
	if !sawExplanation {
		t.Errorf("expected an assessment explanation, got %+v", reply.Messages)
	}
}

func TestFollowUpGoodbyeStaysInFollowUp(t *testing.T) {
	svc, repo := newTestService(t, nil, BusySerialize)
	session, _ := svc.CreateSession(context.Background(), "", nil)

	if _, err := svc.ProcessMessage(context.Background(), session.ID, "I have a mild headache"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if _, err := svc.ProcessMessage(context.Background(), session.ID, "thank you, goodbye"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), session.ID)
	if stored.State != StateFollowUp {
		t.Errorf("state = %s, want %s", stored.State, StateFollowUp)
	}
}

func TestResetReturnsToGreeting(t *testing.T) {
	svc, repo := newTestService(t, nil, BusySerialize)
	session, _ := svc.CreateSession(context.Background(), "", nil)

	if _, err := svc.ProcessMessage(context.Background(), session.ID, "I have a mild headache"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	reply, err := svc.Reset(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(reply.Messages) != 3 {
		t.Errorf("expected 3 greeting messages on reset, got %d", len(reply.Messages))
	}

	stored, _ := repo.GetByID(context.Background(), session.ID)
	if stored.State != StateGreeting {
		t.Errorf("state = %s, want %s", stored.State, StateGreeting)
	}
	if stored.LastResult != nil || stored.SymptomText != "" {
		t.Error("reset must clear accumulated symptoms and the classification")
	}

	// The transcript is kept for replay; a new report starts a fresh cycle.
	if _, err := svc.ProcessMessage(context.Background(), session.ID, "sore throat since yesterday"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	stored, _ = repo.GetByID(context.Background(), session.ID)
	if stored.LastResult == nil || stored.LastResult.Urgency != triage.LevelOutpatient {
		t.Errorf("stored result = %+v, want outpatient", stored.LastResult)
	}
}

func TestPatientAgeDrivesPediatricOverride(t *testing.T) {
	svc, _ := newTestService(t, nil, BusySerialize)
	session, _ := svc.CreateSession(context.Background(), "parent-1", intPtr(3))

	reply, err := svc.ProcessMessage(context.Background(), session.ID, "My child has high fever, cough, and difficulty breathing")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !reply.IsEmergency {
		t.Error("pediatric breathing difficulty should escalate to emergency")
	}
}

func TestProcessMessageUnknownSession(t *testing.T) {
	svc, _ := newTestService(t, nil, BusySerialize)

	_, err := svc.ProcessMessage(context.Background(), "no-such-session", "hello there")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestProcessMessageEmptyInput(t *testing.T) {
	svc, _ := newTestService(t, nil, BusySerialize)
	session, _ := svc.CreateSession(context.Background(), "", nil)

	_, err := svc.ProcessMessage(context.Background(), session.ID, "   ")
	if !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("err = %v, want ErrEmptyMessage", err)
	}
}

// blockingRepo gates GetByID so a test can hold a session mid-turn.
type blockingRepo struct {
	Repository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *blockingRepo) GetByID(ctx context.Context, id string) (*Session, error) {
	r.once.Do(func() {
		close(r.entered)
		<-r.release
	})
	return r.Repository.GetByID(ctx, id)
}

func TestBusyRejectPolicy(t *testing.T) {
	inner := NewMemoryRepository()
	repo := &blockingRepo{
		Repository: inner,
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	engine := triage.NewEngine(triage.DefaultRuleTable())
	svc := NewService(repo, engine, nil, "US", BusyReject)

	session, err := svc.CreateSession(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.ProcessMessage(context.Background(), session.ID, "mild headache")
		done <- err
	}()

	<-repo.entered
	if _, err := svc.ProcessMessage(context.Background(), session.ID, "another message"); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("err = %v, want ErrSessionBusy", err)
	}
	close(repo.release)

	if err := <-done; err != nil {
		t.Fatalf("first message failed: %v", err)
	}
}

func TestClarificationGateMatchesEngineThreshold(t *testing.T) {
	svc, repo := newTestService(t, nil, BusySerialize)
	session, _ := svc.CreateSession(context.Background(), "", nil)

	// One rune below the engine's minimum asks for detail; at the minimum the
	// turn classifies instead of falling back.
	short := strings.Repeat("a", triage.MinSymptomLength-1)
	if _, err := svc.ProcessMessage(context.Background(), session.ID, short); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	stored, _ := repo.GetByID(context.Background(), session.ID)
	if stored.State != StateAwaitingClarification {
		t.Errorf("state = %s, want %s", stored.State, StateAwaitingClarification)
	}

	session2, _ := svc.CreateSession(context.Background(), "", nil)
	exact := strings.Repeat("a", triage.MinSymptomLength)
	if _, err := svc.ProcessMessage(context.Background(), session2.ID, exact); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	stored, _ = repo.GetByID(context.Background(), session2.ID)
	if stored.State != StateFollowUp {
		t.Errorf("state = %s, want %s", stored.State, StateFollowUp)
	}
	if stored.LastResult == nil {
		t.Fatal("expected a classification at the minimum length")
	}
}

func sessionLockCount(t *testing.T, svc Service) int {
	t.Helper()
	impl, ok := svc.(*service)
	if !ok {
		t.Fatalf("unexpected service implementation %T", svc)
	}
	impl.mu.Lock()
	defer impl.mu.Unlock()
	return len(impl.locks)
}

func TestSessionLocksArePruned(t *testing.T) {
	svc, _ := newTestService(t, nil, BusySerialize)
	session, _ := svc.CreateSession(context.Background(), "", nil)

	if _, err := svc.ProcessMessage(context.Background(), session.ID, "I have a mild headache"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if _, err := svc.Reset(context.Background(), session.ID); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if n := sessionLockCount(t, svc); n != 0 {
		t.Errorf("lock map holds %d entries after all turns finished, want 0", n)
	}
}

func TestRejectedTurnDoesNotLeakLock(t *testing.T) {
	inner := NewMemoryRepository()
	repo := &blockingRepo{
		Repository: inner,
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	engine := triage.NewEngine(triage.DefaultRuleTable())
	svc := NewService(repo, engine, nil, "US", BusyReject)

	session, err := svc.CreateSession(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.ProcessMessage(context.Background(), session.ID, "mild headache")
		done <- err
	}()

	<-repo.entered
	if _, err := svc.ProcessMessage(context.Background(), session.ID, "another message"); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("err = %v, want ErrSessionBusy", err)
	}
	close(repo.release)
	if err := <-done; err != nil {
		t.Fatalf("first message failed: %v", err)
	}

	if n := sessionLockCount(t, svc); n != 0 {
		t.Errorf("lock map holds %d entries after the rejected turn, want 0", n)
	}
}

func TestTranscriptOrder(t *testing.T) {
	svc, repo := newTestService(t, nil, BusySerialize)
	session, _ := svc.CreateSession(context.Background(), "", nil)

	if _, err := svc.ProcessMessage(context.Background(), session.ID, "I have a mild headache"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), session.ID)

	// Greeting first, then the user message, then bot responses.
	if stored.Messages[3].Sender != SenderUser {
		t.Errorf("message 3 sender = %s, want user", stored.Messages[3].Sender)
	}
	for i := 1; i < len(stored.Messages); i++ {
		if stored.Messages[i].Timestamp.Before(stored.Messages[i-1].Timestamp) {
			t.Fatalf("transcript out of order at index %d", i)
		}
	}
	if stored.Symptoms() != "I have a mild headache" {
		t.Errorf("Symptoms() = %q", stored.Symptoms())
	}
}
