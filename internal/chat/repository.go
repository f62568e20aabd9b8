package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrSessionNotFound signals a missing or expired session. Callers must treat
// it as "start a new session", never as a classification failure.
var ErrSessionNotFound = errors.New("session not found")

type Repository interface {
	GetByID(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	List(ctx context.Context) ([]*Session, error)
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*Session, error) {
	query := `SELECT id, user_id, created_at, updated_at, state, symptom_text, patient_age, messages, triage_result FROM sessions WHERE id = $1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresRepo) Save(ctx context.Context, s *Session) error {
	messagesJSON, err := json.Marshal(s.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	var resultJSON []byte
	if s.LastResult != nil {
		resultJSON, err = json.Marshal(s.LastResult)
		if err != nil {
			return fmt.Errorf("failed to marshal triage result: %w", err)
		}
	}

	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	s.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO sessions (id, user_id, created_at, updated_at, state, symptom_text, patient_age, messages, triage_result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			updated_at = $4,
			state = $5,
			symptom_text = $6,
			patient_age = $7,
			messages = $8,
			triage_result = $9
	`
	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.CreatedAt, s.UpdatedAt, s.State, s.SymptomText, s.PatientAge, messagesJSON, resultJSON)
	return err
}

func (r *postgresRepo) List(ctx context.Context) ([]*Session, error) {
	query := `SELECT id, user_id, created_at, updated_at, state, symptom_text, patient_age, messages, triage_result FROM sessions ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var messagesJSON, resultJSON []byte

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.State,
		&s.SymptomText,
		&s.PatientAge,
		&messagesJSON,
		&resultJSON,
	)
	if err != nil {
		return nil, err
	}

	if len(messagesJSON) > 0 {
		if err := json.Unmarshal(messagesJSON, &s.Messages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &s.LastResult); err != nil {
			return nil, fmt.Errorf("failed to unmarshal triage result: %w", err)
		}
	}

	return &s, nil
}

// memoryRepo keeps sessions in process memory. It backs tests and demo runs
// where no database is reachable; eviction is left to process restart.
type memoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryRepository() Repository {
	return &memoryRepo{sessions: make(map[string]*Session)}
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r *memoryRepo) Save(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.UpdatedAt = time.Now().UTC()
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *memoryRepo) List(_ context.Context) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s.Clone())
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}
