// Package mock provides in-memory implementations of the database
// interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jsvoboda/rollcall/internal/database"
)

// StudentRepo is an in-memory implementation of database.StudentWriter.
type StudentRepo struct {
	mu       sync.RWMutex
	students map[string]*database.Student
	nextID   int64

	// Embeddings, when set, receives the cascade the SQL backends run
	// through the foreign key: deleting a student also drops its
	// reference embedding.
	Embeddings *EmbeddingRepo

	// Error injection
	GetError    error
	ListError   error
	CountError  error
	CreateError error
	RenameError error
	DeleteError error
}

// NewStudentRepo creates an empty in-memory student repository.
func NewStudentRepo() *StudentRepo {
	return &StudentRepo{students: make(map[string]*database.Student)}
}

func (m *StudentRepo) Get(ctx context.Context, studentID string) (*database.Student, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[studentID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *StudentRepo) List(ctx context.Context) ([]database.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (m *StudentRepo) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students), nil
}

func (m *StudentRepo) Create(ctx context.Context, s *database.Student) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[s.StudentID]; ok {
		return database.ErrDuplicateStudent
	}
	m.nextID++
	s.ID = m.nextID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	cp := *s
	m.students[s.StudentID] = &cp
	return nil
}

func (m *StudentRepo) Rename(ctx context.Context, studentID, name string) error {
	if m.RenameError != nil {
		return m.RenameError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok {
		return database.ErrNotFound
	}
	s.Name = name
	return nil
}

func (m *StudentRepo) Delete(ctx context.Context, studentID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[studentID]; !ok {
		return database.ErrNotFound
	}
	delete(m.students, studentID)
	if m.Embeddings != nil {
		m.Embeddings.mu.Lock()
		delete(m.Embeddings.embeddings, studentID)
		m.Embeddings.mu.Unlock()
	}
	return nil
}

// EmbeddingRepo is an in-memory implementation of database.EmbeddingWriter.
type EmbeddingRepo struct {
	mu         sync.RWMutex
	embeddings map[string]*database.StoredEmbedding

	// Error injection
	GetError     error
	ListAllError error
	CountError   error
	SaveError    error
	DeleteError  error
}

// NewEmbeddingRepo creates an empty in-memory embedding repository.
func NewEmbeddingRepo() *EmbeddingRepo {
	return &EmbeddingRepo{embeddings: make(map[string]*database.StoredEmbedding)}
}

func (m *EmbeddingRepo) Get(ctx context.Context, studentID string) (*database.StoredEmbedding, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	emb, ok := m.embeddings[studentID]
	if !ok {
		return nil, nil
	}
	cp := *emb
	return &cp, nil
}

func (m *EmbeddingRepo) ListAll(ctx context.Context) ([]database.StoredEmbedding, error) {
	if m.ListAllError != nil {
		return nil, m.ListAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.StoredEmbedding, 0, len(m.embeddings))
	for _, emb := range m.embeddings {
		out = append(out, *emb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (m *EmbeddingRepo) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.embeddings), nil
}

func (m *EmbeddingRepo) Save(ctx context.Context, emb database.StoredEmbedding) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now().UTC()
	}
	m.embeddings[emb.StudentID] = &emb
	return nil
}

func (m *EmbeddingRepo) Delete(ctx context.Context, studentID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.embeddings, studentID)
	return nil
}

// Ledger is an in-memory implementation of database.LedgerWriter. It
// enforces the same at-most-one-PRESENT-per-day guarantee as the SQL
// backends so session tests exercise the real dedup semantics.
type Ledger struct {
	mu     sync.Mutex
	events []database.AttendanceEvent
	nextID int64

	// Error injection
	AppendError error
	ExistsError error
	QueryError  error
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

func (m *Ledger) Append(ctx context.Context, ev database.AttendanceEvent) error {
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.Status == "PRESENT" {
		for _, existing := range m.events {
			if existing.Status == "PRESENT" && existing.StudentID == ev.StudentID && existing.Day.Equal(ev.Day) {
				return nil // duplicate PRESENT is a no-op
			}
		}
	}
	m.nextID++
	ev.ID = m.nextID
	m.events = append(m.events, ev)
	return nil
}

func (m *Ledger) ExistsPresent(ctx context.Context, studentID string, day time.Time) (bool, error) {
	if m.ExistsError != nil {
		return false, m.ExistsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.Status == "PRESENT" && ev.StudentID == studentID && ev.Day.Equal(day) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Ledger) EventsInRange(ctx context.Context, start, end time.Time) ([]database.AttendanceEvent, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.AttendanceEvent
	for _, ev := range m.events {
		if !ev.Day.Before(start) && !ev.Day.After(end) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (m *Ledger) EventsForStudent(ctx context.Context, studentID string) ([]database.AttendanceEvent, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.AttendanceEvent
	for _, ev := range m.events {
		if ev.StudentID == studentID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.After(out[j].Day)
		}
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	return out, nil
}

func (m *Ledger) AllEvents(ctx context.Context) ([]database.AttendanceEvent, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]database.AttendanceEvent, len(m.events))
	copy(out, m.events)
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// Events returns a copy of everything appended, for test assertions.
func (m *Ledger) Events() []database.AttendanceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]database.AttendanceEvent, len(m.events))
	copy(out, m.events)
	return out
}

// TeacherRepo is an in-memory implementation of database.TeacherWriter.
type TeacherRepo struct {
	mu       sync.RWMutex
	teachers map[string]*database.Teacher
	nextID   int64

	// Error injection
	GetError    error
	CreateError error
}

// NewTeacherRepo creates an empty in-memory teacher repository.
func NewTeacherRepo() *TeacherRepo {
	return &TeacherRepo{teachers: make(map[string]*database.Teacher)}
}

func (m *TeacherRepo) GetByUsername(ctx context.Context, username string) (*database.Teacher, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teachers[username]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *TeacherRepo) Create(ctx context.Context, t *database.Teacher) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := *t
	m.teachers[t.Username] = &cp
	return nil
}
