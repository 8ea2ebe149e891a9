package storage

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps everything in process. Records are copied in and out so callers
// never share state with the store.
type Memory struct {
	mu      sync.RWMutex
	users   map[int64]User
	resumes map[string]Resume
}

func NewMemory() *Memory {
	return &Memory{
		users:   make(map[int64]User),
		resumes: make(map[string]Resume),
	}
}

func (m *Memory) GetUser(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m *Memory) CreateUser(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; ok {
		return nil, ErrAlreadyExists
	}

	user := User{ID: id, AwaitingToken: true}
	m.users[id] = user
	return &user, nil
}

func (m *Memory) UpdateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; !ok {
		return ErrNotFound
	}
	m.users[user.ID] = *user
	return nil
}

func (m *Memory) GetResume(_ context.Context, id string) (*Resume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	resume, ok := m.resumes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &resume, nil
}

func (m *Memory) CreateResume(_ context.Context, resume *Resume) error {
	if err := resume.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.resumes[resume.ID]; ok {
		return ErrAlreadyExists
	}
	if _, ok := m.users[resume.UserID]; !ok {
		return ErrNotFound
	}
	m.resumes[resume.ID] = *resume
	return nil
}

func (m *Memory) UpdateResume(_ context.Context, resume *Resume) error {
	if err := resume.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.resumes[resume.ID]; !ok {
		return ErrNotFound
	}
	m.resumes[resume.ID] = *resume
	return nil
}

func (m *Memory) UpsertResume(_ context.Context, resume *Resume) error {
	if err := resume.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[resume.UserID]; !ok {
		return ErrNotFound
	}
	m.resumes[resume.ID] = *resume
	return nil
}

func (m *Memory) ListActiveResumes(_ context.Context, filter ActiveFilter) ([]*Resume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var resumes []*Resume
	for _, r := range m.resumes {
		if !r.IsActive {
			continue
		}
		if filter.UserID != 0 && r.UserID != filter.UserID {
			continue
		}
		if !filter.DueBy.IsZero() && !due(r, filter) {
			continue
		}
		resume := r
		resumes = append(resumes, &resume)
	}

	sort.Slice(resumes, func(i, j int) bool {
		if resumes[i].UserID != resumes[j].UserID {
			return resumes[i].UserID < resumes[j].UserID
		}
		return resumes[i].ID < resumes[j].ID
	})

	return resumes, nil
}

func due(r Resume, filter ActiveFilter) bool {
	if r.NextPublishAt.IsZero() || !r.NextPublishAt.After(filter.DueBy) {
		return true
	}
	return r.Until.IsZero() || !r.Until.After(filter.DueBy)
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
