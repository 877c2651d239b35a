package store

import (
	"context"
	"strings"
	"sync"

	"github.com/harentsoaR/account-api/internal/models"
)

// MemoryStore keeps accounts in process memory. It enforces the same
// email and CIN uniqueness as the database backends. Emails compare
// case-insensitively, like the default MySQL collation.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]models.User)}
}

func (s *MemoryStore) ExistsByEmailOrCIN(_ context.Context, email, cin string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) || u.CIN == cin {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) EmailTakenByOther(_ context.Context, email string, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emailTakenLocked(email, id), nil
}

func (s *MemoryStore) emailTakenLocked(email string, id int64) bool {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) && u.ID != id {
			return true
		}
	}
	return false
}

func (s *MemoryStore) Insert(_ context.Context, u *models.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) || existing.CIN == u.CIN {
			return 0, ErrDuplicate
		}
	}
	s.nextID++
	row := *u
	row.ID = s.nextID
	s.users[row.ID] = row
	return row.ID, nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) Update(_ context.Context, id int64, upd models.UserUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	if s.emailTakenLocked(upd.Email, id) {
		return ErrDuplicate
	}
	u.FirstName = upd.FirstName
	u.LastName = upd.LastName
	u.Email = upd.Email
	u.PhoneNumber = upd.PhoneNumber
	if upd.PasswordHash != nil {
		u.Password = *upd.PasswordHash
	}
	s.users[id] = u
	return nil
}

func (s *MemoryStore) UpdatePassword(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Password = hash
		s.users[id] = u
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

// Len returns the number of stored accounts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }
