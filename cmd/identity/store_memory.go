package identity

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps users in process memory. It backs local development and tests.
type MemoryStore struct {
	hasher PasswordHasher

	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string
	byRoll  map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. A nil hasher uses DefaultHasher.
func NewMemoryStore(h PasswordHasher) *MemoryStore {
	if h == nil {
		h = DefaultHasher()
	}
	return &MemoryStore{
		hasher:  h,
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
		byRoll:  make(map[string]string),
	}
}

// CreateUser validates, hashes and stores a new user.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	p, err := prepareUser(op, in, s.hasher)
	if err != nil {
		return User{}, err
	}
	u := p.user

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.byEmail[u.EmailNorm]; dup {
		return User{}, ConflictError{Op: op, Field: "email"}
	}
	if _, dup := s.byRoll[u.RollNumber]; dup {
		return User{}, ConflictError{Op: op, Field: "roll_number"}
	}

	s.byID[u.ID] = u
	s.byEmail[u.EmailNorm] = u.ID
	s.byRoll[u.RollNumber] = u.ID
	return u, nil
}

// GetUserByEmail looks a user up by normalized email.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.GetUserByEmail"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return s.byID[id], nil
}

// GetUserByID looks a user up by ULID.
func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return u, nil
}
