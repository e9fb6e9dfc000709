package session

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"chainvote/pkg/data"
	"chainvote/pkg/security"
)

// Persisted keys
const (
	keyAdminEmail        = "adminEmail"
	keyVoterEmail        = "voterEmail"
	keyVoterDepartment   = "voterDepartment"
	keyPendingEmail      = "pendingEmail"
	keyPendingRole       = "pendingRole"
	keyPendingDepartment = "pendingDepartment"
	keyPendingIssuedAt   = "pendingIssuedAt"
)

// Store holds at most one identity per role plus a single pending
// verification. Every mutation is written through to the backend before it
// becomes visible.
type Store struct {
	mu      sync.RWMutex
	values  map[string]string
	backend Backend
	logger  *zap.Logger
}

// NewStore loads the persisted session from backend
func NewStore(backend Backend, logger *zap.Logger) (*Store, error) {
	values, err := backend.Load()
	if err != nil {
		return nil, err
	}

	s := &Store{
		values:  values,
		backend: backend,
		logger:  logger.Named("session"),
	}

	if _, ok := s.GetPending(); !ok {
		// drop half-written pending keys, e.g. an unknown role tag
		clearPending(s.values)
	}

	return s, nil
}

// Get returns the established identity for role
func (s *Store) Get(role data.Role) (data.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch role {
	case data.RoleAdmin:
		email := s.values[keyAdminEmail]
		if email == "" {
			return data.Identity{}, false
		}
		return data.Identity{Email: email, Role: data.RoleAdmin}, true
	case data.RoleVoter:
		email := s.values[keyVoterEmail]
		if email == "" {
			return data.Identity{}, false
		}
		return data.Identity{
			Email:      email,
			Role:       data.RoleVoter,
			Department: s.values[keyVoterDepartment],
		}, true
	}
	return data.Identity{}, false
}

// Set replaces the identity for role
func (s *Store) Set(role data.Role, id data.Identity) error {
	if id.Email == "" {
		return &data.ValidationError{Field: "email", Message: "identity email is empty"}
	}

	err := s.update(func(v map[string]string) error {
		return setRole(v, role, id)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Identity established",
		zap.Stringer("role", role),
		zap.String("email", security.Fingerprint(id.Email)))
	return nil
}

// Establish stores the verified identity for role and discards the pending
// verification in one write. Either both happen or neither does.
func (s *Store) Establish(role data.Role, id data.Identity) error {
	if id.Email == "" {
		return &data.ValidationError{Field: "email", Message: "identity email is empty"}
	}

	err := s.update(func(v map[string]string) error {
		if err := setRole(v, role, id); err != nil {
			return err
		}
		clearPending(v)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Identity established, pending verification cleared",
		zap.Stringer("role", role),
		zap.String("email", security.Fingerprint(id.Email)))
	return nil
}

// Clear removes the identity for role
func (s *Store) Clear(role data.Role) error {
	return s.update(func(v map[string]string) error {
		return clearRole(v, role)
	})
}

// SetPending stores p, replacing any earlier pending verification
func (s *Store) SetPending(p data.PendingVerification) error {
	if p.Email == "" {
		return &data.ValidationError{Field: "email", Message: "pending email is empty"}
	}
	if _, err := data.ParseRole(p.Role.String()); err != nil {
		return err
	}
	if p.IssuedAt.IsZero() {
		p.IssuedAt = time.Now().UTC()
	}

	return s.update(func(v map[string]string) error {
		v[keyPendingEmail] = p.Email
		v[keyPendingRole] = p.Role.String()
		v[keyPendingIssuedAt] = p.IssuedAt.Format(time.RFC3339)
		if p.Department != "" {
			v[keyPendingDepartment] = p.Department
		} else {
			delete(v, keyPendingDepartment)
		}
		return nil
	})
}

// GetPending returns the pending verification, if any
func (s *Store) GetPending() (data.PendingVerification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email := s.values[keyPendingEmail]
	role, err := data.ParseRole(s.values[keyPendingRole])
	if email == "" || err != nil {
		return data.PendingVerification{}, false
	}

	issued, _ := time.Parse(time.RFC3339, s.values[keyPendingIssuedAt])
	return data.PendingVerification{
		Email:      email,
		Role:       role,
		Department: s.values[keyPendingDepartment],
		IssuedAt:   issued,
	}, true
}

// ClearPending discards the pending verification
func (s *Store) ClearPending() error {
	return s.update(func(v map[string]string) error {
		clearPending(v)
		return nil
	})
}

// Logout tears down the local state for role. There is no server call.
func (s *Store) Logout(role data.Role) error {
	err := s.update(func(v map[string]string) error {
		if v[keyPendingRole] == role.String() {
			clearPending(v)
		}
		return clearRole(v, role)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Logged out", zap.Stringer("role", role))
	return nil
}

// update applies fn to a copy, persists it, then publishes it
func (s *Store) update(fn func(map[string]string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := copyValues(s.values)
	if err := fn(next); err != nil {
		return err
	}
	if err := s.backend.Save(next); err != nil {
		s.logger.Error("Failed to persist session", zap.Error(err))
		return err
	}
	s.values = next
	return nil
}

func setRole(v map[string]string, role data.Role, id data.Identity) error {
	switch role {
	case data.RoleAdmin:
		v[keyAdminEmail] = id.Email
	case data.RoleVoter:
		v[keyVoterEmail] = id.Email
		if id.Department != "" {
			v[keyVoterDepartment] = id.Department
		} else {
			delete(v, keyVoterDepartment)
		}
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	return nil
}

func clearRole(v map[string]string, role data.Role) error {
	switch role {
	case data.RoleAdmin:
		delete(v, keyAdminEmail)
	case data.RoleVoter:
		delete(v, keyVoterEmail)
		delete(v, keyVoterDepartment)
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	return nil
}

func clearPending(v map[string]string) {
	delete(v, keyPendingEmail)
	delete(v, keyPendingRole)
	delete(v, keyPendingDepartment)
	delete(v, keyPendingIssuedAt)
}
