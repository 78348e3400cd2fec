package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mail-auth/internal/domain"
)

// FileStore persiste usuarios y registros pendientes en un archivo JSON.
// Es el backend por defecto cuando no hay Postgres configurado; las
// escrituras son atomicas via archivo temporal + rename.
type FileStore struct {
	mu   sync.Mutex
	path string
	data fileData
}

type fileData struct {
	Users   map[string]fileUser    `json:"users"`
	Pending map[string]filePending `json:"pending"`
}

type fileUser struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	Salt         string     `json:"salt"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type filePending struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Salt         string    `json:"salt"`
	CodeHash     string    `json:"code_hash"`
	Attempts     int       `json:"attempts"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewFileStore abre (o inicializa) el archivo de datos indicado.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		data: fileData{
			Users:   make(map[string]fileUser),
			Pending: make(map[string]filePending),
		},
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, err
	}
	if s.data.Users == nil {
		s.data.Users = make(map[string]fileUser)
	}
	if s.data.Pending == nil {
		s.data.Pending = make(map[string]filePending)
	}
	return s, nil
}

func (s *FileStore) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) Create(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Users[user.Email]; ok {
		return ErrDuplicate
	}
	s.data.Users[user.Email] = fileUser{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Salt:         user.Salt,
		LastLoginAt:  user.LastLoginAt,
		CreatedAt:    user.CreatedAt,
	}
	return s.save()
}

func (s *FileStore) GetByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.Users[email]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return domain.User{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Salt:         u.Salt,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
	}, nil
}

func (s *FileStore) UpdatePassword(_ context.Context, email, passwordHash, salt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.Users[email]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.Salt = salt
	s.data.Users[email] = u
	return s.save()
}

func (s *FileStore) UpdateLastLogin(_ context.Context, email string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.Users[email]
	if !ok {
		return ErrNotFound
	}
	u.LastLoginAt = &at
	s.data.Users[email] = u
	return s.save()
}

func (s *FileStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Users[email]; !ok {
		return ErrNotFound
	}
	delete(s.data.Users, email)
	return s.save()
}

func (s *FileStore) Upsert(_ context.Context, pending domain.PendingRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Pending[pending.Email] = filePending{
		ID:           pending.ID,
		Email:        pending.Email,
		PasswordHash: pending.PasswordHash,
		Salt:         pending.Salt,
		CodeHash:     pending.CodeHash,
		Attempts:     pending.Attempts,
		ExpiresAt:    pending.ExpiresAt,
		CreatedAt:    pending.CreatedAt,
	}
	return s.save()
}

func (s *FileStore) GetPendingByEmail(_ context.Context, email string) (domain.PendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.Pending[email]
	if !ok {
		return domain.PendingRegistration{}, ErrNotFound
	}
	return domain.PendingRegistration{
		ID:           p.ID,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		Salt:         p.Salt,
		CodeHash:     p.CodeHash,
		Attempts:     p.Attempts,
		ExpiresAt:    p.ExpiresAt,
		CreatedAt:    p.CreatedAt,
	}, nil
}

func (s *FileStore) DeletePending(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Pending[email]; !ok {
		return ErrNotFound
	}
	delete(s.data.Pending, email)
	return s.save()
}

// filePendingRepo adapta FileStore a PendingRepository sin chocar con los
// nombres de metodo de UserRepository.
type filePendingRepo struct {
	store *FileStore
}

// PendingRepo devuelve la vista PendingRepository del FileStore.
func (s *FileStore) PendingRepo() PendingRepository {
	return &filePendingRepo{store: s}
}

func (r *filePendingRepo) Upsert(ctx context.Context, pending domain.PendingRegistration) error {
	return r.store.Upsert(ctx, pending)
}

func (r *filePendingRepo) GetByEmail(ctx context.Context, email string) (domain.PendingRegistration, error) {
	return r.store.GetPendingByEmail(ctx, email)
}

func (r *filePendingRepo) Delete(ctx context.Context, email string) error {
	return r.store.DeletePending(ctx, email)
}
