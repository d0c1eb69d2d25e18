package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pilab-dev/cartbuilder/domain"
	"github.com/pilab-dev/cartbuilder/internal/metrics"
	"github.com/pilab-dev/cartbuilder/log"
)

// Fixed storage keys of the persisted session.
const (
	TokensKey = "cart_builder_tokens"
	UserKey   = "cart_builder_user"
)

var (
	ErrIncompleteTokenPair = errors.New("session: token pair must carry both access and refresh tokens")
	ErrMissingUser         = errors.New("session: user snapshot is required")
)

// Store persists the token pair and the user snapshot. It keeps no copy in
// memory: every read goes to the underlying Storage so that every holder of
// the same backend observes the same session.
type Store struct {
	storage   Storage
	namespace string
	logger    log.Logger
	metrics   *metrics.Metrics
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithNamespace prefixes every key with ns, so several sessions can share
// one backend.
func WithNamespace(ns string) StoreOption {
	return func(s *Store) { s.namespace = ns }
}

// WithStoreLogger sets the logger used to report corrupt stored values.
func WithStoreLogger(l log.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithStoreMetrics sets the collectors corrupt reads are counted in.
func WithStoreMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a Store on top of storage.
func NewStore(storage Storage, opts ...StoreOption) *Store {
	s := &Store{
		storage: storage,
		logger:  log.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(name string) string {
	if s.namespace == "" {
		return name
	}
	return s.namespace + ":" + name
}

// SaveTokens persists pair, replacing any previous value.
func (s *Store) SaveTokens(ctx context.Context, pair domain.TokenPair) error {
	if !pair.Complete() {
		return ErrIncompleteTokenPair
	}
	raw, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}
	if err := s.storage.Set(ctx, s.key(TokensKey), raw); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	return nil
}

// LoadTokens returns the persisted pair, or nil when it was never stored,
// was cleared, or cannot be decoded into a complete pair.
func (s *Store) LoadTokens(ctx context.Context) (*domain.TokenPair, error) {
	var pair domain.TokenPair
	found, err := s.load(ctx, TokensKey, &pair)
	if err != nil || !found {
		return nil, err
	}
	if !pair.Complete() {
		s.corrupt(ctx, TokensKey, errors.New("incomplete token pair"))
		return nil, nil
	}
	return &pair, nil
}

// ClearTokens removes the persisted pair. Clearing an absent pair is a no-op.
func (s *Store) ClearTokens(ctx context.Context) error {
	if err := s.storage.Delete(ctx, s.key(TokensKey)); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

// SaveUser persists the user snapshot, replacing any previous value.
func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return ErrMissingUser
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := s.storage.Set(ctx, s.key(UserKey), raw); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// LoadUser returns the persisted user snapshot or nil.
func (s *Store) LoadUser(ctx context.Context) (*domain.User, error) {
	var user *domain.User
	found, err := s.load(ctx, UserKey, &user)
	if err != nil || !found {
		return nil, err
	}
	return user, nil
}

// ClearUser removes the user snapshot. Clearing an absent snapshot is a no-op.
func (s *Store) ClearUser(ctx context.Context) error {
	if err := s.storage.Delete(ctx, s.key(UserKey)); err != nil {
		return fmt.Errorf("failed to clear user: %w", err)
	}
	return nil
}

// SaveSession writes the token pair and the user together. When the backend
// cannot write both atomically and the user write fails, the tokens written
// just before are removed again.
func (s *Store) SaveSession(ctx context.Context, pair domain.TokenPair, user *domain.User) error {
	if !pair.Complete() {
		return ErrIncompleteTokenPair
	}
	if user == nil {
		return ErrMissingUser
	}

	if ms, ok := s.storage.(MultiStorage); ok {
		rawTokens, err := json.Marshal(pair)
		if err != nil {
			return fmt.Errorf("failed to marshal tokens: %w", err)
		}
		rawUser, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		if err := ms.SetMany(ctx, map[string][]byte{
			s.key(TokensKey): rawTokens,
			s.key(UserKey):   rawUser,
		}); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	}

	if err := s.SaveTokens(ctx, pair); err != nil {
		return err
	}
	if err := s.SaveUser(ctx, user); err != nil {
		if rbErr := s.ClearTokens(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return nil
}

// RenewTokens stores a refreshed pair. When a user snapshot exists it is
// written again in the same paired write, so backends that expire keys keep
// both halves on one deadline.
func (s *Store) RenewTokens(ctx context.Context, pair domain.TokenPair) error {
	user, err := s.LoadUser(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return s.SaveTokens(ctx, pair)
	}
	return s.SaveSession(ctx, pair, user)
}

// LoadSession returns the persisted session. A session missing either half
// is reported as empty, never as tokens without a user or the reverse.
func (s *Store) LoadSession(ctx context.Context) (domain.Session, error) {
	pair, err := s.LoadTokens(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	user, err := s.LoadUser(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if pair == nil || user == nil {
		return domain.Session{}, nil
	}
	return domain.Session{Tokens: pair, User: user}, nil
}

// ClearSession removes both the tokens and the user. It is idempotent.
func (s *Store) ClearSession(ctx context.Context) error {
	if ms, ok := s.storage.(MultiStorage); ok {
		if err := ms.DeleteMany(ctx, s.key(TokensKey), s.key(UserKey)); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		return nil
	}
	return errors.Join(s.ClearTokens(ctx), s.ClearUser(ctx))
}

// load decodes the value under name into v. Missing and undecodable values
// both report found == false; only storage failures are returned as errors.
func (s *Store) load(ctx context.Context, name string, v interface{}) (bool, error) {
	raw, err := s.storage.Get(ctx, s.key(name))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.corrupt(ctx, name, err)
		return false, nil
	}
	return true, nil
}

func (s *Store) corrupt(ctx context.Context, name string, err error) {
	s.metrics.CorruptRead()
	s.logger.Warn(ctx, "Stored session value is corrupt, treating it as absent", map[string]interface{}{
		"key":   s.key(name),
		"error": err.Error(),
	})
}
