package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/educlass-api/internal/dto"
	"github.com/noah-isme/educlass-api/internal/models"
	"github.com/noah-isme/educlass-api/internal/storage"
)

const authSliceSchema = `{
  "type": "object",
  "required": ["user", "token", "isAuthenticated"],
  "properties": {
    "user": {
      "oneOf": [
        {"type": "null"},
        {
          "type": "object",
          "required": ["id", "name", "email", "role"],
          "properties": {
            "id": {"type": "string", "minLength": 1},
            "name": {"type": "string"},
            "email": {"type": "string"},
            "role": {"enum": ["teacher", "student"]}
          }
        }
      ]
    },
    "token": {"type": ["string", "null"]},
    "isAuthenticated": {"type": "boolean"}
  }
}`

var authSliceValidator = jsonschema.MustCompileString("educlass://auth-slice.json", authSliceSchema)

// IdentityStore holds the persisted auth slice of one device. Reads happen once
// at Init; every mutation is written through. Storage failures never surface:
// the store fails open to the logged-out state.
type IdentityStore interface {
	Init(ctx context.Context) dto.AuthSlice
	Snapshot() dto.AuthSlice
	Login(ctx context.Context, identity models.Identity, token string) dto.AuthSlice
	Logout(ctx context.Context) dto.AuthSlice
}

type persistedIdentityStore struct {
	mu     sync.RWMutex
	kv     storage.KeyValue
	key    string
	state  dto.AuthSlice
	logger zerolog.Logger
}

// NewIdentityStore builds a store persisting under key in the given storage.
func NewIdentityStore(kv storage.KeyValue, key string, logger zerolog.Logger) IdentityStore {
	if strings.TrimSpace(key) == "" {
		key = "root"
	}
	return &persistedIdentityStore{
		kv:     kv,
		key:    key,
		logger: logger.With().Str("component", "identity_store").Logger(),
	}
}

func (s *persistedIdentityStore) Init(ctx context.Context) dto.AuthSlice {
	restored := s.rehydrate(ctx)

	s.mu.Lock()
	s.state = restored
	s.mu.Unlock()

	return cloneAuthSlice(restored)
}

func (s *persistedIdentityStore) rehydrate(ctx context.Context) dto.AuthSlice {
	if s.kv == nil {
		return dto.AuthSlice{}
	}

	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("failed to read persisted auth state, starting logged out")
		}
		return dto.AuthSlice{}
	}

	slice, err := decodeAuthSlice(raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("ignoring incompatible persisted auth state")
		return dto.AuthSlice{}
	}

	return slice
}

func (s *persistedIdentityStore) Snapshot() dto.AuthSlice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAuthSlice(s.state)
}

func (s *persistedIdentityStore) Login(ctx context.Context, identity models.Identity, token string) dto.AuthSlice {
	next := dto.AuthSlice{User: &identity, Token: &token, IsAuthenticated: true}
	return s.commit(ctx, next)
}

func (s *persistedIdentityStore) Logout(ctx context.Context) dto.AuthSlice {
	return s.commit(ctx, dto.AuthSlice{})
}

func (s *persistedIdentityStore) commit(ctx context.Context, next dto.AuthSlice) dto.AuthSlice {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	if s.kv != nil {
		payload, err := json.Marshal(next)
		if err == nil {
			err = s.kv.Set(ctx, s.key, string(payload))
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to persist auth state")
		}
	}

	return cloneAuthSlice(next)
}

func decodeAuthSlice(raw string) (dto.AuthSlice, error) {
	var document interface{}
	if err := json.Unmarshal([]byte(raw), &document); err != nil {
		return dto.AuthSlice{}, err
	}
	if err := authSliceValidator.Validate(document); err != nil {
		return dto.AuthSlice{}, err
	}

	var slice dto.AuthSlice
	if err := json.Unmarshal([]byte(raw), &slice); err != nil {
		return dto.AuthSlice{}, err
	}
	if slice.IsAuthenticated != (slice.User != nil) {
		return dto.AuthSlice{}, errors.New("authenticated flag does not match user")
	}

	return slice, nil
}

func cloneAuthSlice(in dto.AuthSlice) dto.AuthSlice {
	out := dto.AuthSlice{IsAuthenticated: in.IsAuthenticated}
	if in.User != nil {
		user := *in.User
		out.User = &user
	}
	if in.Token != nil {
		token := *in.Token
		out.Token = &token
	}
	return out
}
