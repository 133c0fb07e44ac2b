// Package nonce issues and consumes single-use form tokens. A token can be
// consumed exactly once, so a replayed submission never reaches the payment
// processor twice.
package nonce

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/piratepartyau/donate/pkg/model"
)

const (
	// DefaultLifetime exceeds a realistic form fill time while keeping the
	// replay window bounded.
	DefaultLifetime = 5 * time.Minute

	idBytes = 32
)

type storage interface {
	InsertNonce(ctx context.Context, nonce *model.Nonce) error
	FindAndDeleteNonce(ctx context.Context, id string) (*model.Nonce, error)
	DeleteExpiredNonces(ctx context.Context, before time.Time) (int, error)
}

type Store struct {
	db       storage
	lifetime time.Duration
}

func NewStore(db storage, lifetime time.Duration) *Store {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}

	return &Store{
		db:       db,
		lifetime: lifetime,
	}
}

// Issue creates and persists a fresh nonce.
func (s *Store) Issue(ctx context.Context) (*model.Nonce, error) {
	nonce := &model.Nonce{
		ID:        randID(),
		ExpiresAt: time.Now().Add(s.lifetime).UTC(),
	}

	if err := s.db.InsertNonce(ctx, nonce); err != nil {
		return nil, errors.Wrap(err, "failed to save nonce")
	}

	return nonce, nil
}

// Consume removes the nonce and reports whether it was still valid. The
// record is destroyed on the first attempt whether it expired or not, so a
// second call for the same ID always returns false.
func (s *Store) Consume(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}

	nonce, err := s.db.FindAndDeleteNonce(ctx, id)
	if err == model.ErrNotFound {
		// Either never issued, already consumed, or swept
		log.WithField("nonce", id).Debug("unknown or replayed nonce")
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to consume nonce")
	}

	if time.Now().After(nonce.ExpiresAt) {
		log.WithField("nonce", id).Debug("nonce expired before consumption")
		return false, nil
	}

	return true, nil
}

// SweepExpired deletes nonces that timed out before anyone consumed them.
// Expiry is rechecked in Consume regardless, the sweep only bounds storage
// growth.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	count, err := s.db.DeleteExpiredNonces(ctx, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to sweep expired nonces")
	}

	if count > 0 {
		log.Debugf("swept %d expired nonce(s)", count)
	}

	return count, nil
}

func randID() string {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}

	return base64.RawURLEncoding.EncodeToString(b)
}
