package db

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/piratepartyau/donate/pkg/model"
)

const (
	redisVersionKey    = "donate:version"
	redisNonceKey      = "donate:nonce:"
	redisReceiptKey    = "donate:receipt:"
	redisReceiptSearch = "donate:receipt:*"
)

// consumeScript atomically reads and deletes a nonce key, which makes
// Consume linearizable across server instances sharing one redis.
const consumeScript = `
local v = redis.call('GET', KEYS[1])
if v then
	redis.call('DEL', KEYS[1])
end
return v
`

// Redis is a Storage implementation for multi instance deployments where
// a local badger directory can't be shared. Nonce keys carry a TTL, so
// redis expires abandoned records by itself and DeleteExpiredNonces has
// nothing left to do.
type Redis struct {
	client *redis.Client
}

var _ Storage = (*Redis)(nil)

func NewRedis(redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse redis URL")
	}

	client := redis.NewClient(opts)
	if err := client.Ping().Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	if err := client.SetNX(redisVersionKey, CurrentVersion, 0).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to write database version")
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Close() error {
	log.Debug("closing redis connection")
	return r.client.Close()
}

func (r *Redis) Version() (int, error) {
	str, err := r.client.Get(redisVersionKey).Result()
	if err != nil {
		return -1, errors.Wrap(err, "failed to query database version")
	}

	version, err := strconv.Atoi(str)
	if err != nil {
		return -1, errors.Wrapf(err, "unexpected version value %q", str)
	}

	return version, nil
}

func (r *Redis) InsertNonce(_ context.Context, nonce *model.Nonce) error {
	data, err := json.Marshal(nonce)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize nonce %q", nonce.ID)
	}

	ttl := time.Until(nonce.ExpiresAt)
	if ttl <= 0 {
		return errors.Errorf("nonce %q is already expired", nonce.ID)
	}

	ok, err := r.client.SetNX(redisNonceKey+nonce.ID, data, ttl).Result()
	if err != nil {
		return errors.Wrapf(err, "failed to save nonce %q", nonce.ID)
	}

	if !ok {
		return model.ErrAlreadyExists
	}

	return nil
}

func (r *Redis) FindAndDeleteNonce(_ context.Context, id string) (*model.Nonce, error) {
	result, err := r.client.Eval(consumeScript, []string{redisNonceKey + id}).Result()
	if err == redis.Nil {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to consume nonce %q", id)
	}

	str, ok := result.(string)
	if !ok {
		return nil, errors.Errorf("unexpected value for nonce %q", id)
	}

	nonce := &model.Nonce{}
	if err := json.Unmarshal([]byte(str), nonce); err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize nonce %q", id)
	}

	return nonce, nil
}

func (r *Redis) DeleteExpiredNonces(_ context.Context, _ time.Time) (int, error) {
	// Redis drops expired nonce keys via TTL
	return 0, nil
}

func (r *Redis) SaveReceipt(_ context.Context, receipt *model.Receipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize receipt %q", receipt.ID)
	}

	ok, err := r.client.SetNX(redisReceiptKey+receipt.ID, data, 0).Result()
	if err != nil {
		return errors.Wrapf(err, "failed to save receipt %q", receipt.ID)
	}

	if !ok {
		return model.ErrAlreadyExists
	}

	return nil
}

func (r *Redis) GetReceipt(_ context.Context, id string) (*model.Receipt, error) {
	str, err := r.client.Get(redisReceiptKey + id).Result()
	if err == redis.Nil {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query receipt %q", id)
	}

	receipt := &model.Receipt{}
	if err := json.Unmarshal([]byte(str), receipt); err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize receipt %q", id)
	}

	return receipt, nil
}

func (r *Redis) WalkReceipts(ctx context.Context, cb func(receipt *model.Receipt) error) error {
	keys, err := r.client.Keys(redisReceiptSearch).Result()
	if err != nil {
		return errors.Wrap(err, "failed to list receipts")
	}

	for _, key := range keys {
		id := key[len(redisReceiptKey):]

		receipt, err := r.GetReceipt(ctx, id)
		if err == model.ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}

		if err := cb(receipt); err != nil {
			return err
		}
	}

	return nil
}
