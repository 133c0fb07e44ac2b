package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/dgraph-io/badger/options"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/piratepartyau/donate/pkg/model"
)

const (
	versionPath   = "donate/version"
	noncePrefix   = "nonce/"
	noncePath     = "nonce/%s"
	receiptPrefix = "receipt/"
	receiptPath   = "receipt/%s"
)

// BadgerConfig represents BadgerDB configuration parameters
type BadgerConfig struct {
	Truncate bool `toml:"truncate"`
	FileIO   bool `toml:"file_io"`
}

type Badger struct {
	db *badger.DB
}

var _ Storage = (*Badger)(nil)

func NewBadger(config *Config) (*Badger, error) {
	var (
		dir = config.Dir
	)

	log.Infof("opening database %q", dir)

	// Make sure database directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "could not mkdir database dir")
	}

	opts := badger.DefaultOptions(dir).
		WithLogger(log.StandardLogger()).
		WithTruncate(true)

	if config.Badger != nil {
		opts.Truncate = config.Badger.Truncate
		if config.Badger.FileIO {
			opts.ValueLogLoadingMode = options.FileIO
		}
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	storage := &Badger{db: db}

	if err := db.Update(func(txn *badger.Txn) error {
		if err := storage.setObj(txn, []byte(versionPath), CurrentVersion, false); err != nil && err != model.ErrAlreadyExists {
			return err
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "failed to read database version")
	}

	return storage, nil
}

func (b *Badger) Close() error {
	log.Debug("closing database")
	return b.db.Close()
}

func (b *Badger) Version() (int, error) {
	var (
		version = -1
	)

	err := b.db.View(func(txn *badger.Txn) error {
		return b.getObj(txn, []byte(versionPath), &version)
	})

	return version, err
}

func (b *Badger) InsertNonce(_ context.Context, nonce *model.Nonce) error {
	return b.db.Update(func(txn *badger.Txn) error {
		key := b.getKey(noncePath, nonce.ID)
		if err := b.setObj(txn, key, nonce, false); err != nil {
			if err == model.ErrAlreadyExists {
				return err
			}

			return errors.Wrapf(err, "failed to save nonce %q", nonce.ID)
		}

		return nil
	})
}

// FindAndDeleteNonce runs lookup and delete in one read-write transaction.
// Badger serializes conflicting transactions, so of N concurrent callers
// for the same ID exactly one sees the record.
func (b *Badger) FindAndDeleteNonce(_ context.Context, id string) (*model.Nonce, error) {
	var (
		nonce model.Nonce
		key   = b.getKey(noncePath, id)
	)

	err := b.db.Update(func(txn *badger.Txn) error {
		if err := b.getObj(txn, key, &nonce); err != nil {
			return err
		}

		return txn.Delete(key)
	})
	if err == badger.ErrConflict {
		// Another transaction consumed the nonce first
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &nonce, nil
}

func (b *Badger) DeleteExpiredNonces(_ context.Context, before time.Time) (int, error) {
	var expired [][]byte

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = b.getKey(noncePrefix)
		opts.PrefetchValues = true
		return b.iterator(txn, opts, func(item *badger.Item) error {
			nonce := &model.Nonce{}
			if err := b.unmarshalObj(item, nonce); err != nil {
				return err
			}

			if nonce.ExpiresAt.Before(before) {
				expired = append(expired, item.KeyCopy(nil))
			}

			return nil
		})
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to iterate nonces")
	}

	count := 0
	for _, key := range expired {
		err := b.db.Update(func(txn *badger.Txn) error {
			if _, err := txn.Get(key); err != nil {
				return err
			}

			return txn.Delete(key)
		})
		if err == badger.ErrKeyNotFound || err == badger.ErrConflict {
			// Consumed between scan and delete, not ours to count
			continue
		}
		if err != nil {
			return count, errors.Wrap(err, "failed to delete expired nonce")
		}

		count++
	}

	return count, nil
}

func (b *Badger) SaveReceipt(_ context.Context, receipt *model.Receipt) error {
	return b.db.Update(func(txn *badger.Txn) error {
		key := b.getKey(receiptPath, receipt.ID)
		if err := b.setObj(txn, key, receipt, false); err != nil {
			if err == model.ErrAlreadyExists {
				return err
			}

			return errors.Wrapf(err, "failed to save receipt %q", receipt.ID)
		}

		return nil
	})
}

func (b *Badger) GetReceipt(_ context.Context, id string) (*model.Receipt, error) {
	var (
		receipt model.Receipt
		key     = b.getKey(receiptPath, id)
	)

	err := b.db.View(func(txn *badger.Txn) error {
		return b.getObj(txn, key, &receipt)
	})
	if err != nil {
		return nil, err
	}

	return &receipt, nil
}

func (b *Badger) WalkReceipts(_ context.Context, cb func(receipt *model.Receipt) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = b.getKey(receiptPrefix)
		opts.PrefetchValues = true
		return b.iterator(txn, opts, func(item *badger.Item) error {
			receipt := &model.Receipt{}
			if err := b.unmarshalObj(item, receipt); err != nil {
				return err
			}

			return cb(receipt)
		})
	})
}

func (b *Badger) iterator(txn *badger.Txn, opts badger.IteratorOptions, callback func(item *badger.Item) error) error {
	iter := txn.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()

		if err := callback(item); err != nil {
			return err
		}
	}

	return nil
}

func (b *Badger) getKey(format string, a ...interface{}) []byte {
	resourcePath := fmt.Sprintf(format, a...)
	fullPath := fmt.Sprintf("donate/v%d/%s", CurrentVersion, resourcePath)

	return []byte(fullPath)
}

func (b *Badger) setObj(txn *badger.Txn, key []byte, obj interface{}, overwrite bool) error {
	if !overwrite {
		// Overwrites are not allowed, make sure there is no object with the given key
		_, err := txn.Get(key)
		if err == nil {
			return model.ErrAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return errors.Wrap(err, "failed to check whether key exists")
		}
	}

	data, err := b.marshalObj(obj)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize object for key %q", key)
	}

	return txn.Set(key, data)
}

func (b *Badger) getObj(txn *badger.Txn, key []byte, out interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return model.ErrNotFound
		}

		return err
	}

	return b.unmarshalObj(item, out)
}

func (b *Badger) marshalObj(obj interface{}) ([]byte, error) {
	return json.Marshal(obj)
}

func (b *Badger) unmarshalObj(item *badger.Item, out interface{}) error {
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}
