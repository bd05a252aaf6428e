package credentials

import (
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("credentials")

// BoltOptions configures a BoltStore
type BoltOptions struct {
	// SealKey enables XChaCha20-Poly1305 sealing of values when set.
	// It must be KeySize bytes.
	SealKey []byte

	// Timeout bounds how long Open waits for the file lock
	Timeout time.Duration
}

// BoltStore keeps credentials in a single bbolt bucket
type BoltStore struct {
	db     *bbolt.DB
	sealer *sealer
}

var _ Store = (*BoltStore)(nil)

// OpenBolt opens or creates the credential file at path
func OpenBolt(path string, opts *BoltOptions) (*BoltStore, error) {
	if opts == nil {
		opts = &BoltOptions{}
	}

	// Set defaults
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}

	s := &BoltStore{}
	if len(opts.SealKey) > 0 {
		sl, err := newSealer(opts.SealKey)
		if err != nil {
			return nil, err
		}
		s.sealer = sl
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, storageError(err, "opening credential file")
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, storageError(err, "creating credential bucket")
	}

	s.db = db
	return s, nil
}

// Close closes the underlying database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Put(key string, value []byte) error {
	return s.update(func(b *bbolt.Bucket) error {
		return s.putInBucket(b, key, value)
	}, "put %s", key)
}

func (s *BoltStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		if s.sealer == nil {
			value = copyBytes(data)
			return nil
		}
		plain, err := s.sealer.open(key, data)
		if err != nil {
			return err
		}
		if plain == nil {
			plain = []byte{}
		}
		value = plain
		return nil
	})
	if err != nil {
		return nil, storageError(err, "get %s", key)
	}
	return value, nil
}

func (s *BoltStore) Delete(key string) error {
	return s.update(func(b *bbolt.Bucket) error {
		return b.Delete([]byte(key))
	}, "delete %s", key)
}

func (s *BoltStore) DeleteAll() error {
	return s.update(clearBucket, "delete all")
}

func (s *BoltStore) Replace(values map[string][]byte) error {
	return s.update(func(b *bbolt.Bucket) error {
		if err := clearBucket(b); err != nil {
			return err
		}
		for k, v := range values {
			if err := s.putInBucket(b, k, v); err != nil {
				return err
			}
		}
		return nil
	}, "replace")
}

func (s *BoltStore) update(fn func(b *bbolt.Bucket) error, format string, args ...interface{}) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return fn(b)
	})
	if err != nil {
		return storageError(err, format, args...)
	}
	return nil
}

func (s *BoltStore) putInBucket(b *bbolt.Bucket, key string, value []byte) error {
	if key == "" {
		return errors.New("empty key")
	}
	data := copyBytes(value)
	if data == nil {
		data = []byte{}
	}
	if s.sealer != nil {
		sealed, err := s.sealer.seal(key, data)
		if err != nil {
			return err
		}
		data = sealed
	}
	return b.Put([]byte(key), data)
}

func clearBucket(b *bbolt.Bucket) error {
	var keys [][]byte
	if err := b.ForEach(func(k, _ []byte) error {
		keys = append(keys, copyBytes(k))
		return nil
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
