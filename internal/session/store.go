// Package session keeps the login sessions of the directory service in a
// bbolt database, keyed by the cookie handed to the browser.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketSession = "session"

	// cookieBytes is the number of random bytes in a cookie; the cookie
	// is their lowercase hex encoding.
	cookieBytes = 32

	// timeLayout formats timestamps stored in session data.
	timeLayout = "20060102150405"
)

// Keys with special meaning in session data.
const (
	KeyAuthor         = "AUT"
	KeyTimeLastAccess = "TLA"
	KeyTimeCreated    = "TCR"
	KeyAccessCount    = "CNT"
)

// Expiry is how long a session lasts without being touched.
const Expiry = time.Hour

// ErrNoSession is returned when no session matches a cookie.
var ErrNoSession = errors.New("no such session")

var initDB = map[string]func(*bolt.Tx) error{
	"initialize session table": func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketSession))
		return err
	},
}

// Store is a session database.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens, creating if needed, the session database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("error opening session database %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for name, fn := range initDB {
			if err := fn(tx); err != nil {
				return fmt.Errorf("failed to %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create starts a session for author holding data, and returns its cookie.
// Expired sessions are removed first. The author and timestamps always come
// from Create, whatever data holds for those keys.
func (s *Store) Create(author string, data map[string]string) (string, error) {
	now := s.now()
	stored := map[string]string{}
	for k, v := range data {
		Apply(stored, Set(k, v))
	}
	Apply(stored,
		Set(KeyTimeCreated, now.Format(timeLayout)),
		Set(KeyTimeLastAccess, now.Format(timeLayout)),
		Set(KeyAuthor, author),
	)

	var cookie string
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSession))
		if err := purge(b, now.Add(-Expiry)); err != nil {
			return err
		}
		for {
			c, err := newCookie()
			if err != nil {
				return err
			}
			if b.Get([]byte(c)) == nil {
				cookie = c
				break
			}
		}
		return b.Put([]byte(cookie), []byte(EncodeData(stored)))
	})
	if err != nil {
		return "", err
	}
	return cookie, nil
}

// Get returns the data of the session with the passed cookie.
func (s *Store) Get(cookie string) (map[string]string, error) {
	var data map[string]string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketSession)).Get([]byte(cookie))
		if v == nil {
			return ErrNoSession
		}
		data = DecodeData(string(v))
		return nil
	})
	return data, err
}

// Touch records an access to the session: its last access time is set to now
// and its access count incremented. The session's data is returned.
func (s *Store) Touch(cookie string) (map[string]string, error) {
	return s.Update(cookie,
		Set(KeyTimeLastAccess, s.now().Format(timeLayout)),
		Increment(KeyAccessCount),
	)
}

// Update applies updates to the data of the session with the passed cookie
// and returns the result.
func (s *Store) Update(cookie string, updates ...Update) (map[string]string, error) {
	var data map[string]string
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSession))
		v := b.Get([]byte(cookie))
		if v == nil {
			return ErrNoSession
		}
		data = Apply(DecodeData(string(v)), updates...)
		return b.Put([]byte(cookie), []byte(EncodeData(data)))
	})
	return data, err
}

// Delete removes the session with the passed cookie. Deleting a session that
// doesn't exist is not an error.
func (s *Store) Delete(cookie string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSession)).Delete([]byte(cookie))
	})
}

// DeleteByAuthor removes every session belonging to author.
func (s *Store) DeleteByAuthor(author string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSession))
		var doomed [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if DecodeData(string(v))[KeyAuthor] == author {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// purge deletes sessions last accessed before cutoff.
func purge(b *bolt.Bucket, cutoff time.Time) error {
	limit := cutoff.Format(timeLayout)
	var expired [][]byte
	err := b.ForEach(func(k, v []byte) error {
		if DecodeData(string(v))[KeyTimeLastAccess] < limit {
			expired = append(expired, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range expired {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func newCookie() (string, error) {
	buf := make([]byte, cookieBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("error generating cookie: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
