// Package credentials keeps the officectl session tokens in a local bbolt file
// so a signed-in user survives between invocations.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/lexdesk/officeauth/domain"
)

const (
	bucketName     = "sessions"
	DefaultAccount = "default"
)

// Store saves one session per named account.
type Store struct {
	db      *bolt.DB
	account []byte
}

// Open creates the file (0600) and bucket when missing.
func Open(path, account string) (*Store, error) {
	if path == "" {
		return nil, errors.New("credentials: path is required")
	}
	if account == "" {
		account = DefaultAccount
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("credentials: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, account: []byte(account)}, nil
}

// Load returns (nil, nil) when nothing is stored for the account.
func (s *Store) Load(ctx context.Context) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var session *domain.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucketName)).Get(s.account)
		if raw == nil {
			return nil
		}
		session = &domain.Session{}
		return json.Unmarshal(raw, session)
	})
	if err != nil {
		return nil, fmt.Errorf("credentials: load: %w", err)
	}
	return session, nil
}

func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil || session.RefreshToken == "" {
		return domain.NewError(domain.ErrCodeInvalid, "session without refresh token")
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put(s.account, raw)
	})
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete(s.account)
	})
}

// Accounts lists every account with stored tokens.
func (s *Store) Accounts() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
