// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tourdesk/internal/models"
)

// BadgerStore keeps the session in a BadgerDB directory.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database at path. An empty path opens an
// in-memory database, which tests use.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for session: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// User implements Store.
func (s *BadgerStore) User(_ context.Context) (*models.User, error) {
	var user models.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(KeyUser))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AccessToken implements Store.
func (s *BadgerStore) AccessToken(_ context.Context) (string, error) {
	var token string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(KeyAccessToken))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get access token: %w", err)
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("read access token: %w", err)
		}
		token = string(val)
		return nil
	})
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// Save implements Store. Both keys are written in one transaction.
func (s *BadgerStore) Save(_ context.Context, user *models.User, token string) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(KeyUser), data); err != nil {
			return fmt.Errorf("set user: %w", err)
		}
		if err := txn.Set([]byte(KeyAccessToken), []byte(token)); err != nil {
			return fmt.Errorf("set access token: %w", err)
		}
		return nil
	})
}

// ReplaceAccessToken implements Store. The reads join the transaction, so a
// concurrent Clear or Save fails the commit, reported as ErrTokenChanged.
func (s *BadgerStore) ReplaceAccessToken(_ context.Context, old, token string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(KeyUser)); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		item, err := txn.Get([]byte(KeyAccessToken))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get access token: %w", err)
		}
		current, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("read access token: %w", err)
		}
		if string(current) != old {
			return ErrTokenChanged
		}
		if err := txn.Set([]byte(KeyAccessToken), []byte(token)); err != nil {
			return fmt.Errorf("set access token: %w", err)
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return ErrTokenChanged
	}
	return err
}

// Clear implements Store.
func (s *BadgerStore) Clear(_ context.Context) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{KeyUser, KeyAccessToken} {
			if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
