package storage

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"docqa/internal/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// BadgerTurnStore keeps conversation turns in an embedded Badger database.
// Keys are turn/<hex session>/<big-endian unix nanos> so a reverse prefix scan
// yields the newest turns first.
type BadgerTurnStore struct {
	db     *badger.DB
	logger *slog.Logger
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(msg string, args ...any)   { l.logger.Error(fmt.Sprintf(msg, args...)) }
func (l badgerLogger) Warningf(msg string, args ...any) { l.logger.Warn(fmt.Sprintf(msg, args...)) }
func (l badgerLogger) Infof(msg string, args ...any)    { l.logger.Debug(fmt.Sprintf(msg, args...)) }
func (l badgerLogger) Debugf(msg string, args ...any)   { l.logger.Debug(fmt.Sprintf(msg, args...)) }

// OpenBadgerTurnStore opens (or creates) the store at dir. An empty dir
// selects an in-memory store.
func OpenBadgerTurnStore(dir string) (*BadgerTurnStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	logger := slog.Default().With("component", "badger-turns")
	opts.Logger = badgerLogger{logger: logger}
	opts.Compression = options.None
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerTurnStore{db: db, logger: logger}, nil
}

func (s *BadgerTurnStore) Close() error {
	return s.db.Close()
}

func sessionPrefix(sessionID string) []byte {
	return []byte("turn/" + hex.EncodeToString([]byte(sessionID)) + "/")
}

func turnKey(t models.ConversationTurn) []byte {
	key := sessionPrefix(t.SessionID)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(t.Timestamp.UnixNano()))
	return append(key, ts[:]...)
}

func (s *BadgerTurnStore) Append(ctx context.Context, t models.ConversationTurn) error {
	_ = ctx
	val, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	if err := s.db.Update(func(tx *badger.Txn) error {
		return tx.Set(turnKey(t), val)
	}); err != nil {
		return fmt.Errorf("write turn: %w", err)
	}
	return nil
}

// Recent returns up to limit turns of a session, newest first.
func (s *BadgerTurnStore) Recent(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error) {
	_ = ctx
	prefix := sessionPrefix(sessionID)
	out := make([]models.ConversationTurn, 0, limit)
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration starts at the greatest key <= seek key.
		seek := append(append([]byte{}, prefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		for iter.Seek(seek); iter.ValidForPrefix(prefix) && len(out) < limit; iter.Next() {
			var t models.ConversationTurn
			if err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			}); err != nil {
				return fmt.Errorf("decode turn: %w", err)
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}
	return out, nil
}

func (s *BadgerTurnStore) DeleteSession(ctx context.Context, sessionID string) error {
	_ = ctx
	if err := s.db.DropPrefix(sessionPrefix(sessionID)); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}
