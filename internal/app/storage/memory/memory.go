// Package memory provides an in-memory store implementation. It is safe for
// concurrent use and is primarily intended for tests and local development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nexahq/nexa-backend/internal/app/domain/calllog"
	"github.com/nexahq/nexa-backend/internal/app/domain/user"
	"github.com/nexahq/nexa-backend/internal/app/storage"
)

// Store is the in-memory implementation of the storage interfaces.
type Store struct {
	mu           sync.RWMutex
	nexaSequence int64
	users        map[string]user.User       // keyed by phone
	callLogs     map[string]calllog.CallLog // keyed by phone+"\x00"+hash
	logOrder     []string                   // insertion order of callLogs keys
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.CallLogStore = (*Store)(nil)
var _ storage.Pinger = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]user.User),
		callLogs: make(map[string]calllog.CallLog),
	}
}

func logKey(phone, hash string) string { return phone + "\x00" + hash }

// UserStore implementation ----------------------------------------------------

func (s *Store) GetUserByPhone(_ context.Context, phone string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[phone]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", phone, storage.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.Phone]; exists {
		return user.User{}, fmt.Errorf("user %s: %w", u.Phone, storage.ErrDuplicate)
	}

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.LastUpdated = now
	s.users[u.Phone] = cloneUser(u)
	return cloneUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.Phone]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", u.Phone, storage.ErrNotFound)
	}

	u.CreatedAt = original.CreatedAt
	u.LastUpdated = time.Now().UTC()
	s.users[u.Phone] = cloneUser(u)
	return cloneUser(u), nil
}

func (s *Store) AppendCall(_ context.Context, phone string, entry user.CallEntry) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[phone]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", phone, storage.ErrNotFound)
	}

	u.Calls = append(u.Calls, cloneEntry(entry))
	u.LastUpdated = time.Now().UTC()
	s.users[phone] = u
	return cloneUser(u), nil
}

func (s *Store) NextNexaSequence(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nexaSequence++
	return s.nexaSequence, nil
}

// CallLogStore implementation -------------------------------------------------

func (s *Store) CreateCallLog(_ context.Context, log calllog.CallLog) (calllog.CallLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := logKey(log.Phone, log.TranscriptHash)
	if _, exists := s.callLogs[key]; exists {
		return calllog.CallLog{}, fmt.Errorf("call log %s: %w", key, storage.ErrDuplicate)
	}

	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	log.ID = key
	s.callLogs[key] = cloneLog(log)
	s.logOrder = append(s.logOrder, key)
	return cloneLog(log), nil
}

func (s *Store) GetCallLog(_ context.Context, phone, transcriptHash string) (calllog.CallLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.callLogs[logKey(phone, transcriptHash)]
	if !ok {
		return calllog.CallLog{}, fmt.Errorf("call log: %w", storage.ErrNotFound)
	}
	return cloneLog(log), nil
}

func (s *Store) MarkProcessed(_ context.Context, phone, transcriptHash, summary string, messages []calllog.Message) (calllog.CallLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := logKey(phone, transcriptHash)
	log, ok := s.callLogs[key]
	if !ok {
		return calllog.CallLog{}, fmt.Errorf("call log: %w", storage.ErrNotFound)
	}

	log.CallSummary = summary
	log.Messages = append([]calllog.Message(nil), messages...)
	log.Processed = true
	log.LastUpdated = time.Now().UTC()
	s.callLogs[key] = cloneLog(log)
	return cloneLog(log), nil
}

func (s *Store) ListRecentCallLogs(_ context.Context, limit int) ([]calllog.CallLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.logOrder) {
		limit = len(s.logOrder)
	}

	out := make([]calllog.CallLog, 0, limit)
	for i := len(s.logOrder) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneLog(s.callLogs[s.logOrder[i]]))
	}
	return out, nil
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(context.Context) error { return nil }

// clone helpers ---------------------------------------------------------------

func cloneUser(u user.User) user.User {
	out := u
	out.Calls = make([]user.CallEntry, len(u.Calls))
	for i, c := range u.Calls {
		out.Calls[i] = cloneEntry(c)
	}
	return out
}

func cloneEntry(c user.CallEntry) user.CallEntry {
	out := c
	out.Conversation = append([]calllog.Message(nil), c.Conversation...)
	out.FinalizedMeetingDate = clonePtr(c.FinalizedMeetingDate)
	out.FinalizedMeetingTime = clonePtr(c.FinalizedMeetingTime)
	out.MeetingLink = clonePtr(c.MeetingLink)
	return out
}

func cloneLog(l calllog.CallLog) calllog.CallLog {
	out := l
	out.Messages = append([]calllog.Message(nil), l.Messages...)
	return out
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
