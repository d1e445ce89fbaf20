// Package storage defines the persistence interfaces for the backend.
package storage

import (
	"context"
	"errors"

	"github.com/nexahq/nexa-backend/internal/app/domain/calllog"
	"github.com/nexahq/nexa-backend/internal/app/domain/user"
)

// Sentinel errors shared by every store implementation.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// UserStore persists user profiles.
type UserStore interface {
	GetUserByPhone(ctx context.Context, phone string) (user.User, error)
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	AppendCall(ctx context.Context, phone string, entry user.CallEntry) (user.User, error)

	// NextNexaSequence atomically issues the next value of the Nexa ID
	// sequence.
	NextNexaSequence(ctx context.Context) (int64, error)
}

// CallLogStore persists raw call logs.
type CallLogStore interface {
	CreateCallLog(ctx context.Context, log calllog.CallLog) (calllog.CallLog, error)
	GetCallLog(ctx context.Context, phone, transcriptHash string) (calllog.CallLog, error)
	MarkProcessed(ctx context.Context, phone, transcriptHash, summary string, messages []calllog.Message) (calllog.CallLog, error)
	ListRecentCallLogs(ctx context.Context, limit int) ([]calllog.CallLog, error)
}

// Pinger reports backend connectivity for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
