// Package calls ingests call transcripts: deduplication, persistence, and
// transcript processing into user profiles.
package calls

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nexahq/nexa-backend/internal/app/domain/calllog"
	"github.com/nexahq/nexa-backend/internal/app/domain/insight"
	"github.com/nexahq/nexa-backend/internal/app/domain/user"
	"github.com/nexahq/nexa-backend/internal/app/metrics"
	"github.com/nexahq/nexa-backend/internal/app/services/insights"
	"github.com/nexahq/nexa-backend/internal/app/storage"
	"github.com/nexahq/nexa-backend/internal/phone"
	"github.com/nexahq/nexa-backend/pkg/logger"
)

// ErrDuplicateCall marks a transcript already ingested for a phone number.
var ErrDuplicateCall = errors.New("duplicate call log")

// ErrInvalidPhone wraps phone normalization failures.
var ErrInvalidPhone = phone.ErrInvalidFormat

// Result reports what one ingested transcript produced.
type Result struct {
	User        user.User
	Log         calllog.CallLog
	UserCreated bool
}

// Service processes incoming call transcripts.
type Service struct {
	users     storage.UserStore
	logs      storage.CallLogStore
	extractor insights.Extractor
	log       *logger.Logger

	// onProcessed runs after a transcript is fully processed, with the
	// normalized phone. Used for cache invalidation.
	onProcessed func(ctx context.Context, phone string)
}

// New constructs the calls service.
func New(users storage.UserStore, logs storage.CallLogStore, extractor insights.Extractor, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("calls")
	}
	return &Service{
		users:     users,
		logs:      logs,
		extractor: extractor,
		log:       log,
	}
}

// OnProcessed registers a hook invoked after successful processing.
func (s *Service) OnProcessed(hook func(ctx context.Context, phone string)) {
	s.onProcessed = hook
}

// HashTranscript returns the dedupe key for a transcript.
func HashTranscript(transcript string) string {
	sum := sha256.Sum256([]byte(transcript))
	return hex.EncodeToString(sum[:])
}

// HandleTranscript ingests one transcript for a raw phone number: normalize,
// dedupe against stored logs, persist the raw log, then process it into the
// user profile. Duplicate (phone, transcript) pairs return ErrDuplicateCall.
func (s *Service) HandleTranscript(ctx context.Context, rawPhone, transcript string) (Result, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return Result{}, err
	}

	hash := HashTranscript(transcript)
	if _, err := s.logs.GetCallLog(ctx, normalized, hash); err == nil {
		s.log.WithContext(ctx).WithField("phone", normalized).Warn("duplicate call log detected, skipping")
		return Result{}, ErrDuplicateCall
	}

	entry := calllog.CallLog{
		Phone:          normalized,
		CallSummary:    "Processing...",
		Transcript:     transcript,
		TranscriptHash: hash,
		Timestamp:      time.Now().UTC(),
		Processed:      false,
	}
	stored, err := s.logs.CreateCallLog(ctx, entry)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return Result{}, ErrDuplicateCall
		}
		return Result{}, fmt.Errorf("store call log: %w", err)
	}
	s.log.WithContext(ctx).WithField("phone", normalized).Info("call log stored")

	result, err := s.process(ctx, normalized, transcript, hash)
	if err != nil {
		return Result{}, err
	}
	result.Log = stored

	if s.onProcessed != nil {
		s.onProcessed(ctx, normalized)
	}
	return result, nil
}

// process extracts the insight and updates user + call log records. An
// extraction failure degrades to the default insight; the raw transcript is
// already persisted either way.
func (s *Service) process(ctx context.Context, normalizedPhone, transcript, hash string) (Result, error) {
	start := time.Now()
	ins, err := s.extractor.Extract(ctx, transcript)
	if err != nil {
		metrics.ObserveExtraction("failed", time.Since(start))
		s.log.WithContext(ctx).WithError(err).Error("transcript extraction failed, storing defaults")
		ins = insight.Default()
	} else {
		metrics.ObserveExtraction("ok", time.Since(start))
	}

	bio := ComposeBio(ins.Bio)
	conversation := ParseConversation(transcript)

	u, created, err := s.upsertUser(ctx, normalizedPhone, ins, bio)
	if err != nil {
		return Result{}, err
	}

	callEntry := user.CallEntry{
		CallNumber:          len(u.Calls) + 1,
		Timestamp:           time.Now().UTC(),
		NetworkingGoal:      ins.NetworkingGoal,
		MeetingType:         ins.MeetingType,
		ProposedMeetingDate: ins.ProposedMeetingDate,
		ProposedMeetingTime: ins.ProposedMeetingTime,
		MeetingStatus:       user.MeetingPending,
		Status:              user.CallOngoing,
		CallSummary:         ins.CallSummary,
		Conversation:        conversation,
	}
	u, err = s.users.AppendCall(ctx, normalizedPhone, callEntry)
	if err != nil {
		return Result{}, fmt.Errorf("append call entry: %w", err)
	}

	processedLog, err := s.logs.MarkProcessed(ctx, normalizedPhone, hash, ins.CallSummary, conversation)
	if err != nil {
		return Result{}, fmt.Errorf("mark call log processed: %w", err)
	}

	s.log.WithContext(ctx).
		WithField("phone", normalizedPhone).
		WithField("nexa_id", u.NexaID).
		WithField("call_number", callEntry.CallNumber).
		Info("call processed and user updated")

	return Result{User: u, Log: processedLog, UserCreated: created}, nil
}

// upsertUser creates the profile on first contact or refreshes mentioned
// fields on returning callers.
func (s *Service) upsertUser(ctx context.Context, normalizedPhone string, ins insight.Insight, bio string) (user.User, bool, error) {
	u, err := s.users.GetUserByPhone(ctx, normalizedPhone)
	if errors.Is(err, storage.ErrNotFound) {
		seq, err := s.users.NextNexaSequence(ctx)
		if err != nil {
			return user.User{}, false, fmt.Errorf("issue nexa id: %w", err)
		}

		fresh := user.User{
			NexaID:       fmt.Sprintf("NEXA%05d", seq),
			Name:         ins.Name,
			Email:        ins.Email,
			Phone:        normalizedPhone,
			Profession:   ins.Profession,
			Bio:          bio,
			SignupStatus: user.SignupIncomplete,
			Calls:        []user.CallEntry{},
		}
		created, err := s.users.CreateUser(ctx, fresh)
		if errors.Is(err, storage.ErrDuplicate) {
			// Lost a race with a concurrent ingest; reload and fall through
			// to the update path.
			u, err = s.users.GetUserByPhone(ctx, normalizedPhone)
			if err != nil {
				return user.User{}, false, err
			}
		} else if err != nil {
			return user.User{}, false, fmt.Errorf("create user: %w", err)
		} else {
			s.log.WithContext(ctx).
				WithField("phone", normalizedPhone).
				WithField("nexa_id", created.NexaID).
				Info("new user created")
			return created, true, nil
		}
	} else if err != nil {
		return user.User{}, false, err
	}

	if insight.Mentioned(ins.Name) || insight.Mentioned(ins.Profession) {
		if insight.Mentioned(ins.Name) {
			u.Name = ins.Name
		}
		if insight.Mentioned(ins.Profession) {
			u.Profession = ins.Profession
		}
		u.Bio = bio
		u, err = s.users.UpdateUser(ctx, u)
		if err != nil {
			return user.User{}, false, fmt.Errorf("update user: %w", err)
		}
	}
	return u, false, nil
}

// ComposeBio renders the extracted bio components into a sentence.
func ComposeBio(bio insight.BioComponents) string {
	company := bio.Company
	if !insight.Mentioned(company) {
		company = "their company"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Co-founder at %s ", company)
	if insight.Mentioned(bio.Experience) {
		fmt.Fprintf(&b, "with %s of experience ", bio.Experience)
	}
	if insight.Mentioned(bio.Industry) {
		fmt.Fprintf(&b, "in the %s industry. ", bio.Industry)
	} else {
		b.WriteString(". ")
	}
	if insight.Mentioned(bio.Background) {
		fmt.Fprintf(&b, "%s. ", bio.Background)
	}
	if insight.Mentioned(bio.Achievements) {
		fmt.Fprintf(&b, "Key achievements include %s. ", bio.Achievements)
	}
	if insight.Mentioned(bio.CurrentStatus) {
		fmt.Fprintf(&b, "Currently %s.", bio.CurrentStatus)
	}
	return strings.TrimSpace(b.String())
}

// ParseConversation splits a transcript into conversation turns. Lines
// prefixed "AI: " become bot turns, "User: " user turns; anything else is
// dropped.
func ParseConversation(transcript string) []calllog.Message {
	var messages []calllog.Message
	for _, line := range strings.Split(transcript, "\n") {
		switch {
		case strings.HasPrefix(line, "AI: "):
			messages = append(messages, calllog.Message{Role: "bot", Text: strings.TrimSpace(line[4:])})
		case strings.HasPrefix(line, "User: "):
			messages = append(messages, calllog.Message{Role: "user", Text: strings.TrimSpace(line[6:])})
		}
	}
	return messages
}
