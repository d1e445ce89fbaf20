// Package users serves user profiles and the call context handed back to the
// voice agent.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nexahq/nexa-backend/internal/app/domain/insight"
	"github.com/nexahq/nexa-backend/internal/app/domain/user"
	"github.com/nexahq/nexa-backend/internal/app/storage"
	"github.com/nexahq/nexa-backend/internal/cache"
	"github.com/nexahq/nexa-backend/internal/phone"
	"github.com/nexahq/nexa-backend/pkg/logger"
)

// ContextTTL is how long assembled user context stays cached.
const ContextTTL = 5 * time.Minute

// recentWindow is how many trailing calls feed the context payload.
const recentWindow = 3

// Interaction is one recent call in the context payload.
type Interaction struct {
	CallNumber     int       `json:"call_number"`
	Timestamp      time.Time `json:"timestamp"`
	NetworkingGoal string    `json:"networking_goal"`
	MeetingType    string    `json:"meeting_type"`
	MeetingStatus  string    `json:"meeting_status"`
	ProposedDate   string    `json:"proposed_date"`
	ProposedTime   string    `json:"proposed_time"`
	CallSummary    string    `json:"call_summary"`
}

// Info is the profile block of the context payload.
type Info struct {
	Name            string    `json:"name"`
	Profession      string    `json:"profession"`
	Bio             string    `json:"bio"`
	Email           string    `json:"email"`
	NexaID          string    `json:"nexa_id"`
	SignupStatus    string    `json:"signup_status"`
	TotalCalls      int       `json:"total_calls"`
	NetworkingGoals []string  `json:"networking_goals"`
	CreatedAt       time.Time `json:"created_at"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Context is the payload served to the voice agent before a call.
type Context struct {
	Exists             bool          `json:"exists"`
	Message            string        `json:"message,omitempty"`
	UserInfo           *Info         `json:"user_info,omitempty"`
	RecentInteractions []Interaction `json:"recent_interactions,omitempty"`
	Timestamp          time.Time     `json:"timestamp"`
}

// Service assembles user context with a read-through cache.
type Service struct {
	store storage.UserStore
	cache cache.Cache
	log   *logger.Logger
}

// New constructs the users service. A nil cache disables caching.
func New(store storage.UserStore, c cache.Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{
		store: store,
		cache: c,
		log:   log,
	}
}

func cacheKey(normalizedPhone string) string {
	return "user-context:" + normalizedPhone
}

// Context returns the context payload for a raw phone number. Unknown users
// yield an exists=false payload rather than an error.
func (s *Service) Context(ctx context.Context, rawPhone string) (Context, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return Context{}, err
	}

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey(normalized)); err == nil {
			var cached Context
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
			// Corrupt entry; drop it and rebuild.
			_ = s.cache.Delete(ctx, cacheKey(normalized))
		}
	}

	payload, err := s.build(ctx, normalized)
	if err != nil {
		return Context{}, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(payload); err == nil {
			if err := s.cache.Set(ctx, cacheKey(normalized), data, ContextTTL); err != nil {
				s.log.WithContext(ctx).WithError(err).Warn("failed to cache user context")
			}
		}
	}
	return payload, nil
}

// Invalidate drops cached context for a normalized phone. Wired as the calls
// service processed-hook.
func (s *Service) Invalidate(ctx context.Context, normalizedPhone string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(normalizedPhone)); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("failed to invalidate user context cache")
	}
}

func (s *Service) build(ctx context.Context, normalized string) (Context, error) {
	u, err := s.store.GetUserByPhone(ctx, normalized)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.WithContext(ctx).WithField("phone", normalized).Info("new user detected")
		return Context{
			Exists:    false,
			Message:   "New user detected",
			Timestamp: time.Now().UTC(),
		}, nil
	}
	if err != nil {
		return Context{}, err
	}

	recent := u.Calls
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}

	var goals []string
	interactions := make([]Interaction, 0, len(recent))
	for _, call := range recent {
		if insight.Mentioned(call.NetworkingGoal) {
			goals = append(goals, call.NetworkingGoal)
		}
		interactions = append(interactions, Interaction{
			CallNumber:     call.CallNumber,
			Timestamp:      call.Timestamp,
			NetworkingGoal: call.NetworkingGoal,
			MeetingType:    call.MeetingType,
			MeetingStatus:  call.MeetingStatus,
			ProposedDate:   call.ProposedMeetingDate,
			ProposedTime:   call.ProposedMeetingTime,
			CallSummary:    call.CallSummary,
		})
	}

	return Context{
		Exists: true,
		UserInfo: &Info{
			Name:            u.Name,
			Profession:      u.Profession,
			Bio:             u.Bio,
			Email:           u.Email,
			NexaID:          u.NexaID,
			SignupStatus:    u.SignupStatus,
			TotalCalls:      len(u.Calls),
			NetworkingGoals: goals,
			CreatedAt:       u.CreatedAt,
			LastUpdated:     u.LastUpdated,
		},
		RecentInteractions: interactions,
		Timestamp:          time.Now().UTC(),
	}, nil
}

// Get returns the raw profile for a raw phone number.
func (s *Service) Get(ctx context.Context, rawPhone string) (user.User, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return user.User{}, err
	}
	return s.store.GetUserByPhone(ctx, normalized)
}
