package user

import (
	"time"

	"github.com/nexahq/nexa-backend/internal/app/domain/calllog"
)

// Statuses recorded on users and their call entries.
const (
	SignupIncomplete = "Incomplete"
	SignupComplete   = "Complete"

	MeetingPending = "Pending Confirmation"
	CallOngoing    = "Ongoing"
)

// CallEntry is the processed view of one call embedded in a user document.
type CallEntry struct {
	CallNumber           int               `bson:"Call Number" json:"call_number"`
	Timestamp            time.Time         `bson:"Timestamp" json:"timestamp"`
	NetworkingGoal       string            `bson:"Networking Goal" json:"networking_goal"`
	MeetingType          string            `bson:"Meeting Type" json:"meeting_type"`
	ProposedMeetingDate  string            `bson:"Proposed Meeting Date" json:"proposed_date"`
	ProposedMeetingTime  string            `bson:"Proposed Meeting Time" json:"proposed_time"`
	MeetingStatus        string            `bson:"Meeting Status" json:"meeting_status"`
	FinalizedMeetingDate *string           `bson:"Finalized Meeting Date" json:"finalized_date"`
	FinalizedMeetingTime *string           `bson:"Finalized Meeting Time" json:"finalized_time"`
	MeetingLink          *string           `bson:"Meeting Link" json:"meeting_link"`
	ParticipantsNotified bool              `bson:"Participants Notified" json:"participants_notified"`
	Status               string            `bson:"Status" json:"status"`
	CallSummary          string            `bson:"Call Summary" json:"call_summary"`
	Conversation         []calllog.Message `bson:"Conversation" json:"conversation"`
}

// User is a networking-assistant profile keyed by normalized phone number.
type User struct {
	NexaID       string      `bson:"Nexa ID" json:"nexa_id"`
	Name         string      `bson:"Name" json:"name"`
	Email        string      `bson:"Email" json:"email"`
	Phone        string      `bson:"Phone" json:"phone"`
	Profession   string      `bson:"Profession" json:"profession"`
	Bio          string      `bson:"Bio" json:"bio"`
	SignupStatus string      `bson:"Signup Status" json:"signup_status"`
	Calls        []CallEntry `bson:"Calls" json:"calls"`
	CreatedAt    time.Time   `bson:"Created At" json:"created_at"`
	LastUpdated  time.Time   `bson:"Last Updated" json:"last_updated"`
}
