package calllog

import "time"

// Message is a single turn of the recorded conversation.
type Message struct {
	Role string `bson:"role" json:"role"`
	Text string `bson:"message" json:"message"`
}

// CallLog is the raw record of one call: the transcript as delivered plus
// processing state. The (Phone, TranscriptHash) pair is unique.
type CallLog struct {
	ID             string    `bson:"-" json:"id,omitempty"`
	Phone          string    `bson:"Phone" json:"phone"`
	CallSummary    string    `bson:"Call Summary" json:"call_summary"`
	Transcript     string    `bson:"Transcript" json:"transcript"`
	TranscriptHash string    `bson:"Transcript Hash" json:"transcript_hash"`
	Timestamp      time.Time `bson:"Timestamp" json:"timestamp"`
	Processed      bool      `bson:"Processed" json:"processed"`
	Messages       []Message `bson:"Messages,omitempty" json:"messages,omitempty"`
	LastUpdated    time.Time `bson:"Last Updated,omitempty" json:"last_updated,omitempty"`
}
