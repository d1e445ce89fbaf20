package insight

// NotMentioned is the sentinel recorded for every field the transcript does
// not cover.
const NotMentioned = "Not Mentioned"

// BioComponents are the profile fragments used to compose a user's bio.
type BioComponents struct {
	Company       string `json:"Company"`
	Experience    string `json:"Experience"`
	Industry      string `json:"Industry"`
	Background    string `json:"Background"`
	Achievements  string `json:"Achievements"`
	CurrentStatus string `json:"Current_Status"`
}

// Insight is the structured information extracted from one transcript.
type Insight struct {
	Name                string        `json:"Name"`
	Email               string        `json:"Email"`
	Profession          string        `json:"Profession"`
	Bio                 BioComponents `json:"Bio_Components"`
	NetworkingGoal      string        `json:"Networking Goal"`
	MeetingType         string        `json:"Meeting Type"`
	ProposedMeetingDate string        `json:"Proposed Meeting Date"`
	ProposedMeetingTime string        `json:"Proposed Meeting Time"`
	CallSummary         string        `json:"Call Summary"`
}

// Default returns an insight with every field set to the sentinel.
func Default() Insight {
	return Insight{
		Name:       NotMentioned,
		Email:      NotMentioned,
		Profession: NotMentioned,
		Bio: BioComponents{
			Company:       NotMentioned,
			Experience:    NotMentioned,
			Industry:      NotMentioned,
			Background:    NotMentioned,
			Achievements:  NotMentioned,
			CurrentStatus: NotMentioned,
		},
		NetworkingGoal:      NotMentioned,
		MeetingType:         NotMentioned,
		ProposedMeetingDate: NotMentioned,
		ProposedMeetingTime: NotMentioned,
		CallSummary:         NotMentioned,
	}
}

// Mentioned reports whether a field value carries real content.
func Mentioned(value string) bool {
	return value != "" && value != NotMentioned
}
