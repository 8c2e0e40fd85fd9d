package model

import "time"

// ExternalEvent событие внешнего календаря.
// Не персистится: живёт только в кэше и в собранном представлении.
type ExternalEvent struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	Description    string    `json:"description"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	AttendeeEmails []string  `json:"attendee_emails"`
	ConferenceLink string    `json:"conference_link,omitempty"`
}
