package model

import (
	"time"

	"github.com/google/uuid"
)

// MeetingStatus статус встречи
type MeetingStatus string

const (
	MeetingStatusScheduled MeetingStatus = "scheduled"
	MeetingStatusCancelled MeetingStatus = "cancelled"
	MeetingStatusCompleted MeetingStatus = "completed"
)

// Meeting локальная запись о встрече (один ряд на каждое повторение серии).
// Отмена встречи — смена статуса, записи никогда не удаляются и не сливаются.
type Meeting struct {
	ID          int64         `json:"id"`
	Subject     string        `json:"subject"`
	Description string        `json:"description"`
	Status      MeetingStatus `json:"status"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`

	// ExternalEventID ссылка на событие во внешнем календаре.
	// Это не отношение владения: внешнее событие живёт своей жизнью.
	ExternalEventID *string `json:"external_event_id,omitempty"`
	ConferenceLink  string  `json:"conference_link,omitempty"`

	CreatorID      int64   `json:"creator_id"`
	ParticipantIDs []int64 `json:"participant_ids"`

	// Recurrence снимок правила на момент создания серии.
	// Kind = none для одиночных встреч.
	Recurrence RecurrenceRule `json:"recurrence"`
	// SeriesID общий идентификатор всех повторений одной серии
	SeriesID *uuid.UUID `json:"series_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
