package model

import (
	"fmt"
	"time"
)

// EventOrigin источник записи в собранном представлении
type EventOrigin string

const (
	OriginLocal    EventOrigin = "local"
	OriginExternal EventOrigin = "external"
	// OriginBoth локальная встреча, у которой нашлось внешнее событие
	// по external_event_id
	OriginBoth EventOrigin = "both"
)

// Freshness маркер актуальности собранного представления
type Freshness string

const (
	// FreshnessFresh внешняя лента получена от провайдера в этом же запросе
	FreshnessFresh Freshness = "fresh"
	// FreshnessPrimaryCache лента отдана из непросроченного кэша
	FreshnessPrimaryCache Freshness = "primary-cache"
	// FreshnessStaleCache лента отдана из просроченного кэша,
	// потому что провайдер был недоступен
	FreshnessStaleCache Freshness = "stale-cache"
)

// Attendee участник события с резолвом во внутреннего пользователя.
// Username пустой, если email не нашёлся среди пользователей портала.
type Attendee struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// ReconciledEvent одна запись собранного представления календаря
type ReconciledEvent struct {
	Origin          EventOrigin   `json:"origin"`
	Subject         string        `json:"subject"`
	Description     string        `json:"description"`
	Status          MeetingStatus `json:"status,omitempty"`
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	ConferenceLink  string        `json:"conference_link,omitempty"`
	MeetingID       *int64        `json:"meeting_id,omitempty"`
	ExternalEventID string        `json:"external_event_id,omitempty"`
	Attendees       []Attendee    `json:"attendees"`
}

// OccurrenceID стабильный идентификатор записи.
// Используется для детерминированной сортировки при равных Start.
func (e ReconciledEvent) OccurrenceID() string {
	if e.ExternalEventID != "" {
		return e.ExternalEventID
	}
	if e.MeetingID != nil {
		return fmt.Sprintf("local-%d", *e.MeetingID)
	}
	return ""
}

// ReconciledView результат слияния внешней ленты и локальных встреч
type ReconciledView struct {
	Events    []ReconciledEvent `json:"events"`
	Freshness Freshness         `json:"freshness"`
}
