package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/TI02-jp/site-sub001/internal/cache"
	"github.com/TI02-jp/site-sub001/internal/model"
)

// ReconcileService собирает внешнюю ленту и локальные встречи
// в одно упорядоченное представление календаря
type ReconcileService struct {
	meetings   MeetingStore
	users      IdentityStore
	gw         CalendarGateway
	cache      EventCache
	ttl        time.Duration
	maxResults int
	group      singleflight.Group
	logger     *zap.Logger
}

// NewReconcileService создаёт новый сервис сборки календаря
func NewReconcileService(
	meetings MeetingStore,
	users IdentityStore,
	gw CalendarGateway,
	eventCache EventCache,
	ttl time.Duration,
	maxResults int,
	logger *zap.Logger,
) *ReconcileService {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &ReconcileService{
		meetings:   meetings,
		users:      users,
		gw:         gw,
		cache:      eventCache,
		ttl:        ttl,
		maxResults: maxResults,
		logger:     logger,
	}
}

// CombineEvents собирает представление календаря для окна [from, to]:
// локальные неотменённые встречи плюс внешняя лента, слитые без дубликатов
// и отсортированные по началу. Недоступность провайдера не роняет чтение,
// пока в кэше есть хоть какое-то значение — представление помечается
// как устаревшее.
func (s *ReconcileService) CombineEvents(ctx context.Context, from, to time.Time) (*model.ReconciledView, error) {
	locals, err := s.meetings.ListWindow(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list local meetings: %w", err)
	}

	externals, freshness, err := s.fetchExternal(ctx)
	if err != nil {
		return nil, err
	}

	usersByID, err := s.resolveIdentities(ctx, locals)
	if err != nil {
		return nil, err
	}

	usersByEmail, err := s.resolveAttendees(ctx, externals)
	if err != nil {
		return nil, err
	}

	merged := mergeEvents(locals, externals, usersByID, usersByEmail)

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].Start.Equal(merged[j].Start) {
			return merged[i].Start.Before(merged[j].Start)
		}
		return merged[i].OccurrenceID() < merged[j].OccurrenceID()
	})

	return &model.ReconciledView{
		Events:    merged,
		Freshness: freshness,
	}, nil
}

// RefreshFeed принудительно перечитывает ленту провайдера и обновляет кэш.
// Используется фоновым прогревом.
func (s *ReconcileService) RefreshFeed(ctx context.Context) error {
	events, err := s.gw.FetchUpcoming(ctx, s.maxResults)
	if err != nil {
		return fmt.Errorf("refresh external feed: %w", err)
	}

	s.cache.Set(cache.KeyRawExternalEvents, events, s.ttl)

	s.logger.Debug("External feed refreshed",
		zap.Int("events", len(events)),
	)

	return nil
}

// fetchExternal отдаёт внешнюю ленту из кэша или от провайдера.
// Сетевой вызов выполняется вне лока кэша; одновременные промахи
// схлопываются в один вызов через singleflight. При ошибке провайдера
// возвращается последнее кэшированное значение, даже просроченное.
func (s *ReconcileService) fetchExternal(ctx context.Context) ([]model.ExternalEvent, model.Freshness, error) {
	if events, ok := s.cache.Get(cache.KeyRawExternalEvents); ok {
		return events, model.FreshnessPrimaryCache, nil
	}

	v, err, _ := s.group.Do(cache.KeyRawExternalEvents, func() (interface{}, error) {
		events, err := s.gw.FetchUpcoming(ctx, s.maxResults)
		if err != nil {
			return nil, err
		}
		s.cache.Set(cache.KeyRawExternalEvents, events, s.ttl)
		return events, nil
	})
	if err != nil {
		if stale, expired, ok := s.cache.GetStale(cache.KeyRawExternalEvents); ok {
			s.logger.Warn("Serving external events from cache after gateway failure",
				zap.Bool("expired", expired),
				zap.Error(err),
			)
			return stale, model.FreshnessStaleCache, nil
		}
		return nil, "", fmt.Errorf("fetch external events: %w", err)
	}

	return v.([]model.ExternalEvent), model.FreshnessFresh, nil
}

// resolveIdentities грузит создателей и участников всех встреч
// одним батч-запросом
func (s *ReconcileService) resolveIdentities(ctx context.Context, meetings []*model.Meeting) (map[int64]*model.User, error) {
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, m := range meetings {
		for _, id := range append([]int64{m.CreatorID}, m.ParticipantIDs...) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve meeting identities: %w", err)
	}

	byID := make(map[int64]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

// resolveAttendees резолвит все email внешних событий одним батч-запросом
func (s *ReconcileService) resolveAttendees(ctx context.Context, events []model.ExternalEvent) (map[string]*model.User, error) {
	seen := make(map[string]struct{})
	emails := make([]string, 0)
	for _, ev := range events {
		for _, email := range ev.AttendeeEmails {
			key := strings.ToLower(email)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			emails = append(emails, email)
		}
	}

	users, err := s.users.GetByEmails(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("resolve attendee emails: %w", err)
	}

	byEmail := make(map[string]*model.User, len(users))
	for _, u := range users {
		byEmail[strings.ToLower(u.Email)] = u
	}
	return byEmail, nil
}

// mergeEvents сливает локальные встречи и внешние события.
// Локальная встреча с совпавшим external_event_id даёт одну запись both:
// тема, описание и статус — локальные, ссылка на конференцию — внешняя,
// если локальной нет. Один и тот же внешний ID попадает в результат
// не больше одного раза.
func mergeEvents(
	locals []*model.Meeting,
	externals []model.ExternalEvent,
	usersByID map[int64]*model.User,
	usersByEmail map[string]*model.User,
) []model.ReconciledEvent {
	externalByID := make(map[string]model.ExternalEvent, len(externals))
	for _, ev := range externals {
		externalByID[ev.ID] = ev
	}

	merged := make([]model.ReconciledEvent, 0, len(locals)+len(externals))
	matched := make(map[string]struct{})

	for _, m := range locals {
		rec := model.ReconciledEvent{
			Origin:         model.OriginLocal,
			Subject:        m.Subject,
			Description:    m.Description,
			Status:         m.Status,
			Start:          m.Start,
			End:            m.End,
			ConferenceLink: m.ConferenceLink,
			MeetingID:      &m.ID,
			Attendees:      participantAttendees(m, usersByID),
		}

		if m.ExternalEventID != nil {
			if ext, ok := externalByID[*m.ExternalEventID]; ok {
				rec.Origin = model.OriginBoth
				rec.ExternalEventID = ext.ID
				if rec.ConferenceLink == "" {
					rec.ConferenceLink = ext.ConferenceLink
				}
				matched[ext.ID] = struct{}{}
			}
		}

		merged = append(merged, rec)
	}

	for _, ev := range externals {
		if _, ok := matched[ev.ID]; ok {
			continue
		}
		merged = append(merged, model.ReconciledEvent{
			Origin:          model.OriginExternal,
			Subject:         ev.Subject,
			Description:     ev.Description,
			Start:           ev.Start,
			End:             ev.End,
			ConferenceLink:  ev.ConferenceLink,
			ExternalEventID: ev.ID,
			Attendees:       emailAttendees(ev.AttendeeEmails, usersByEmail),
		})
	}

	return merged
}

func participantAttendees(m *model.Meeting, usersByID map[int64]*model.User) []model.Attendee {
	attendees := make([]model.Attendee, 0, len(m.ParticipantIDs))
	for _, id := range m.ParticipantIDs {
		u, ok := usersByID[id]
		if !ok {
			continue
		}
		attendees = append(attendees, model.Attendee{
			Email:    u.Email,
			Username: u.Username,
		})
	}
	return attendees
}

func emailAttendees(emails []string, usersByEmail map[string]*model.User) []model.Attendee {
	attendees := make([]model.Attendee, 0, len(emails))
	for _, email := range emails {
		a := model.Attendee{Email: email}
		if u, ok := usersByEmail[strings.ToLower(email)]; ok {
			a.Username = u.Username
		}
		attendees = append(attendees, a)
	}
	return attendees
}
