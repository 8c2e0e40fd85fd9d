package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TI02-jp/site-sub001/internal/cache"
	"github.com/TI02-jp/site-sub001/internal/gateway"
	"github.com/TI02-jp/site-sub001/internal/model"
	"github.com/TI02-jp/site-sub001/internal/recurrence"
)

// SeriesService создаёт серии повторяющихся встреч:
// раскрывает правило в даты, создаёт событие у провайдера
// и персистит локальную запись на каждое повторение.
type SeriesService struct {
	meetings MeetingStore
	users    IdentityStore
	gw       CalendarGateway
	cache    EventCache
	logger   *zap.Logger
}

// NewSeriesService создаёт новый сервис серий
func NewSeriesService(
	meetings MeetingStore,
	users IdentityStore,
	gw CalendarGateway,
	eventCache EventCache,
	logger *zap.Logger,
) *SeriesService {
	return &SeriesService{
		meetings: meetings,
		users:    users,
		gw:       gw,
		cache:    eventCache,
		logger:   logger,
	}
}

// CreateSeriesInput параметры создания серии
type CreateSeriesInput struct {
	Subject        string
	Description    string
	Start          time.Time
	End            time.Time
	Rule           model.RecurrenceRule
	CreatorID      int64
	ParticipantIDs []int64
	// Conference запросить у провайдера ссылку на конференцию
	Conference bool
	// Notify просить провайдера разослать приглашения
	Notify bool
}

// SeriesResult результат создания серии
type SeriesResult struct {
	SeriesID    uuid.UUID
	Occurrences []*model.Meeting
}

// CreateSeries создаёт серию встреч по правилу повторения.
//
// Порядок фиксирован: правило валидируется до любой персистенции;
// первое повторение создаётся и персистится до раскрытия правила;
// остальные даты обрабатываются по порядку. Если удалённое создание
// падает посреди серии, уже закоммиченные повторения остаются,
// операция останавливается и возвращает *PartialSeriesError
// с точным списком успевших дат.
func (s *SeriesService) CreateSeries(ctx context.Context, input CreateSeriesInput) (*SeriesResult, error) {
	if !input.End.After(input.Start) {
		return nil, fmt.Errorf("meeting end must be after start")
	}
	if err := input.Rule.Validate(input.Start); err != nil {
		return nil, err
	}

	attendeeEmails, err := s.attendeeEmails(ctx, input.ParticipantIDs)
	if err != nil {
		return nil, err
	}

	seriesID := uuid.New()
	duration := input.End.Sub(input.Start)

	result := &SeriesResult{SeriesID: seriesID}

	// Первое повторение создаётся до раскрытия правила: сбой генерации
	// не должен оставить пользователя вообще без встречи.
	first, err := s.createOccurrence(ctx, input, seriesID, input.Start, duration, attendeeEmails)
	if err != nil {
		return nil, fmt.Errorf("create first occurrence: %w", err)
	}
	result.Occurrences = append(result.Occurrences, first)

	dates, err := recurrence.Generate(input.Start, input.Rule.Until, input.Rule.Kind, input.Rule.Weekdays)
	if err != nil {
		return result, fmt.Errorf("expand recurrence: %w", err)
	}

	for _, date := range dates {
		if date.Equal(input.Start) {
			continue
		}

		occ, err := s.createOccurrence(ctx, input, seriesID, date, duration, attendeeEmails)
		if err != nil {
			s.invalidateFeed()
			return result, &PartialSeriesError{
				SeriesID:  seriesID,
				Succeeded: occurrenceDates(result.Occurrences),
				Failed:    date,
				Err:       err,
			}
		}
		result.Occurrences = append(result.Occurrences, occ)
	}

	s.invalidateFeed()

	s.logger.Info("Meeting series created",
		zap.String("series_id", seriesID.String()),
		zap.Int("occurrences", len(result.Occurrences)),
		zap.String("kind", string(input.Rule.Kind)),
	)

	return result, nil
}

// GetSeries возвращает все повторения серии
func (s *SeriesService) GetSeries(ctx context.Context, seriesID uuid.UUID) ([]*model.Meeting, error) {
	return s.meetings.GetBySeriesID(ctx, seriesID)
}

// createOccurrence создаёт одно повторение: сначала событие у провайдера,
// затем локальная запись с участниками в одной транзакции
func (s *SeriesService) createOccurrence(
	ctx context.Context,
	input CreateSeriesInput,
	seriesID uuid.UUID,
	start time.Time,
	duration time.Duration,
	attendeeEmails []string,
) (*model.Meeting, error) {
	req := gateway.CreateEventRequest{
		Subject:        input.Subject,
		Description:    input.Description,
		Start:          start,
		End:            start.Add(duration),
		AttendeeEmails: attendeeEmails,
		Notify:         input.Notify,
	}

	var (
		created *gateway.CreatedEvent
		err     error
	)
	if input.Conference {
		created, err = s.gw.CreateConferenceEvent(ctx, req)
	} else {
		created, err = s.gw.CreateEvent(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	// Снимок правила штампуется на каждое повторение как есть:
	// набор weekdays не перевычисляется по отдельным датам.
	meeting := &model.Meeting{
		Subject:         input.Subject,
		Description:     input.Description,
		Status:          model.MeetingStatusScheduled,
		Start:           start,
		End:             start.Add(duration),
		ExternalEventID: &created.ID,
		ConferenceLink:  created.ConferenceLink,
		CreatorID:       input.CreatorID,
		ParticipantIDs:  input.ParticipantIDs,
		Recurrence:      input.Rule,
		SeriesID:        &seriesID,
	}

	if err := s.meetings.Create(ctx, meeting); err != nil {
		return nil, err
	}

	return meeting, nil
}

func (s *SeriesService) attendeeEmails(ctx context.Context, participantIDs []int64) ([]string, error) {
	users, err := s.users.GetByIDs(ctx, participantIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve participants: %w", err)
	}

	emails := make([]string, 0, len(users))
	for _, u := range users {
		if u.Email == "" {
			continue
		}
		emails = append(emails, u.Email)
	}
	return emails, nil
}

// invalidateFeed сбрасывает кэш внешней ленты: удалённые создания уже
// сделали её содержимое устаревшим, следующее чтение должно перечитать
func (s *SeriesService) invalidateFeed() {
	s.cache.Invalidate(cache.KeyRawExternalEvents)
}

func occurrenceDates(meetings []*model.Meeting) []time.Time {
	dates := make([]time.Time, len(meetings))
	for i, m := range meetings {
		dates[i] = m.Start
	}
	return dates
}
