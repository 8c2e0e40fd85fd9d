package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/TI02-jp/site-sub001/internal/model"
	"github.com/TI02-jp/site-sub001/internal/repository/base"
)

const meetingColumns = `id, subject, description, status, start_at, end_at,
		external_event_id, conference_link, creator_id,
		recurrence_kind, recurrence_until, recurrence_weekdays, series_id,
		created_at, updated_at`

// MeetingRepository управляет записями о встречах в базе данных
type MeetingRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewMeetingRepository создаёт новый репозиторий встреч
func NewMeetingRepository(pool *pgxpool.Pool, logger *zap.Logger) *MeetingRepository {
	return &MeetingRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

// Create создаёт встречу вместе со строками участников в одной транзакции.
// Либо встреча персистится целиком, либо не персистится вовсе.
func (r *MeetingRepository) Create(ctx context.Context, m *model.Meeting) error {
	query := `
		INSERT INTO meetings (subject, description, status, start_at, end_at,
			external_event_id, conference_link, creator_id,
			recurrence_kind, recurrence_until, recurrence_weekdays, series_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	kind := m.Recurrence.Kind
	if kind == "" {
		kind = model.RecurrenceNone
	}

	var until *time.Time
	if !m.Recurrence.Until.IsZero() {
		until = &m.Recurrence.Until
	}

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(
			ctx, query,
			m.Subject,
			m.Description,
			m.Status,
			m.Start,
			m.End,
			m.ExternalEventID,
			m.ConferenceLink,
			m.CreatorID,
			kind,
			until,
			weekdaysToDB(m.Recurrence.Weekdays),
			m.SeriesID,
		).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert meeting: %w", err)
		}

		if err := insertParticipants(ctx, tx, m.ID, m.ParticipantIDs); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}

	return nil
}

// GetByID получает встречу по ID вместе с участниками
func (r *MeetingRepository) GetByID(ctx context.Context, id int64) (*model.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`

	m, err := scanMeeting(r.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get meeting by id: %w", err)
	}

	if err := r.attachParticipants(ctx, []*model.Meeting{m}); err != nil {
		return nil, err
	}

	return m, nil
}

// ListWindow возвращает неотменённые встречи, начинающиеся в окне [from, to],
// с уже загруженными ID участников. Участники для всех встреч грузятся
// одним запросом, без фан-аута по строкам.
func (r *MeetingRepository) ListWindow(ctx context.Context, from, to time.Time) ([]*model.Meeting, error) {
	query := `
		SELECT ` + meetingColumns + `
		FROM meetings
		WHERE status <> $1 AND start_at >= $2 AND start_at <= $3
		ORDER BY start_at, id
	`

	rows, err := r.Query(ctx, query, model.MeetingStatusCancelled, from, to)
	if err != nil {
		return nil, fmt.Errorf("list meetings in window: %w", err)
	}
	defer rows.Close()

	meetings, err := scanMeetings(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachParticipants(ctx, meetings); err != nil {
		return nil, err
	}

	return meetings, nil
}

// GetBySeriesID возвращает все повторения одной серии
func (r *MeetingRepository) GetBySeriesID(ctx context.Context, seriesID uuid.UUID) ([]*model.Meeting, error) {
	query := `
		SELECT ` + meetingColumns + `
		FROM meetings
		WHERE series_id = $1
		ORDER BY start_at, id
	`

	rows, err := r.Query(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("get meetings by series id: %w", err)
	}
	defer rows.Close()

	meetings, err := scanMeetings(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachParticipants(ctx, meetings); err != nil {
		return nil, err
	}

	return meetings, nil
}

// UpdateStatus меняет статус встречи
func (r *MeetingRepository) UpdateStatus(ctx context.Context, id int64, status model.MeetingStatus) error {
	query := `UPDATE meetings SET status = $1, updated_at = now() WHERE id = $2`

	tag, err := r.Pool().Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update meeting status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("meeting not found")
	}

	return nil
}

// SetParticipants транзакционно заменяет набор участников встречи
func (r *MeetingRepository) SetParticipants(ctx context.Context, meetingID int64, userIDs []int64) error {
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM meeting_participants WHERE meeting_id = $1`, meetingID); err != nil {
			return fmt.Errorf("delete participants: %w", err)
		}
		return insertParticipants(ctx, tx, meetingID, userIDs)
	})
	if err != nil {
		return fmt.Errorf("set participants: %w", err)
	}

	return nil
}

// attachParticipants загружает участников для набора встреч одним запросом
func (r *MeetingRepository) attachParticipants(ctx context.Context, meetings []*model.Meeting) error {
	if len(meetings) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(meetings))
	byID := make(map[int64]*model.Meeting, len(meetings))
	for _, m := range meetings {
		m.ParticipantIDs = []int64{}
		ids = append(ids, m.ID)
		byID[m.ID] = m
	}

	query := `
		SELECT meeting_id, user_id
		FROM meeting_participants
		WHERE meeting_id = ANY($1)
		ORDER BY meeting_id, user_id
	`

	rows, err := r.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var meetingID, userID int64
		if err := rows.Scan(&meetingID, &userID); err != nil {
			return fmt.Errorf("scan participant: %w", err)
		}
		if m, ok := byID[meetingID]; ok {
			m.ParticipantIDs = append(m.ParticipantIDs, userID)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate participants: %w", err)
	}

	return nil
}

func insertParticipants(ctx context.Context, tx pgx.Tx, meetingID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO meeting_participants (meeting_id, user_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING
	`

	if _, err := tx.Exec(ctx, query, meetingID, userIDs); err != nil {
		return fmt.Errorf("insert participants: %w", err)
	}

	return nil
}

func scanMeeting(row pgx.Row) (*model.Meeting, error) {
	var (
		m        model.Meeting
		until    *time.Time
		weekdays []int32
	)

	err := row.Scan(
		&m.ID,
		&m.Subject,
		&m.Description,
		&m.Status,
		&m.Start,
		&m.End,
		&m.ExternalEventID,
		&m.ConferenceLink,
		&m.CreatorID,
		&m.Recurrence.Kind,
		&until,
		&weekdays,
		&m.SeriesID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if until != nil {
		m.Recurrence.Until = *until
	}
	m.Recurrence.Weekdays = weekdaysFromDB(weekdays)

	return &m, nil
}

func scanMeetings(rows pgx.Rows) ([]*model.Meeting, error) {
	var meetings []*model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meetings: %w", err)
	}

	return meetings, nil
}

func weekdaysToDB(weekdays []int) []int32 {
	if weekdays == nil {
		return nil
	}
	out := make([]int32, len(weekdays))
	for i, wd := range weekdays {
		out[i] = int32(wd)
	}
	return out
}

func weekdaysFromDB(weekdays []int32) []int {
	if weekdays == nil {
		return nil
	}
	out := make([]int, len(weekdays))
	for i, wd := range weekdays {
		out[i] = int(wd)
	}
	return out
}
