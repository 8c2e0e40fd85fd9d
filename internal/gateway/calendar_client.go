// Package gateway клиент внешнего календарного провайдера.
// Чтение идёт через read-only ICS-ленту, запись — через JSON API.
// Каждый вызов ограничен фиксированным таймаутом и деградирует
// в различимую ошибку, а не в пустой список.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/TI02-jp/site-sub001/internal/model"
)

// DefaultTimeout верхняя граница одного внешнего вызова
const DefaultTimeout = 10 * time.Second

// Config параметры подключения к провайдеру
type Config struct {
	// FeedURL адрес ICS-ленты с событиями комнаты
	FeedURL string
	// APIBaseURL база JSON API для создания событий
	APIBaseURL string
	APIToken   string
	// Timeout на один вызов; 0 — DefaultTimeout
	Timeout time.Duration
}

// CreateEventRequest запрос на создание события у провайдера
type CreateEventRequest struct {
	Subject        string    `json:"subject"`
	Description    string    `json:"description"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	AttendeeEmails []string  `json:"attendee_emails"`
	Notify         bool      `json:"notify"`
	Conference     bool      `json:"conference"`
}

// CreatedEvent ответ провайдера на создание события
type CreatedEvent struct {
	ID             string `json:"id"`
	ConferenceLink string `json:"conference_link,omitempty"`
}

// Client HTTP-клиент внешнего календаря
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewClient создаёт клиента провайдера
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
		now:    time.Now,
	}
}

// FetchUpcoming забирает ленту провайдера и возвращает события,
// которые ещё не закончились, отсортированные по началу,
// не больше maxResults штук.
func (c *Client) FetchUpcoming(ctx context.Context, maxResults int) ([]model.ExternalEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("fetch upcoming: %w", ErrTimeout)
		}
		return nil, fmt.Errorf("fetch upcoming: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Status: resp.StatusCode, Op: "fetch upcoming"}
	}

	events, err := parseFeed(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse calendar feed: %w", err)
	}

	now := c.now()
	upcoming := events[:0]
	for _, ev := range events {
		if ev.End.Before(now) {
			continue
		}
		upcoming = append(upcoming, ev)
	}

	sort.Slice(upcoming, func(i, j int) bool {
		if !upcoming[i].Start.Equal(upcoming[j].Start) {
			return upcoming[i].Start.Before(upcoming[j].Start)
		}
		return upcoming[i].ID < upcoming[j].ID
	})

	if maxResults > 0 && len(upcoming) > maxResults {
		upcoming = upcoming[:maxResults]
	}

	c.logger.Debug("Fetched external calendar feed",
		zap.Int("events", len(upcoming)),
	)

	return upcoming, nil
}

// CreateEvent создаёт обычное событие у провайдера
func (c *Client) CreateEvent(ctx context.Context, req CreateEventRequest) (*CreatedEvent, error) {
	req.Conference = false
	return c.postEvent(ctx, req)
}

// CreateConferenceEvent создаёт событие со ссылкой на конференцию
func (c *Client) CreateConferenceEvent(ctx context.Context, req CreateEventRequest) (*CreatedEvent, error) {
	req.Conference = true
	return c.postEvent(ctx, req)
}

func (c *Client) postEvent(ctx context.Context, payload CreateEventRequest) (*CreatedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode create event request: %w", err)
	}

	url := strings.TrimRight(c.cfg.APIBaseURL, "/") + "/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build create event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("create event: %w", ErrTimeout)
		}
		return nil, fmt.Errorf("create event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &ProviderError{Status: resp.StatusCode, Op: "create event"}
	}

	var created CreatedEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode create event response: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("create event: provider returned empty event id")
	}

	c.logger.Info("Created external calendar event",
		zap.String("external_event_id", created.ID),
		zap.Bool("conference", payload.Conference),
	)

	return &created, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}
}

// parseFeed разбирает ICS-ленту в список внешних событий
func parseFeed(r io.Reader) ([]model.ExternalEvent, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, err
	}

	events := make([]model.ExternalEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		ev, ok := parseVEvent(ve)
		if !ok {
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

func parseVEvent(ve *ical.VEvent) (model.ExternalEvent, bool) {
	var ev model.ExternalEvent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, false
	}
	ev.ID = uid.Value

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, false
	}
	end, err := ve.GetEndAt()
	if err != nil {
		// События без DTEND считаем точечными
		end = start
	}
	ev.Start = start
	ev.End = end

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Subject = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		email := strings.TrimPrefix(strings.TrimSpace(p.Value), "mailto:")
		if email == "" {
			continue
		}
		ev.AttendeeEmails = append(ev.AttendeeEmails, email)
	}

	// Ссылка на конференцию: провайдер кладёт её в X-свойство,
	// часть инсталляций — в URL
	if p := ve.GetProperty("X-CONFERENCE-LINK"); p != nil {
		ev.ConferenceLink = p.Value
	} else if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil {
		ev.ConferenceLink = p.Value
	}

	return ev, true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
