package model

import (
	"errors"
	"fmt"
	"time"
)

// RecurrenceKind вид повторения серии встреч
type RecurrenceKind string

const (
	RecurrenceNone     RecurrenceKind = "none"
	RecurrenceDaily    RecurrenceKind = "daily"
	RecurrenceWeekly   RecurrenceKind = "weekly"
	RecurrenceBiweekly RecurrenceKind = "biweekly"
	RecurrenceMonthly  RecurrenceKind = "monthly"
	RecurrenceYearly   RecurrenceKind = "yearly"
)

// ErrInvalidRule базовая ошибка валидации правила повторения.
// Все нарушения правила оборачивают её, поэтому проверка через errors.Is.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// RecurrenceRule правило повторения серии встреч
type RecurrenceRule struct {
	Kind RecurrenceKind `json:"kind"`
	// Until включительная дата последнего возможного повторения.
	// Обязательна для всех видов, кроме none.
	Until time.Time `json:"until,omitempty"`
	// Weekdays дни недели для weekly: 0 = понедельник .. 6 = воскресенье.
	// nil — обычный weekly по дню недели первой встречи.
	Weekdays []int `json:"weekdays,omitempty"`
}

// IsRecurring сообщает, описывает ли правило повторяющуюся серию
func (r RecurrenceRule) IsRecurring() bool {
	return r.Kind != "" && r.Kind != RecurrenceNone
}

// Validate проверяет правило относительно даты первой встречи.
// Ничего не должно быть создано, если правило не проходит валидацию.
func (r RecurrenceRule) Validate(firstStart time.Time) error {
	switch r.Kind {
	case "", RecurrenceNone:
		if len(r.Weekdays) > 0 {
			return fmt.Errorf("%w: weekdays are only allowed for weekly recurrence", ErrInvalidRule)
		}
		return nil
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly, RecurrenceYearly:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, r.Kind)
	}

	if r.Until.IsZero() {
		return fmt.Errorf("%w: until is required for recurring rules", ErrInvalidRule)
	}

	// Until должна быть строго позже даты первой встречи
	firstDate := dateOf(firstStart)
	untilDate := dateOf(r.Until)
	if !untilDate.After(firstDate) {
		return fmt.Errorf("%w: until must be after the first occurrence date", ErrInvalidRule)
	}

	if r.Kind != RecurrenceWeekly {
		if len(r.Weekdays) > 0 {
			return fmt.Errorf("%w: weekdays are only allowed for weekly recurrence", ErrInvalidRule)
		}
		return nil
	}

	// Явно переданный пустой набор дней недели — ошибка
	if r.Weekdays != nil && len(r.Weekdays) == 0 {
		return fmt.Errorf("%w: weekday set must not be empty", ErrInvalidRule)
	}

	for _, wd := range r.Weekdays {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("%w: weekday index %d out of range", ErrInvalidRule, wd)
		}
	}

	return nil
}

func dateOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
