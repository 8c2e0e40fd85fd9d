// Package recurrence разворачивает правило повторения в конкретные даты встреч.
// Чистые функции без состояния и без I/O.
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/TI02-jp/site-sub001/internal/model"
)

// Индексы дней недели правила: 0 = понедельник .. 6 = воскресенье
var weekdayByIndex = [7]rrule.Weekday{
	rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU,
}

// Generate возвращает упорядоченный список моментов начала встреч
// по правилу повторения. Каждый результат лежит в [start, конец дня until],
// время суток наследуется от start.
//
//   - none: только start, until игнорируется
//   - weekly с явными weekdays: start попадает в результат, только если
//     его день недели входит в набор
//   - monthly от 31-го числа: месяцы без такого числа пропускаются
//   - yearly от 29 февраля: невисокосные годы пропускаются
//   - until раньше даты start: пустой список, не ошибка
func Generate(start, until time.Time, kind model.RecurrenceKind, weekdays []int) ([]time.Time, error) {
	if kind == "" || kind == model.RecurrenceNone {
		return []time.Time{start}, nil
	}

	untilBound := endOfDay(until)
	if untilBound.Before(start) {
		return []time.Time{}, nil
	}

	opt := rrule.ROption{
		Dtstart: start,
		Until:   untilBound,
	}

	switch kind {
	case model.RecurrenceDaily:
		opt.Freq = rrule.DAILY
	case model.RecurrenceWeekly:
		opt.Freq = rrule.WEEKLY
		byday, err := mapWeekdays(weekdays)
		if err != nil {
			return nil, err
		}
		opt.Byweekday = byday
	case model.RecurrenceBiweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case model.RecurrenceMonthly:
		opt.Freq = rrule.MONTHLY
	case model.RecurrenceYearly:
		opt.Freq = rrule.YEARLY
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", model.ErrInvalidRule, kind)
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build recurrence rule: %w", err)
	}

	return dedupSorted(rule.All()), nil
}

func mapWeekdays(weekdays []int) ([]rrule.Weekday, error) {
	if len(weekdays) == 0 {
		return nil, nil
	}

	seen := make(map[int]struct{}, len(weekdays))
	byday := make([]rrule.Weekday, 0, len(weekdays))
	for _, wd := range weekdays {
		if wd < 0 || wd > 6 {
			return nil, fmt.Errorf("%w: weekday index %d out of range", model.ErrInvalidRule, wd)
		}
		if _, ok := seen[wd]; ok {
			continue
		}
		seen[wd] = struct{}{}
		byday = append(byday, weekdayByIndex[wd])
	}
	return byday, nil
}

// dedupSorted убирает совпадающие моменты из уже отсортированного списка
func dedupSorted(dates []time.Time) []time.Time {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if len(out) > 0 && out[len(out)-1].Equal(d) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func endOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 23, 59, 59, 0, t.Location())
}
