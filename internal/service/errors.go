package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PartialSeriesError часть повторений серии создана, очередное удалённое
// создание не удалось. Уже закоммиченные повторения остаются, операция
// останавливается и не ретраится автоматически.
type PartialSeriesError struct {
	SeriesID uuid.UUID
	// Succeeded даты успешно созданных повторений в порядке создания
	Succeeded []time.Time
	// Failed дата, на которой серия оборвалась
	Failed time.Time
	Err    error
}

func (e *PartialSeriesError) Error() string {
	return fmt.Sprintf("series %s created partially: %d occurrences committed, failed at %s: %v",
		e.SeriesID, len(e.Succeeded), e.Failed.Format(time.RFC3339), e.Err)
}

func (e *PartialSeriesError) Unwrap() error {
	return e.Err
}
