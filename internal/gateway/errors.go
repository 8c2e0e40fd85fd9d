package gateway

import (
	"errors"
	"fmt"
)

// ErrTimeout внешний вызов не уложился в отведённый таймаут.
// Читающий путь реагирует откатом на кэш, пишущий — отчётом о частичном успехе.
var ErrTimeout = errors.New("calendar gateway timeout")

// ProviderError ошибка уровня провайдера (не-2xx ответ API или ленты)
type ProviderError struct {
	Status int
	Op     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("calendar provider error: %s: status %d", e.Op, e.Status)
}
