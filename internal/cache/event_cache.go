// Package cache хранит сырую ленту внешнего календаря с ограниченным TTL.
// Кэш только советующий: при недоступности провайдера читатели могут
// забрать просроченное значение через GetStale.
package cache

import (
	"sync"
	"time"

	"github.com/TI02-jp/site-sub001/internal/model"
)

// KeyRawExternalEvents логическая корзина для сырой ленты провайдера
const KeyRawExternalEvents = "raw-external-events"

// DefaultTTL срок жизни записи по умолчанию.
// Тюнится через конфигурацию; старые инсталляции работали с 30 секундами.
const DefaultTTL = 300 * time.Second

type entry struct {
	events    []model.ExternalEvent
	expiresAt time.Time
}

// Store потокобезопасный TTL-кэш списков внешних событий.
// Блокировка никогда не держится на время сетевых вызовов:
// снаружи сначала выполняется fetch, и только результат пишется под локом.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time // подменяется в тестах
}

// NewStore создаёт пустой кэш
func NewStore() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get возвращает непросроченное значение по ключу.
// Чтение после expiresAt — промах.
func (s *Store) Get(key string) ([]model.ExternalEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || s.now().After(e.expiresAt) {
		return nil, false
	}
	return e.events, true
}

// GetStale возвращает значение по ключу независимо от срока жизни.
// expired = true, если запись уже просрочена.
func (s *Store) GetStale(key string) (events []model.ExternalEvent, expired bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, found := s.entries[key]
	if !found {
		return nil, false, false
	}
	return e.events, s.now().After(e.expiresAt), true
}

// Set заменяет запись целиком и сбрасывает срок жизни на now + ttl.
// Значение копируется, поэтому читатель никогда не увидит частичную запись.
func (s *Store) Set(key string, events []model.ExternalEvent, ttl time.Duration) {
	copied := make([]model.ExternalEvent, len(events))
	copy(copied, events)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{
		events:    copied,
		expiresAt: s.now().Add(ttl),
	}
}

// Invalidate удаляет запись по ключу
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}
