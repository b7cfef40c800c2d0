package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Key - ключ фильтра сайдбара в сессии, "filter_by_<entity>_<view>".
func Key(entity, view string) string {
	return fmt.Sprintf("filter_by_%s_%s", entity, view)
}

// Store - сессионное хранилище значений по пользователям. Запросы
// разных пользователей не пересекаются, одновременные записи одного
// пользователя разрешаются по принципу "последняя запись побеждает".
type Store struct {
	mtx    sync.RWMutex
	values map[uuid.UUID]map[string]string
}

func NewStore() *Store {
	return &Store{
		values: make(map[uuid.UUID]map[string]string),
	}
}

// Get возвращает значение и признак наличия ключа. Пустая строка -
// присутствующее значение, не отсутствие.
func (s *Store) Get(user uuid.UUID, key string) (string, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	bag, ok := s.values[user]
	if !ok {
		return "", false
	}
	value, ok := bag[key]
	return value, ok
}

func (s *Store) Set(user uuid.UUID, key, value string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	bag, ok := s.values[user]
	if !ok {
		bag = make(map[string]string)
		s.values[user] = bag
	}
	bag[key] = value
}

func (s *Store) Delete(user uuid.UUID, key string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if bag, ok := s.values[user]; ok {
		delete(bag, key)
	}
}
