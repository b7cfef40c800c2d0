package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crmTracker/internal/bucket"
	"crmTracker/internal/logger"
	"crmTracker/internal/models/item"
	repo "crmTracker/internal/repository"

	"github.com/google/uuid"
)

type ItemStorage struct {
	storage map[uuid.UUID]*item.Item
	mtx     *sync.RWMutex
	ids     []uuid.UUID
}

func NewItemStorage() *ItemStorage {
	return &ItemStorage{
		storage: make(map[uuid.UUID]*item.Item),
		mtx:     &sync.RWMutex{},
		ids:     []uuid.UUID{},
	}
}

func (s *ItemStorage) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *ItemStorage) Create(ctx context.Context, it *item.Item) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	it.CreatedAt = time.Now()
	it.Version = 1

	s.storage[it.UUID] = it
	s.ids = append(s.ids, it.UUID)
	return nil
}

func (s *ItemStorage) Update(ctx context.Context, it *item.Item) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[it.UUID]
	if !ok {
		return repo.ErrNotFound
	}
	if existing.Version != it.Version {
		logger.Warn("Repository: Конфликт версий при обновлении")
		return repo.ErrVersionConflict
	}

	now := time.Now()
	it.UpdatedAt = &now
	it.Version++
	s.storage[it.UUID] = it

	return nil
}

func (s *ItemStorage) GetByID(ctx context.Context, kind item.Kind, id uuid.UUID) (*item.Item, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	it, ok := s.storage[id]
	if !ok || it.Kind != kind {
		return nil, repo.ErrNotFound
	}
	return it, nil
}

// мягкое удаление, запись остаётся в хранилище
func (s *ItemStorage) DeleteSoft(ctx context.Context, it *item.Item) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[it.UUID]
	if !ok {
		return repo.ErrNotFound
	}

	now := time.Now()
	existing.UpdatedAt = &now
	existing.DeletedAt = &now
	existing.Version++

	it.DeletedAt = existing.DeletedAt
	it.Version = existing.Version

	return nil
}

func (s *ItemStorage) FindAllGrouped(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View) (repo.Grouped, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	grouped := repo.Grouped{}
	for _, id := range s.ids {
		it := s.storage[id]
		if !qualifies(it, kind, user, view) {
			continue
		}
		grouped[it.Bucket] = append(grouped[it.Bucket], it)
	}

	// внутри корзины: по дедлайну, nil в конце; порядок создания
	// сохраняется сортировкой со стабильностью
	for _, items := range grouped {
		sort.SliceStable(items, func(a, b int) bool {
			switch {
			case items[a].DueAt == nil:
				return false
			case items[b].DueAt == nil:
				return true
			default:
				return items[a].DueAt.Before(*items[b].DueAt)
			}
		})
	}

	return grouped, nil
}

func (s *ItemStorage) Totals(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View) (repo.Totals, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	totals := repo.Totals{bucket.All: 0}
	for _, id := range s.ids {
		it := s.storage[id]
		if !qualifies(it, kind, user, view) {
			continue
		}
		totals[it.Bucket]++
		totals[bucket.All]++
	}
	return totals, nil
}

func (s *ItemStorage) BucketEmpty(ctx context.Context, kind item.Kind, b bucket.Bucket, user uuid.UUID, view item.View) (bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	for _, id := range s.ids {
		it := s.storage[id]
		if it.Bucket == b && qualifies(it, kind, user, view) {
			return false, nil
		}
	}
	return true, nil
}

func (s *ItemStorage) FindDueBefore(ctx context.Context, deadline time.Time, limit int) ([]*item.Item, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	items := []*item.Item{}
	for _, id := range s.ids {
		if len(items) >= limit {
			break
		}

		it := s.storage[id]
		if it.Deleted() || it.Completed() || it.DueAt == nil {
			continue
		}
		if it.Bucket != bucket.Overdue && it.DueAt.Before(deadline) {
			items = append(items, it)
		}
	}
	return items, nil
}

// qualifies - попадает ли элемент в выборку (вид сущности, пользователь, вид)
func qualifies(it *item.Item, kind item.Kind, user uuid.UUID, view item.View) bool {
	if it.Kind != kind || it.Deleted() {
		return false
	}

	switch view {
	case item.ViewPending:
		return !it.Completed() && it.UserID == user && it.AssignedTo == nil
	case item.ViewAssignedByMe:
		return !it.Completed() && it.UserID == user &&
			it.AssignedTo != nil && *it.AssignedTo != user
	case item.ViewAssignedToMe:
		return !it.Completed() && it.AssignedTo != nil && *it.AssignedTo == user
	case item.ViewCompleted:
		return it.Completed() && it.TrackedBy(user)
	default:
		return false
	}
}
