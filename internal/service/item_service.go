package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crmTracker/internal/bucket"
	"crmTracker/internal/filter"
	"crmTracker/internal/logger"
	"crmTracker/internal/models/item"
	repo "crmTracker/internal/repository"
	"crmTracker/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// здесь бизнес-логика: классификация корзин и сверка фильтров сайдбара
// при каждом изменении элемента

type ItemService struct {
	repo     repo.ItemRepository
	sessions *session.Store
	assets   repo.AssetResolver
	buckets  bucket.Config
	now      func() time.Time
}

func NewItemService(r repo.ItemRepository, sessions *session.Store, assets repo.AssetResolver, buckets bucket.Config) ItemService {
	return ItemService{
		repo:     r,
		sessions: sessions,
		assets:   assets,
		buckets:  buckets,
		now:      time.Now,
	}
}

// WithClock подменяет источник времени, для тестов
func (s *ItemService) WithClock(now func() time.Time) {
	s.now = now
}

func (s *ItemService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("проверка здоровья сервиса: %w", err)
	}
	return nil
}

func (s *ItemService) Buckets() bucket.Config { return s.buckets }

// Sidebar - данные для отрисовки фильтров: сводка по корзинам и
// действующий набор фильтров.
type Sidebar struct {
	Totals  repo.Totals
	Filters filter.Set
}

type IndexResult struct {
	View    item.View
	Groups  repo.Grouped
	Sidebar Sidebar
}

// MutationResult - явный результат изменения вместо сквозного
// состояния: элемент, опустевшая корзина (если есть) и обновлённый
// набор фильтров.
type MutationResult struct {
	Item        *item.Item
	EmptyBucket *bucket.Bucket
	Filters     filter.Set
}

type CreateInput struct {
	Name       string
	AssignedTo *uuid.UUID
	Priority   string
	Category   string
	Bucket     bucket.Bucket
	DueAt      *time.Time
	Background string
	Calendar   bool
	Related    string // "<вид>_<uuid>", например "account_<uuid>"
}

// Index возвращает сгруппированный список и сайдбар. Если фильтры в
// сессии отсутствуют, создаются по умолчанию из сводки.
func (s *ItemService) Index(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View) (*IndexResult, error) {
	groups, err := s.repo.FindAllGrouped(ctx, kind, user, view)
	if err != nil {
		return nil, fmt.Errorf("получение записей: %w", err)
	}

	totals, err := s.repo.Totals(ctx, kind, user, view)
	if err != nil {
		return nil, fmt.Errorf("получение сводки: %w", err)
	}

	key := session.Key(string(kind), string(view))
	raw, ok := s.sessions.Get(user, key)
	var filters filter.Set
	if ok {
		filters = filter.Parse(raw)
	} else {
		filters = filter.DefaultSet(totals, s.buckets)
		if filters.Len() != 0 {
			s.sessions.Set(user, key, filters.String())
		}
	}

	return &IndexResult{
		View:    view,
		Groups:  groups,
		Sidebar: Sidebar{Totals: totals, Filters: filters},
	}, nil
}

func (s *ItemService) GetByID(ctx context.Context, kind item.Kind, user uuid.UUID, id uuid.UUID) (*item.Item, error) {
	it, err := s.tracked(ctx, kind, user, id)
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (s *ItemService) Create(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, in CreateInput) (*MutationResult, error) {
	if in.Name == "" {
		return nil, NewValidationError("name", "пустое значение")
	}

	assetKind, assetID, err := s.resolveRelated(ctx, in.Related)
	if err != nil {
		return nil, err
	}

	it := &item.Item{
		UUID:       uuid.New(),
		Kind:       kind,
		UserID:     user,
		AssignedTo: in.AssignedTo,
		Name:       in.Name,
		AssetKind:  assetKind,
		AssetID:    assetID,
		Priority:   in.Priority,
		Category:   in.Category,
		DueAt:      in.DueAt,
		Background: in.Background,
		Calendar:   in.Calendar,
	}
	it.Bucket = s.buckets.ComputedBucket(in.Bucket, it.DueAt, nil, s.now())

	if err := s.repo.Create(ctx, it); err != nil {
		return nil, fmt.Errorf("создание записи: %w", err)
	}

	filters := s.reconcile(user, kind, view, filter.Created, "", it.Bucket, false)

	logger.Info("Service: Запись создана",
		zap.String("item_id", it.UUID.String()),
		zap.String("bucket", string(it.Bucket)))

	return &MutationResult{Item: it, Filters: filters}, nil
}

func (s *ItemService) Update(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, id uuid.UUID, options ...item.ItemOption) (*MutationResult, error) {
	it, err := s.tracked(ctx, kind, user, id)
	if err != nil {
		return nil, err
	}

	// корзина до изменения: просроченные считаются overdue независимо
	// от номинальной метки
	today := s.now()
	var beforeBucket bucket.Bucket
	if it.DueAt != nil && it.DueAt.Before(startOfDay(today)) && !it.Completed() {
		beforeBucket = s.buckets.OverdueBucket
	} else {
		beforeBucket = s.buckets.ComputedBucket(it.Bucket, it.DueAt, it.CompletedAt, today)
	}

	for _, opt := range options {
		if opt != nil {
			opt(it)
		}
	}
	it.Bucket = s.buckets.ComputedBucket(it.Bucket, it.DueAt, it.CompletedAt, today)

	if err := s.update(ctx, it); err != nil {
		return nil, err
	}

	return s.afterMutation(ctx, it, user, view, filter.Updated, beforeBucket)
}

// Complete завершает элемент. oldBucket - корзина, из которой элемент
// ушёл, по сведениям вызывающей стороны.
func (s *ItemService) Complete(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, id uuid.UUID, oldBucket bucket.Bucket) (*MutationResult, error) {
	it, err := s.tracked(ctx, kind, user, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	completer := user
	it.CompletedAt = &now
	it.CompletedBy = &completer
	it.Bucket = s.buckets.CompletedBucket

	if err := s.update(ctx, it); err != nil {
		return nil, err
	}

	return s.afterMutation(ctx, it, user, view, filter.Completed, oldBucket)
}

// Uncomplete возвращает элемент в работу. Сайдбар сверяется всегда,
// одинаково для обоих видов сущностей; новая корзина заранее в фильтры
// не добавляется.
func (s *ItemService) Uncomplete(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, id uuid.UUID, oldBucket bucket.Bucket) (*MutationResult, error) {
	it, err := s.tracked(ctx, kind, user, id)
	if err != nil {
		return nil, err
	}

	it.CompletedAt = nil
	it.CompletedBy = nil
	it.Bucket = s.buckets.ComputedBucket("", it.DueAt, nil, s.now())

	if err := s.update(ctx, it); err != nil {
		return nil, err
	}

	return s.afterMutation(ctx, it, user, view, filter.Uncompleted, oldBucket)
}

func (s *ItemService) Delete(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, id uuid.UUID, oldBucket bucket.Bucket) (*MutationResult, error) {
	it, err := s.tracked(ctx, kind, user, id)
	if err != nil {
		return nil, err
	}

	if oldBucket == "" {
		oldBucket = it.Bucket
	}

	if err := s.repo.DeleteSoft(ctx, it); err != nil {
		if errors.Is(err, repo.ErrVersionConflict) {
			return nil, NewVersionConflict(id.String())
		}
		return nil, fmt.Errorf("удаление записи: %w", err)
	}

	return s.afterMutation(ctx, it, user, view, filter.Deleted, oldBucket)
}

// ToggleFilter добавляет или убирает корзину в фильтрах сессии.
func (s *ItemService) ToggleFilter(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, b bucket.Bucket, checked bool) (filter.Set, error) {
	if !s.buckets.Contains(b) {
		return filter.Set{}, NewValidationError("filter", "неизвестная корзина "+string(b))
	}

	key := session.Key(string(kind), string(view))
	raw, _ := s.sessions.Get(user, key)
	set := filter.Parse(raw)
	if checked {
		set.Add(b)
	} else {
		set.Remove(b)
	}
	s.sessions.Set(user, key, set.String())
	return set, nil
}

// tracked ищет элемент среди видимых пользователю
func (s *ItemService) tracked(ctx context.Context, kind item.Kind, user uuid.UUID, id uuid.UUID) (*item.Item, error) {
	it, err := s.repo.GetByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Info("Service: Запись не найдена", zap.String("target_id", id.String()))
			return nil, NewNotFound(string(kind), id.String())
		}
		return nil, fmt.Errorf("получение записи: %w", err)
	}
	if it.Deleted() || !it.TrackedBy(user) {
		return nil, NewNotFound(string(kind), id.String())
	}
	return it, nil
}

func (s *ItemService) update(ctx context.Context, it *item.Item) error {
	if err := s.repo.Update(ctx, it); err != nil {
		if errors.Is(err, repo.ErrVersionConflict) {
			return NewVersionConflict(it.UUID.String())
		}
		return fmt.Errorf("обновление записи: %w", err)
	}
	return nil
}

// afterMutation проверяет опустевшую корзину и сверяет фильтры
func (s *ItemService) afterMutation(ctx context.Context, it *item.Item, user uuid.UUID, view item.View, m filter.Mutation, oldBucket bucket.Bucket) (*MutationResult, error) {
	result := &MutationResult{Item: it}

	empty := false
	if oldBucket != "" {
		var err error
		empty, err = s.repo.BucketEmpty(ctx, it.Kind, oldBucket, user, view)
		if err != nil {
			// сигнал пустоты не критичен, сайдбар выправится на
			// следующей полной загрузке
			logger.Warn("Service: Не удалось проверить корзину", zap.Error(err))
			empty = false
		}
	}
	if empty {
		b := oldBucket
		result.EmptyBucket = &b
	}

	result.Filters = s.reconcile(user, it.Kind, view, m, oldBucket, it.Bucket, empty)
	return result, nil
}

func (s *ItemService) reconcile(user uuid.UUID, kind item.Kind, view item.View, m filter.Mutation, oldB, newB bucket.Bucket, empty bool) filter.Set {
	key := session.Key(string(kind), string(view))
	raw, _ := s.sessions.Get(user, key)
	set := filter.Reconcile(filter.Parse(raw), m, oldB, newB, empty)
	s.sessions.Set(user, key, set.String())
	return set
}

// resolveRelated разбирает ссылку "<вид>_<uuid>" и проверяет её по
// закрытому перечню видов и реестру записей
func (s *ItemService) resolveRelated(ctx context.Context, related string) (item.AssetKind, *uuid.UUID, error) {
	if related == "" {
		return "", nil, nil
	}

	parts := strings.SplitN(related, "_", 2)
	if len(parts) != 2 {
		return "", nil, NewValidationError("related", "ожидается формат <вид>_<id>")
	}

	kind, ok := item.ParseAssetKind(parts[0])
	if !ok {
		return "", nil, NewInvalidAssetKind(parts[0])
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return "", nil, NewValidationError("related", "неверный идентификатор")
	}

	exists, err := s.assets.AssetExists(ctx, kind, id)
	if err != nil {
		return "", nil, fmt.Errorf("проверка связанной записи: %w", err)
	}
	if !exists {
		logger.Info("Service: Связанная запись не найдена",
			zap.String("asset_kind", string(kind)),
			zap.String("asset_id", id.String()))
		return "", nil, NewRelatedNotFound(string(kind), id.String())
	}

	return kind, &id, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
