package repository

import (
	"context"
	"errors"
	"time"

	"crmTracker/internal/bucket"
	"crmTracker/internal/models/item"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("запись не найдена")
var ErrVersionConflict = errors.New("конфликт версий")

// Grouped - элементы, разложенные по корзинам. Внутри корзины порядок
// стабильный: по дедлайну, затем по порядку создания.
type Grouped map[bucket.Bucket][]*item.Item

// Totals - сводка по корзинам, включая агрегат "all".
type Totals map[bucket.Bucket]int

// ItemRepository - контракт хранилища элементов. Видимость везде
// определяется парой (пользователь, вид); мягко удалённые элементы
// исключаются.
type ItemRepository interface {
	HealthCheck(ctx context.Context) error

	Create(ctx context.Context, it *item.Item) error
	Update(ctx context.Context, it *item.Item) error
	GetByID(ctx context.Context, kind item.Kind, id uuid.UUID) (*item.Item, error)
	DeleteSoft(ctx context.Context, it *item.Item) error

	FindAllGrouped(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View) (Grouped, error)
	Totals(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View) (Totals, error)
	BucketEmpty(ctx context.Context, kind item.Kind, b bucket.Bucket, user uuid.UUID, view item.View) (bool, error)

	// для фонового пересчёта корзин
	FindDueBefore(ctx context.Context, deadline time.Time, limit int) ([]*item.Item, error)
}

// AssetResolver проверяет существование связанной записи CRM по паре
// (вид, идентификатор).
type AssetResolver interface {
	AssetExists(ctx context.Context, kind item.AssetKind, id uuid.UUID) (bool, error)
}
