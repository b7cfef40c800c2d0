package postgres

import (
	"context"
	"fmt"
	"os"
	"time"

	"crmTracker/internal/bucket"
	"crmTracker/internal/logger"
	"crmTracker/internal/models/item"
	repo "crmTracker/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Storage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

const itemColumns = `uuid, kind, user_id, assigned_to, completed_by, name,
	asset_kind, asset_id, priority, category, bucket, due_at, completed_at,
	background, calendar, created_at, updated_at, deleted_at, version`

func scanItem(row pgx.Row) (*item.Item, error) {
	it := &item.Item{}
	err := row.Scan(
		&it.UUID,
		&it.Kind,
		&it.UserID,
		&it.AssignedTo,
		&it.CompletedBy,
		&it.Name,
		&it.AssetKind,
		&it.AssetID,
		&it.Priority,
		&it.Category,
		&it.Bucket,
		&it.DueAt,
		&it.CompletedAt,
		&it.Background,
		&it.Calendar,
		&it.CreatedAt,
		&it.UpdatedAt,
		&it.DeletedAt,
		&it.Version,
	)
	return it, err
}

func (s *Storage) Create(ctx context.Context, it *item.Item) error {
	start := time.Now()

	query := `INSERT INTO items
				(uuid, kind, user_id, assigned_to, name, asset_kind, asset_id,
				 priority, category, bucket, due_at, background, calendar, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
				RETURNING created_at, version`

	err := s.pool.QueryRow(ctx, query,
		it.UUID,
		it.Kind,
		it.UserID,
		it.AssignedTo,
		it.Name,
		it.AssetKind,
		it.AssetID,
		it.Priority,
		it.Category,
		it.Bucket,
		it.DueAt,
		it.Background,
		it.Calendar,
		time.Now(),
	).Scan(&it.CreatedAt, &it.Version)

	if err != nil {
		logger.Error("Repository: Не удалось добавить запись", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление записи: %w", err)
	}

	if time.Since(start) > time.Millisecond*50 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func (s *Storage) Update(ctx context.Context, it *item.Item) error {
	start := time.Now()

	query := `UPDATE items
			SET name = $1,
				assigned_to = $2,
				completed_by = $3,
				priority = $4,
				category = $5,
				bucket = $6,
				due_at = $7,
				completed_at = $8,
				background = $9,
				calendar = $10,
				asset_kind = $11,
				asset_id = $12,
				version = version + 1,
				updated_at = NOW()
			WHERE uuid = $13 AND version = $14
			RETURNING updated_at, version`

	err := s.pool.QueryRow(ctx, query,
		it.Name,
		it.AssignedTo,
		it.CompletedBy,
		it.Priority,
		it.Category,
		it.Bucket,
		it.DueAt,
		it.CompletedAt,
		it.Background,
		it.Calendar,
		it.AssetKind,
		it.AssetID,
		it.UUID,
		it.Version,
	).Scan(&it.UpdatedAt, &it.Version)

	if err != nil {
		if err == pgx.ErrNoRows {
			logger.Warn("Repository: Конфликт версий при обновлении",
				zap.String("item_id", it.UUID.String()),
				zap.Int("expected_version", it.Version))
			return repo.ErrVersionConflict
		}
		logger.Error("Repository: Не удалось обновить запись", err)
		return fmt.Errorf("обновление записи: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func (s *Storage) GetByID(ctx context.Context, kind item.Kind, id uuid.UUID) (*item.Item, error) {
	start := time.Now()

	query := `SELECT ` + itemColumns + ` FROM items WHERE uuid = $1 AND kind = $2`

	it, err := scanItem(s.pool.QueryRow(ctx, query, id, kind))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить запись", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение записи: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return it, nil
}

// мягкое удаление записи
func (s *Storage) DeleteSoft(ctx context.Context, it *item.Item) error {
	start := time.Now()

	query := `UPDATE items
				SET deleted_at = NOW(),
				updated_at = NOW(),
				version = version + 1
			WHERE uuid = $1 AND version = $2
			RETURNING deleted_at, version`

	err := s.pool.QueryRow(ctx, query, it.UUID, it.Version).Scan(&it.DeletedAt, &it.Version)

	if err != nil {
		if err == pgx.ErrNoRows {
			logger.Warn("Repository: Конфликт версий при мягком удалении",
				zap.String("item_id", it.UUID.String()),
				zap.Int("expected_version", it.Version))
			return repo.ErrVersionConflict
		}
		logger.Error("Repository: Мягкое удаление записи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("мягкое удаление: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

// viewClause - условие видимости для пары (пользователь, вид).
// Пользователь всегда $2.
func viewClause(view item.View) string {
	switch view {
	case item.ViewAssignedByMe:
		return `completed_at IS NULL AND user_id = $2
				AND assigned_to IS NOT NULL AND assigned_to <> $2`
	case item.ViewAssignedToMe:
		return `completed_at IS NULL AND assigned_to = $2`
	case item.ViewCompleted:
		return `completed_at IS NOT NULL
				AND (user_id = $2 OR assigned_to = $2 OR completed_by = $2)`
	default: // pending
		return `completed_at IS NULL AND user_id = $2 AND assigned_to IS NULL`
	}
}

func (s *Storage) FindAllGrouped(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View) (repo.Grouped, error) {
	start := time.Now()

	query := `SELECT ` + itemColumns + `
				FROM items
				WHERE kind = $1 AND deleted_at IS NULL AND ` + viewClause(view) + `
				ORDER BY due_at ASC NULLS LAST, created_at ASC`

	rows, err := s.pool.Query(ctx, query, kind, user)
	if err != nil {
		logger.Error("Repository: Не удалось получить записи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение записей: %w", err)
	}
	defer rows.Close()

	grouped := repo.Grouped{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования записи", zap.Error(err))
			continue
		}
		grouped[it.Bucket] = append(grouped[it.Bucket], it)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return grouped, nil
}

func (s *Storage) Totals(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View) (repo.Totals, error) {
	start := time.Now()

	query := `SELECT bucket, COUNT(*)
				FROM items
				WHERE kind = $1 AND deleted_at IS NULL AND ` + viewClause(view) + `
				GROUP BY bucket`

	rows, err := s.pool.Query(ctx, query, kind, user)
	if err != nil {
		logger.Error("Repository: Не удалось получить сводку", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение сводки: %w", err)
	}
	defer rows.Close()

	totals := repo.Totals{bucket.All: 0}
	for rows.Next() {
		var b bucket.Bucket
		var count int
		if err := rows.Scan(&b, &count); err != nil {
			logger.Warn("Repository: Ошибка сканирования сводки", zap.Error(err))
			continue
		}
		totals[b] = count
		totals[bucket.All] += count
	}

	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	return totals, nil
}

func (s *Storage) BucketEmpty(ctx context.Context, kind item.Kind, b bucket.Bucket, user uuid.UUID, view item.View) (bool, error) {
	query := `SELECT NOT EXISTS (
				SELECT 1 FROM items
				WHERE kind = $1 AND bucket = $3 AND deleted_at IS NULL AND ` + viewClause(view) + `
			)`

	var empty bool
	if err := s.pool.QueryRow(ctx, query, kind, user, b).Scan(&empty); err != nil {
		logger.Error("Repository: Не удалось проверить корзину", err)
		return false, fmt.Errorf("проверка корзины: %w", err)
	}
	return empty, nil
}

func (s *Storage) FindDueBefore(ctx context.Context, deadline time.Time, limit int) ([]*item.Item, error) {
	start := time.Now()

	query := `SELECT ` + itemColumns + ` FROM items
				WHERE deleted_at IS NULL
					AND completed_at IS NULL
					AND bucket <> 'overdue'
					AND due_at IS NOT NULL
					AND due_at < $1
				LIMIT $2`

	rows, err := s.pool.Query(ctx, query, deadline, limit)
	if err != nil {
		logger.Error("Repository: Не удалось получить записи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение записей: %w", err)
	}
	defer rows.Close()

	items := []*item.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования записи", zap.Error(err))
			continue
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	return items, nil
}

func (s *Storage) Migrate(ctx context.Context) error {
	logger.Info("Попытка миграций")

	initUp, err := os.ReadFile("internal/migrations/001_init.up.sql")
	if err != nil {
		logger.Error("failed to read 001_init.up.sql", err)
		return err
	}

	indexesUp, err := os.ReadFile("internal/migrations/002_indexes.up.sql")
	if err != nil {
		logger.Error("failed to read 002_indexes.up.sql", err)
		return err
	}

	assetsUp, err := os.ReadFile("internal/migrations/003_assets.up.sql")
	if err != nil {
		logger.Error("failed to read 003_assets.up.sql", err)
		return err
	}

	if _, err = s.pool.Exec(ctx, string(initUp)); err != nil {
		logger.Error("failed to apply 001_init", err)
		return err
	}

	if _, err = s.pool.Exec(ctx, string(indexesUp)); err != nil {
		logger.Error("failed to apply 002_indexes", err)
		return err
	}

	if _, err = s.pool.Exec(ctx, string(assetsUp)); err != nil {
		logger.Error("failed to apply 003_assets", err)
		return err
	}

	logger.Info("Миграции применены")
	return nil
}

func (s *Storage) Down(ctx context.Context) error {
	logger.Info("Откат миграций")

	indexesDown, err := os.ReadFile("internal/migrations/002_indexes.down.sql")
	if err != nil {
		logger.Error("failed to read 002_indexes.down.sql", err)
		return err
	}

	initDown, err := os.ReadFile("internal/migrations/001_init.down.sql")
	if err != nil {
		logger.Error("failed to read 001_init.down.sql", err)
		return err
	}

	assetsDown, err := os.ReadFile("internal/migrations/003_assets.down.sql")
	if err != nil {
		logger.Error("failed to read 003_assets.down.sql", err)
		return err
	}

	if _, err = s.pool.Exec(ctx, string(assetsDown)); err != nil {
		logger.Error("failed to rollback 003_assets", err)
		return err
	}

	if _, err = s.pool.Exec(ctx, string(indexesDown)); err != nil {
		logger.Error("failed to rollback 002_indexes", err)
		return err
	}

	if _, err = s.pool.Exec(ctx, string(initDown)); err != nil {
		logger.Error("failed to rollback 001_init", err)
		return err
	}

	return nil
}
