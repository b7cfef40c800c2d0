package postgres

import (
	"context"
	"fmt"
	"time"

	"crmTracker/internal/logger"
	"crmTracker/internal/models/item"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// AssetResolver проверяет существование связанных записей CRM по
// таблице-реестру assets.
type AssetResolver struct {
	pool *pgxpool.Pool
}

func NewAssetResolver(s *Storage) *AssetResolver {
	return &AssetResolver{pool: s.pool}
}

// Register добавляет запись в реестр. Реестр наполняется синхронизацией
// из остальных модулей CRM, повторная регистрация не ошибка.
func (r *AssetResolver) Register(ctx context.Context, kind item.AssetKind, id uuid.UUID, name string) error {
	query := `INSERT INTO assets (uuid, kind, name)
				VALUES ($1, $2, $3)
				ON CONFLICT (kind, uuid) DO UPDATE SET name = EXCLUDED.name`

	if _, err := r.pool.Exec(ctx, query, id, kind, name); err != nil {
		logger.Error("Repository: Не удалось зарегистрировать связанную запись", err,
			zap.String("asset_kind", string(kind)))
		return fmt.Errorf("регистрация связанной записи: %w", err)
	}
	return nil
}

func (r *AssetResolver) AssetExists(ctx context.Context, kind item.AssetKind, id uuid.UUID) (bool, error) {
	start := time.Now()

	query := `SELECT EXISTS (
				SELECT 1 FROM assets WHERE kind = $1 AND uuid = $2
			)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, kind, id).Scan(&exists); err != nil {
		logger.Error("Repository: Не удалось проверить связанную запись", err,
			zap.String("asset_kind", string(kind)))
		return false, fmt.Errorf("проверка связанной записи: %w", err)
	}

	if time.Since(start) > time.Millisecond*50 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return exists, nil
}
