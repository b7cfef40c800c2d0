package worker

import (
	"context"
	"fmt"
	"time"

	"crmTracker/internal/bucket"
	"crmTracker/internal/logger"
	"crmTracker/internal/models/item"
	"crmTracker/internal/repository"

	"go.uber.org/zap"
)

// OverdueWorker периодически переводит записи с прошедшим дедлайном в
// корзину просроченных, чтобы хранимая метка не расходилась с
// вычисляемой.
type OverdueWorker struct {
	repo      repository.ItemRepository
	buckets   bucket.Config
	interval  time.Duration
	batchSize int
}

func NewOverdueWorker(repo repository.ItemRepository, buckets bucket.Config, interval *time.Duration, batchSize *int) *OverdueWorker {
	var intervalToSet time.Duration
	if interval == nil {
		intervalToSet = 5 * time.Minute
	} else {
		intervalToSet = *interval
	}

	var batchToSet int
	if batchSize == nil {
		batchToSet = 100
	} else {
		batchToSet = *batchSize
	}
	return &OverdueWorker{
		repo:      repo,
		buckets:   buckets,
		interval:  intervalToSet,
		batchSize: batchToSet,
	}
}

func (w *OverdueWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Info("Worker: Фоновая проверка записей на просроченность", zap.Time("started_at", time.Now()))
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Фоновая проверка останавливается")
			return
		}
	}
}

func (w *OverdueWorker) Check(ctx context.Context) {
	start := time.Now()

	items, err := w.getDueItems(ctx)
	if err != nil {
		logger.Warn("Worker: ошибка получения записей", zap.Error(err))
		return
	}

	overdueCount := 0
	for _, it := range items {
		if it.Completed() || it.Bucket == w.buckets.OverdueBucket {
			continue
		}

		if err := w.markAsOverdue(ctx, it); err != nil {
			logger.Warn("Worker: Ошибка обновления записи", zap.Error(err))
			continue
		}
		overdueCount++

		if overdueCount > w.batchSize {
			break
		}
	}
	duration := time.Since(start)
	logger.Info(
		"Worker: Завершение проверки записей",
		zap.Duration("ms", duration),
		zap.Int("checked", len(items)),
		zap.Int("overdue", overdueCount),
	)
}

// getDueItems - незавершённые записи с дедлайном до начала текущего дня
func (w *OverdueWorker) getDueItems(ctx context.Context) ([]*item.Item, error) {
	now := time.Now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	items, err := w.repo.FindDueBefore(ctx, day, w.batchSize)
	if err != nil {
		return nil, fmt.Errorf("получение просроченных записей: %w", err)
	}
	return items, nil
}

func (w *OverdueWorker) markAsOverdue(ctx context.Context, it *item.Item) error {
	it.Bucket = w.buckets.OverdueBucket

	err := w.repo.Update(ctx, it)
	if err != nil {
		return fmt.Errorf("обновление корзины: %w", err)
	}
	return nil
}
