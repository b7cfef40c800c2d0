package handlers

import (
	"context"

	"crmTracker/internal/bucket"
	"crmTracker/internal/filter"
	"crmTracker/internal/models/item"
	"crmTracker/internal/service"

	"github.com/google/uuid"
)

type ItemsService interface {
	HealthCheck(ctx context.Context) error
	Buckets() bucket.Config
	Index(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View) (*service.IndexResult, error)
	GetByID(ctx context.Context, kind item.Kind, user uuid.UUID, id uuid.UUID) (*item.Item, error)
	Create(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, in service.CreateInput) (*service.MutationResult, error)
	Update(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, id uuid.UUID, options ...item.ItemOption) (*service.MutationResult, error)
	Complete(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, id uuid.UUID, oldBucket bucket.Bucket) (*service.MutationResult, error)
	Uncomplete(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, id uuid.UUID, oldBucket bucket.Bucket) (*service.MutationResult, error)
	Delete(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, id uuid.UUID, oldBucket bucket.Bucket) (*service.MutationResult, error)
	ToggleFilter(ctx context.Context, kind item.Kind, user uuid.UUID, view item.View, b bucket.Bucket, checked bool) (filter.Set, error)
}
