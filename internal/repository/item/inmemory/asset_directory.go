package inmemory

import (
	"context"
	"sync"

	"crmTracker/internal/models/item"

	"github.com/google/uuid"
)

// AssetDirectory - реестр известных записей CRM для проверки ссылок.
// Сами записи живут в остальной части CRM, здесь только их наличие.
type AssetDirectory struct {
	mtx    sync.RWMutex
	assets map[item.AssetKind]map[uuid.UUID]struct{}
}

func NewAssetDirectory() *AssetDirectory {
	return &AssetDirectory{
		assets: make(map[item.AssetKind]map[uuid.UUID]struct{}),
	}
}

func (d *AssetDirectory) Register(kind item.AssetKind, id uuid.UUID) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	if d.assets[kind] == nil {
		d.assets[kind] = make(map[uuid.UUID]struct{})
	}
	d.assets[kind][id] = struct{}{}
}

func (d *AssetDirectory) AssetExists(ctx context.Context, kind item.AssetKind, id uuid.UUID) (bool, error) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	_, ok := d.assets[kind][id]
	return ok, nil
}
