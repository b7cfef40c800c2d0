package dto

import (
	"time"

	"crmTracker/internal/bucket"
	"crmTracker/internal/filter"
	"crmTracker/internal/models/item"
	"crmTracker/internal/repository"
	"crmTracker/internal/service"

	"github.com/google/uuid"
)

type CreateItemRequest struct {
	Name       string     `json:"name"`
	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
	Priority   string     `json:"priority,omitempty"`
	Category   string     `json:"category,omitempty"`
	Bucket     string     `json:"bucket,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	Background string     `json:"background,omitempty"`
	Calendar   bool       `json:"calendar,omitempty"`
	Related    string     `json:"related,omitempty"`
}

func (r CreateItemRequest) ToInput() service.CreateInput {
	return service.CreateInput{
		Name:       r.Name,
		AssignedTo: r.AssignedTo,
		Priority:   r.Priority,
		Category:   r.Category,
		Bucket:     bucket.Bucket(r.Bucket),
		DueAt:      r.DueAt,
		Background: r.Background,
		Calendar:   r.Calendar,
		Related:    r.Related,
	}
}

type UpdateItemRequest struct {
	Name       *string    `json:"name,omitempty"`
	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
	Priority   *string    `json:"priority,omitempty"`
	Category   *string    `json:"category,omitempty"`
	Bucket     *string    `json:"bucket,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	Background *string    `json:"background,omitempty"`
	Calendar   *bool      `json:"calendar,omitempty"`
}

// ToOptions превращает присланные поля в набор опций обновления.
// Отсутствующие поля не трогаются.
func (r UpdateItemRequest) ToOptions() []item.ItemOption {
	var opts []item.ItemOption
	if r.Name != nil {
		opts = append(opts, item.WithName(*r.Name))
	}
	if r.AssignedTo != nil {
		opts = append(opts, item.WithAssignedTo(r.AssignedTo))
	}
	if r.Priority != nil {
		opts = append(opts, item.WithPriority(*r.Priority))
	}
	if r.Category != nil {
		opts = append(opts, item.WithCategory(*r.Category))
	}
	if r.Bucket != nil {
		opts = append(opts, item.WithBucket(bucket.Bucket(*r.Bucket)))
	}
	if r.DueAt != nil {
		opts = append(opts, item.WithDueAt(r.DueAt))
	}
	if r.Background != nil {
		opts = append(opts, item.WithBackground(*r.Background))
	}
	if r.Calendar != nil {
		opts = append(opts, item.WithCalendar(*r.Calendar))
	}
	return opts
}

// BucketStateRequest несёт корзину, из которой элемент ушёл по
// сведениям клиента: по ней проверяется опустение.
type BucketStateRequest struct {
	Bucket string `json:"bucket,omitempty"`
}

type ToggleFilterRequest struct {
	Bucket  string `json:"bucket"`
	Checked bool   `json:"checked"`
}

type ItemResponse struct {
	UUID        uuid.UUID  `json:"id"`
	Kind        string     `json:"kind"`
	UserID      uuid.UUID  `json:"user_id"`
	AssignedTo  *uuid.UUID `json:"assigned_to,omitempty"`
	CompletedBy *uuid.UUID `json:"completed_by,omitempty"`
	Name        string     `json:"name"`
	AssetKind   string     `json:"asset_kind,omitempty"`
	AssetID     *uuid.UUID `json:"asset_id,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Category    string     `json:"category,omitempty"`
	Bucket      string     `json:"bucket"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Background  string     `json:"background,omitempty"`
	Calendar    bool       `json:"calendar,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Version     int        `json:"version"`
}

func FromItem(it *item.Item) ItemResponse {
	return ItemResponse{
		UUID:        it.UUID,
		Kind:        string(it.Kind),
		UserID:      it.UserID,
		AssignedTo:  it.AssignedTo,
		CompletedBy: it.CompletedBy,
		Name:        it.Name,
		AssetKind:   string(it.AssetKind),
		AssetID:     it.AssetID,
		Priority:    it.Priority,
		Category:    it.Category,
		Bucket:      string(it.Bucket),
		DueAt:       it.DueAt,
		CompletedAt: it.CompletedAt,
		Background:  it.Background,
		Calendar:    it.Calendar,
		Completed:   it.Completed(),
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
		Version:     it.Version,
	}
}

func FromItemList(items []*item.Item) []ItemResponse {
	result := make([]ItemResponse, len(items))
	for i, it := range items {
		result[i] = FromItem(it)
	}
	return result
}

// BucketGroup - одна корзина списка: метка, заголовок и элементы в
// порядке дедлайнов.
type BucketGroup struct {
	Bucket string         `json:"bucket"`
	Label  string         `json:"label"`
	Items  []ItemResponse `json:"items"`
}

type IndexResponse struct {
	View    string         `json:"view"`
	Groups  []BucketGroup  `json:"groups"`
	Totals  map[string]int `json:"totals"`
	Filters []string       `json:"filters"`
}

// FromIndex раскладывает группы в порядке Config.Order, пустые корзины
// пропускаются.
func FromIndex(result *service.IndexResult, cfg bucket.Config) IndexResponse {
	groups := make([]BucketGroup, 0, len(result.Groups))
	for _, b := range cfg.Order {
		items, ok := result.Groups[b]
		if !ok || len(items) == 0 {
			continue
		}
		groups = append(groups, BucketGroup{
			Bucket: string(b),
			Label:  cfg.Labels[b],
			Items:  FromItemList(items),
		})
	}

	return IndexResponse{
		View:    string(result.View),
		Groups:  groups,
		Totals:  fromTotals(result.Sidebar.Totals),
		Filters: fromFilters(result.Sidebar.Filters),
	}
}

type MutationResponse struct {
	Item        ItemResponse `json:"item"`
	EmptyBucket string       `json:"empty_bucket,omitempty"`
	Filters     []string     `json:"filters"`
}

func FromMutation(result *service.MutationResult) MutationResponse {
	resp := MutationResponse{
		Item:    FromItem(result.Item),
		Filters: fromFilters(result.Filters),
	}
	if result.EmptyBucket != nil {
		resp.EmptyBucket = string(*result.EmptyBucket)
	}
	return resp
}

func fromTotals(totals repository.Totals) map[string]int {
	out := make(map[string]int, len(totals))
	for b, n := range totals {
		out[string(b)] = n
	}
	return out
}

func fromFilters(set filter.Set) []string {
	labels := set.Labels()
	out := make([]string, len(labels))
	for i, b := range labels {
		out[i] = string(b)
	}
	return out
}
