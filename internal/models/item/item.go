package item

import (
	"time"

	"crmTracker/internal/bucket"

	"github.com/google/uuid"
)

// Item - запись напоминания или задачи. Одна структура на оба вида
// сущностей, вид хранится в Kind.
type Item struct {
	UUID        uuid.UUID     `json:"uuid" db:"uuid"`
	Kind        Kind          `json:"kind" db:"kind"`
	UserID      uuid.UUID     `json:"user_id" db:"user_id"`
	AssignedTo  *uuid.UUID    `json:"assigned_to,omitempty" db:"assigned_to"`
	CompletedBy *uuid.UUID    `json:"completed_by,omitempty" db:"completed_by"`
	Name        string        `json:"name" db:"name"`
	AssetKind   AssetKind     `json:"asset_kind,omitempty" db:"asset_kind"`
	AssetID     *uuid.UUID    `json:"asset_id,omitempty" db:"asset_id"`
	Priority    string        `json:"priority,omitempty" db:"priority"`
	Category    string        `json:"category,omitempty" db:"category"`
	Bucket      bucket.Bucket `json:"bucket" db:"bucket"`
	DueAt       *time.Time    `json:"due_at,omitempty" db:"due_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	Background  string        `json:"background,omitempty" db:"background"`
	Calendar    bool          `json:"calendar" db:"calendar"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty" db:"updated_at"`
	DeletedAt   *time.Time    `json:"deleted_at,omitempty" db:"deleted_at"`
	Version     int           `json:"version" db:"version"`
}

func (i *Item) Completed() bool { return i.CompletedAt != nil }
func (i *Item) Deleted() bool   { return i.DeletedAt != nil }

// TrackedBy - виден ли элемент пользователю: владелец, исполнитель
// или завершивший.
func (i *Item) TrackedBy(user uuid.UUID) bool {
	if i.UserID == user {
		return true
	}
	if i.AssignedTo != nil && *i.AssignedTo == user {
		return true
	}
	if i.CompletedBy != nil && *i.CompletedBy == user {
		return true
	}
	return false
}

type Kind string

const (
	KindSubscribe Kind = "subscribe"
	KindTodo      Kind = "todo"
)

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindSubscribe, KindTodo:
		return Kind(s), true
	}
	return "", false
}

// View - перспектива списка. Неизвестный вид молча заменяется первым
// разрешённым.
type View string

const (
	ViewPending      View = "pending"
	ViewAssignedByMe View = "assigned_by_me"
	ViewAssignedToMe View = "assigned_to_me"
	ViewCompleted    View = "completed"
)

var allowedViews = []View{ViewPending, ViewAssignedByMe, ViewAssignedToMe, ViewCompleted}

func AllowedViews() []View {
	out := make([]View, len(allowedViews))
	copy(out, allowedViews)
	return out
}

func NormalizeView(s string) View {
	for _, v := range allowedViews {
		if View(s) == v {
			return v
		}
	}
	return allowedViews[0]
}

// AssetKind - закрытый перечень видов связанных записей CRM.
// Никакого разрешения типов по произвольной строке.
type AssetKind string

const (
	AssetAccount     AssetKind = "account"
	AssetCampaign    AssetKind = "campaign"
	AssetContact     AssetKind = "contact"
	AssetLead        AssetKind = "lead"
	AssetOpportunity AssetKind = "opportunity"
)

var assetKinds = map[AssetKind]struct{}{
	AssetAccount:     {},
	AssetCampaign:    {},
	AssetContact:     {},
	AssetLead:        {},
	AssetOpportunity: {},
}

func ParseAssetKind(s string) (AssetKind, bool) {
	_, ok := assetKinds[AssetKind(s)]
	return AssetKind(s), ok
}

// CategoryOption - пара метка/значение для формы выбора категории.
type CategoryOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Категории из настроек CRM; метки без локализации.
var defaultCategories = []CategoryOption{
	{Label: "Call", Value: "call"},
	{Label: "Email", Value: "email"},
	{Label: "Follow-up", Value: "follow_up"},
	{Label: "Lunch", Value: "lunch"},
	{Label: "Meeting", Value: "meeting"},
	{Label: "Money", Value: "money"},
	{Label: "Presentation", Value: "presentation"},
	{Label: "Trade Show", Value: "trade_show"},
}

func CategoryOptions() []CategoryOption {
	out := make([]CategoryOption, len(defaultCategories))
	copy(out, defaultCategories)
	return out
}
