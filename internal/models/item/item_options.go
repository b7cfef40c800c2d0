package item

import (
	"time"

	"crmTracker/internal/bucket"

	"github.com/google/uuid"
)

// ItemOption - функция обновления одного поля. Набор опций и есть
// допустимый список изменяемых полей.
type ItemOption func(*Item)

func WithName(name string) ItemOption {
	if name == "" {
		return nil
	}
	return func(i *Item) {
		i.Name = name
	}
}

func WithAssignedTo(assignee *uuid.UUID) ItemOption {
	return func(i *Item) {
		i.AssignedTo = assignee
	}
}

func WithPriority(priority string) ItemOption {
	return func(i *Item) {
		i.Priority = priority
	}
}

func WithCategory(category string) ItemOption {
	return func(i *Item) {
		i.Category = category
	}
}

func WithBucket(b bucket.Bucket) ItemOption {
	if b == "" {
		return nil
	}
	return func(i *Item) {
		i.Bucket = b
	}
}

func WithDueAt(due *time.Time) ItemOption {
	return func(i *Item) {
		i.DueAt = due
	}
}

func WithAsset(kind AssetKind, id *uuid.UUID) ItemOption {
	return func(i *Item) {
		i.AssetKind = kind
		i.AssetID = id
	}
}

func WithBackground(background string) ItemOption {
	return func(i *Item) {
		i.Background = background
	}
}

func WithCalendar(calendar bool) ItemOption {
	return func(i *Item) {
		i.Calendar = calendar
	}
}
