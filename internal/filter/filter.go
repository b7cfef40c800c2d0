package filter

import (
	"strings"

	"crmTracker/internal/bucket"
)

// Mutation - вид изменения элемента, после которого сверяется фильтр.
type Mutation string

const (
	Created     Mutation = "created"
	Updated     Mutation = "updated"
	Completed   Mutation = "completed"
	Uncompleted Mutation = "uncompleted"
	Deleted     Mutation = "deleted"
)

// Set - видимые корзины сайдбара для пары (пользователь, вид).
// Упорядоченный список без дубликатов, порядок - порядок первого
// добавления.
type Set struct {
	labels []bucket.Bucket
}

// Parse разбирает сохранённое в сессии значение вида "overdue,due_today".
func Parse(raw string) Set {
	var s Set
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			s.Add(bucket.Bucket(part))
		}
	}
	return s
}

func (s *Set) Add(b bucket.Bucket) {
	if b == "" || s.Contains(b) {
		return
	}
	s.labels = append(s.labels, b)
}

func (s *Set) Remove(b bucket.Bucket) {
	for i, label := range s.labels {
		if label == b {
			s.labels = append(s.labels[:i], s.labels[i+1:]...)
			return
		}
	}
}

func (s Set) Contains(b bucket.Bucket) bool {
	for _, label := range s.labels {
		if label == b {
			return true
		}
	}
	return false
}

func (s Set) Len() int { return len(s.labels) }

func (s Set) Labels() []bucket.Bucket {
	out := make([]bucket.Bucket, len(s.labels))
	copy(out, s.labels)
	return out
}

// String сериализует набор для хранения в сессии.
func (s Set) String() string {
	parts := make([]string, len(s.labels))
	for i, label := range s.labels {
		parts[i] = string(label)
	}
	return strings.Join(parts, ",")
}

// Reconcile сверяет набор фильтров после одного изменения элемента.
//
// created добавляет новую корзину. Остальные изменения только убирают
// старую корзину, когда вызывающая сторона сообщила, что та опустела:
// новая корзина не добавляется заранее, список корзины UI запрашивает
// по требованию. Сигнал пустоты принимается как есть - устаревшее
// значение выправится на следующей полной загрузке.
func Reconcile(s Set, m Mutation, oldBucket, newBucket bucket.Bucket, bucketNowEmpty bool) Set {
	switch m {
	case Created:
		s.Add(newBucket)
	case Updated, Completed, Uncompleted, Deleted:
		if bucketNowEmpty {
			s.Remove(oldBucket)
		}
	}
	return s
}

// DefaultSet - фильтр по умолчанию: все непустые корзины из сводки,
// кроме агрегата "all" и корзины завершённых (та живёт в отдельном
// виде). Порядок берётся из конфигурации корзин.
func DefaultSet(totals map[bucket.Bucket]int, cfg bucket.Config) Set {
	var s Set
	for _, b := range cfg.Order {
		if b == bucket.All || b == cfg.CompletedBucket {
			continue
		}
		if totals[b] != 0 {
			s.Add(b)
		}
	}
	return s
}
