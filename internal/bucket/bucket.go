package bucket

import (
	"time"
)

// Bucket - метка временной корзины элемента. Всегда из фиксированного
// набора Config.Order, никогда произвольный текст.
type Bucket string

const (
	Overdue      Bucket = "overdue"
	DueToday     Bucket = "due_today"
	DueTomorrow  Bucket = "due_tomorrow"
	DueThisWeek  Bucket = "due_this_week"
	DueNextWeek  Bucket = "due_next_week"
	DueLater     Bucket = "due_later"
	NoDate       Bucket = "no_date"
	SpecificTime Bucket = "specific_time"
	Completed    Bucket = "completed"
	All          Bucket = "all"
)

// Config задаёт набор корзин и их порядок. Набор конфигурируемый:
// ядро не привязано к конкретным меткам.
type Config struct {
	Order  []Bucket
	Labels map[Bucket]string

	CompletedBucket Bucket
	OverdueBucket   Bucket
	NoDateBucket    Bucket
	SpecificBucket  Bucket

	TodayBucket    Bucket
	TomorrowBucket Bucket
	ThisWeekBucket Bucket
	NextWeekBucket Bucket
	LaterBucket    Bucket
}

func DefaultConfig() Config {
	return Config{
		Order: []Bucket{
			Overdue, DueToday, DueTomorrow, DueThisWeek,
			DueNextWeek, DueLater, NoDate, SpecificTime, Completed,
		},
		Labels: map[Bucket]string{
			Overdue:      "Overdue",
			DueToday:     "Due Today",
			DueTomorrow:  "Due Tomorrow",
			DueThisWeek:  "Due This Week",
			DueNextWeek:  "Due Next Week",
			DueLater:     "Due Later",
			NoDate:       "No Date",
			SpecificTime: "On Specific Date...",
			Completed:    "Completed",
		},
		CompletedBucket: Completed,
		OverdueBucket:   Overdue,
		NoDateBucket:    NoDate,
		SpecificBucket:  SpecificTime,
		TodayBucket:     DueToday,
		TomorrowBucket:  DueTomorrow,
		ThisWeekBucket:  DueThisWeek,
		NextWeekBucket:  DueNextWeek,
		LaterBucket:     DueLater,
	}
}

func (c Config) Contains(b Bucket) bool {
	for _, known := range c.Order {
		if known == b {
			return true
		}
	}
	return false
}

// Classify вычисляет каноническую корзину по дедлайну и состоянию
// завершённости. Чистая функция, today передаётся снаружи.
//
// Приоритет: завершённые всегда completed, просроченные всегда overdue.
func (c Config) Classify(due, completedAt *time.Time, today time.Time) Bucket {
	if completedAt != nil {
		return c.CompletedBucket
	}
	if due == nil {
		return c.NoDateBucket
	}

	day := startOfDay(today)
	if due.Before(day) {
		return c.OverdueBucket
	}

	switch offset := daysBetween(day, startOfDay(*due)); {
	case offset == 0:
		return c.TodayBucket
	case offset == 1:
		return c.TomorrowBucket
	case due.Before(nextMonday(day)):
		return c.ThisWeekBucket
	case due.Before(nextMonday(day).AddDate(0, 0, 7)):
		return c.NextWeekBucket
	default:
		return c.LaterBucket
	}
}

// ComputedBucket - корзина для элемента с назначенной меткой.
// Явно выбранная корзина сохраняется, пока элемент не завершён и не
// просрочен; specific_time всегда пересчитывается по дедлайну.
func (c Config) ComputedBucket(assigned Bucket, due, completedAt *time.Time, today time.Time) Bucket {
	if completedAt != nil {
		return c.CompletedBucket
	}
	if due != nil && due.Before(startOfDay(today)) {
		return c.OverdueBucket
	}
	if assigned != "" && assigned != c.SpecificBucket && c.Contains(assigned) {
		return assigned
	}
	return c.Classify(due, completedAt, today)
}

// Option - пара метка/значение для формы выбора корзины.
type Option struct {
	Label string `json:"label"`
	Value Bucket `json:"value"`
}

// Options возвращает назначаемые пользователем корзины: всё между
// overdue и completed, плюс specific_time в конце.
func (c Config) Options() []Option {
	opts := []Option{}
	for _, b := range c.Order {
		if b == c.OverdueBucket || b == c.CompletedBucket || b == c.SpecificBucket {
			continue
		}
		opts = append(opts, Option{Label: c.Labels[b], Value: b})
	}
	opts = append(opts, Option{Label: c.Labels[c.SpecificBucket], Value: c.SpecificBucket})
	return opts
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// nextMonday - начало следующей недели (ISO, понедельник).
func nextMonday(day time.Time) time.Time {
	offset := int(time.Monday - day.Weekday())
	if offset <= 0 {
		offset += 7
	}
	return day.AddDate(0, 0, offset)
}
