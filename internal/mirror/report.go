package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmeshcher/staysync/internal/model"
)

// WarningKind — вид деградации при работе с облаком.
type WarningKind string

const (
	WarningCloudReadFallback WarningKind = "cloud_read_fallback"
	WarningCloudWriteFailed  WarningKind = "cloud_write_failed"
)

// Warning описывает некритичный сбой облака: операция выполнена через локальную базу.
type Warning struct {
	Kind       WarningKind      `json:"kind"`
	Collection model.Collection `json:"collection"`
	Message    string           `json:"message"`
	Err        error            `json:"-"`
}

func (w *Warning) Error() string {
	if w.Err == nil {
		return w.Message
	}
	return fmt.Sprintf("%s: %v", w.Message, w.Err)
}

func (w *Warning) Unwrap() error {
	return w.Err
}

// Report — результат операции зеркала: фактический источник, признак заполнения демо-данными и предупреждения.
type Report struct {
	Source   model.DataSource `json:"source"`
	Seeded   bool             `json:"seeded"`
	Warnings []Warning        `json:"warnings,omitempty"`
}

func (r *Report) add(w Warning) {
	r.Warnings = append(r.Warnings, w)
}

// Merge добавляет предупреждения другого отчёта. Источник берётся из первого отчёта.
func (r *Report) Merge(other Report) {
	if r.Source == "" {
		r.Source = other.Source
	}
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Seeded = r.Seeded || other.Seeded
}

// Degraded сообщает, было ли хотя бы одно предупреждение.
func (r Report) Degraded() bool {
	return len(r.Warnings) > 0
}

// Decode разбирает документы коллекции в записи типа T.
func Decode[T any](docs []model.Document) ([]T, error) {
	items := make([]T, 0, len(docs))
	for _, d := range docs {
		var item T
		if err := json.Unmarshal(d.Body, &item); err != nil {
			return nil, fmt.Errorf("decode document %q: %w", d.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Encode сериализует записи в документы с ключом из GetID.
func Encode[T model.Keyed](items []T) ([]model.Document, error) {
	docs := make([]model.Document, 0, len(items))
	for _, item := range items {
		d, err := model.NewDocument(item)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// Loader читает коллекцию документов.
type Loader interface {
	Load(ctx context.Context, c model.Collection) ([]model.Document, Report, error)
}

// Saver заменяет коллекцию документов.
type Saver interface {
	Save(ctx context.Context, c model.Collection, docs []model.Document) (Report, error)
}

// LoadAs загружает коллекцию и разбирает её в записи типа T.
func LoadAs[T any](ctx context.Context, m Loader, c model.Collection) ([]T, Report, error) {
	docs, report, err := m.Load(ctx, c)
	if err != nil {
		return nil, report, err
	}
	items, err := Decode[T](docs)
	if err != nil {
		return nil, report, fmt.Errorf("load %s: %w", c, err)
	}
	return items, report, nil
}

// SaveAs сериализует записи и сохраняет коллекцию целиком.
func SaveAs[T model.Keyed](ctx context.Context, m Saver, c model.Collection, items []T) (Report, error) {
	docs, err := Encode(items)
	if err != nil {
		return Report{}, fmt.Errorf("save %s: %w", c, err)
	}
	return m.Save(ctx, c, docs)
}
