// Package remote содержит драйверы удалённого хранилища документов для облачного зеркала.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/staysync/internal/model"
)

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverHTTP     = "http"
)

var (
	// ErrNotConfigured возвращается, если параметры подключения не заданы.
	ErrNotConfigured = errors.New("cloud database not connected")
	// ErrUnknownDriver возвращается для неизвестного драйвера.
	ErrUnknownDriver = errors.New("unknown remote driver")
)

// Store — удалённое хранилище документов: чтение коллекции и пакетная запись по ключу.
type Store interface {
	Scan(ctx context.Context, c model.Collection) ([]model.Document, error)
	Upsert(ctx context.Context, c model.Collection, docs []model.Document) error
	Ping(ctx context.Context) error
	Close() error
}

// Dial открывает хранилище по параметрам подключения из настроек.
func Dial(ctx context.Context, params model.RemoteParams) (Store, error) {
	if params.URI == "" {
		return nil, ErrNotConfigured
	}

	switch params.Driver {
	case DriverPostgres:
		return NewPostgresStore(ctx, params.URI)
	case DriverRedis:
		return NewRedisStore(ctx, params.URI)
	case DriverHTTP, "":
		return NewHTTPStore(params.URI), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, params.Driver)
	}
}
