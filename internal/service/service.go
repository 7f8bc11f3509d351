// Package service реализует операции отеля поверх зеркала хранения.
//
// Каждая операция читает нужные коллекции целиком, изменяет их в памяти и сохраняет
// обратно. Изменяющие операции выполняются по одной, поэтому чтение-изменение-запись
// двух коллекций не перемешивается с другим запросом.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/staysync/internal/mirror"
	"github.com/mmeshcher/staysync/internal/model"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRoomUnavailable    = errors.New("room is not available")
	ErrRoomOccupied       = errors.New("room is occupied, check the guest out first")
	ErrRoomNumberTaken    = errors.New("room number already exists")
	ErrRoomHasNoGuest     = errors.New("room has no guest to check out")
	ErrRoomsExist         = errors.New("rooms are already configured")
	ErrTicketState        = errors.New("ticket cannot change to this status")
	ErrAdminExists        = errors.New("staff already exist")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Store описывает контракт зеркала хранения, используемый сервисом.
type Store interface {
	mirror.Loader
	mirror.Saver
	ExportAll(ctx context.Context) (*model.Snapshot, error)
	ImportAll(ctx context.Context, snap *model.Snapshot) ([]model.Collection, error)
	WipeAll(ctx context.Context) error
	Reconfigure(ctx context.Context, settings model.Settings) (map[model.Collection]mirror.Report, error)
	Settings() model.Settings
	Close() error
}

// Service содержит бизнес-логику отеля.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu sync.Mutex
}

// Option настраивает сервис.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator подменяет генератор ключей новых записей.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithLogger задаёт логгер.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService создаёт сервис поверх указанного хранилища.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *Service) today() string {
	return model.FormatDate(s.now().UTC())
}

func load[T any](ctx context.Context, s *Service, c model.Collection, report *mirror.Report) ([]T, error) {
	items, r, err := mirror.LoadAs[T](ctx, s.store, c)
	report.Merge(r)
	return items, err
}

func save[T model.Keyed](ctx context.Context, s *Service, c model.Collection, items []T, report *mirror.Report) error {
	r, err := mirror.SaveAs(ctx, s.store, c, items)
	report.Merge(r)
	return err
}
