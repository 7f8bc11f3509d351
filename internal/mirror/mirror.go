// Package mirror реализует зеркало хранения: локальная база — всегда,
// удалённое хранилище документов — дополнительно, по настройкам.
//
// Чтение идёт из источника, выбранного в настройках (Local или Cloud); при сбое облака
// зеркало переключается на локальную базу и возвращает предупреждение. Запись всегда
// заменяет коллекцию в локальной базе целиком и, в режиме Cloud, дублируется в облако
// по принципу best effort: сбой облака не откатывает локальную запись.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/staysync/internal/model"
	"github.com/mmeshcher/staysync/internal/remote"
	"github.com/mmeshcher/staysync/internal/repository"
)

// DefaultRemoteTimeout ограничивает каждое обращение к удалённому хранилищу.
const DefaultRemoteTimeout = 5 * time.Second

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrInvalidSnapshot возвращается при импорте снимка неверного формата.
	ErrInvalidSnapshot = model.ErrInvalidSnapshot
	// ErrInvalidSettings возвращается для неизвестного источника данных.
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrUnknownCollection возвращается для неизвестного имени коллекции.
	ErrUnknownCollection = errors.New("unknown collection")
)

// LocalStore — контракт встроенного локального хранилища.
type LocalStore interface {
	Count(ctx context.Context, c model.Collection) (int64, error)
	Scan(ctx context.Context, c model.Collection) ([]model.Document, error)
	Transaction(ctx context.Context, collections []model.Collection, fn func(tx repository.Tx) error) error
	LoadSettings(ctx context.Context) (model.Settings, bool, error)
	SaveSettings(ctx context.Context, settings model.Settings) error
}

// Fixtures поставляет демонстрационные записи для пустых коллекций.
type Fixtures interface {
	Documents(c model.Collection) []model.Document
}

// Dialer открывает удалённое хранилище по параметрам подключения.
type Dialer func(ctx context.Context, params model.RemoteParams) (remote.Store, error)

// Options задаёт зависимости зеркала.
type Options struct {
	Dialer        Dialer
	Fixtures      Fixtures
	Logger        *zap.Logger
	RemoteTimeout time.Duration
	Now           func() time.Time
}

// Mirror координирует локальное и удалённое хранилища.
// Все операции выполняются строго по одной.
type Mirror struct {
	mu sync.Mutex

	local    LocalStore
	dial     Dialer
	fixtures Fixtures
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time

	settings model.Settings
	remote   remote.Store
}

// New создаёт зеркало с явно переданными настройками.
// Если источник — Cloud, выполняется попытка подключения; ошибка подключения не фатальна.
func New(ctx context.Context, local LocalStore, settings model.Settings, opts Options) *Mirror {
	m := &Mirror{
		local:    local,
		dial:     opts.Dialer,
		fixtures: opts.Fixtures,
		logger:   opts.Logger,
		timeout:  opts.RemoteTimeout,
		now:      opts.Now,
		settings: settings,
	}
	if m.dial == nil {
		m.dial = remote.Dial
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.timeout <= 0 {
		m.timeout = DefaultRemoteTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}

	if settings.DataSource == model.DataSourceCloud {
		if _, err := m.ensureRemote(ctx); err != nil {
			m.logger.Warn("cloud database not connected", zap.Error(err))
		}
	}

	return m
}

// Settings возвращает текущие настройки.
func (m *Mirror) Settings() model.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Close закрывает подключение к удалённому хранилищу.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.remote == nil {
		return nil
	}
	err := m.remote.Close()
	m.remote = nil
	return err
}

func (m *Mirror) ensureRemote(ctx context.Context) (remote.Store, error) {
	if m.remote != nil {
		return m.remote, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	store, err := m.dial(ctx, m.settings.Remote)
	if err != nil {
		return nil, fmt.Errorf("dial remote: %w", err)
	}
	m.remote = store
	return store, nil
}

func (m *Mirror) demoDocuments(c model.Collection) []model.Document {
	if m.fixtures == nil {
		return nil
	}
	return m.fixtures.Documents(c)
}

// Load читает коллекцию из источника по настройкам, при необходимости заполняя её демо-данными.
func (m *Mirror) Load(ctx context.Context, c model.Collection) ([]model.Document, Report, error) {
	if !c.Valid() {
		return nil, Report{}, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.load(ctx, c)
}

func (m *Mirror) load(ctx context.Context, c model.Collection) ([]model.Document, Report, error) {
	var report Report

	if m.settings.DataSource == model.DataSourceCloud {
		docs, seeded, err := m.loadCloud(ctx, c)
		if err == nil {
			report.Source = model.DataSourceCloud
			report.Seeded = seeded
			return docs, report, nil
		}

		m.logger.Warn("cloud fetch failed, falling back to local store",
			zap.String("collection", string(c)), zap.Error(err))
		report.add(Warning{
			Kind:       WarningCloudReadFallback,
			Collection: c,
			Message:    fmt.Sprintf("Failed to fetch %s from Cloud. Switching to offline view.", c),
			Err:        err,
		})
	}

	report.Source = model.DataSourceLocal
	docs, seeded, err := m.loadLocal(ctx, c)
	if err != nil {
		return nil, report, fmt.Errorf("load %s: %w", c, err)
	}
	report.Seeded = seeded
	return docs, report, nil
}

func (m *Mirror) loadCloud(ctx context.Context, c model.Collection) ([]model.Document, bool, error) {
	store, err := m.ensureRemote(ctx)
	if err != nil {
		return nil, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	docs, err := store.Scan(ctx, c)
	if err != nil {
		return nil, false, fmt.Errorf("scan remote %s: %w", c, err)
	}

	if len(docs) == 0 && m.settings.DemoMode {
		demo := m.demoDocuments(c)
		if err := store.Upsert(ctx, c, demo); err != nil {
			return nil, false, fmt.Errorf("seed remote %s: %w", c, err)
		}
		m.logger.Info("seeded cloud collection with demo data",
			zap.String("collection", string(c)), zap.Int("records", len(demo)))
		return demo, len(demo) > 0, nil
	}

	if docs == nil {
		docs = []model.Document{}
	}
	return docs, false, nil
}

// loadLocal выполняет проверку на пустоту и заполнение в одной транзакции, поэтому заполнение происходит один раз.
func (m *Mirror) loadLocal(ctx context.Context, c model.Collection) ([]model.Document, bool, error) {
	var (
		docs   []model.Document
		seeded bool
	)

	err := m.local.Transaction(ctx, []model.Collection{c}, func(tx repository.Tx) error {
		docs, seeded = nil, false

		n, err := tx.Count(ctx, c)
		if err != nil {
			return err
		}

		if n == 0 && m.settings.DemoMode {
			demo := m.demoDocuments(c)
			if err := tx.BulkInsert(ctx, c, demo); err != nil {
				return err
			}
			docs, seeded = demo, len(demo) > 0
			return nil
		}

		docs, err = tx.Scan(ctx, c)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if seeded {
		m.logger.Info("seeded local collection with demo data",
			zap.String("collection", string(c)), zap.Int("records", len(docs)))
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return docs, seeded, nil
}

// Save заменяет коллекцию в локальной базе одной транзакцией и, в режиме Cloud,
// дублирует записи в облако. Сбой облака даёт одно предупреждение на вызов и не откатывает локальную запись.
func (m *Mirror) Save(ctx context.Context, c model.Collection, docs []model.Document) (Report, error) {
	if !c.Valid() {
		return Report{}, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.save(ctx, c, docs)
}

func (m *Mirror) save(ctx context.Context, c model.Collection, docs []model.Document) (Report, error) {
	report := Report{Source: m.settings.DataSource}

	if err := m.replaceLocal(ctx, c, docs); err != nil {
		return report, fmt.Errorf("save %s: %w", c, err)
	}

	if m.settings.DataSource != model.DataSourceCloud {
		return report, nil
	}

	if err := m.pushCloud(ctx, c, docs); err != nil {
		m.logger.Warn("cloud sync failed, data saved locally",
			zap.String("collection", string(c)), zap.Error(err))
		report.add(Warning{
			Kind:       WarningCloudWriteFailed,
			Collection: c,
			Message:    "Saved locally, but Cloud sync failed. Check internet connection.",
			Err:        err,
		})
	}
	return report, nil
}

func (m *Mirror) replaceLocal(ctx context.Context, c model.Collection, docs []model.Document) error {
	return m.local.Transaction(ctx, []model.Collection{c}, func(tx repository.Tx) error {
		if err := tx.Clear(ctx, c); err != nil {
			return err
		}
		return tx.BulkInsert(ctx, c, docs)
	})
}

func (m *Mirror) pushCloud(ctx context.Context, c model.Collection, docs []model.Document) error {
	store, err := m.ensureRemote(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := store.Upsert(ctx, c, docs); err != nil {
		return fmt.Errorf("upsert remote %s: %w", c, err)
	}
	return nil
}

// ExportAll читает все локальные коллекции и возвращает версионированный снимок.
func (m *Mirror) ExportAll(ctx context.Context) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &model.Snapshot{
		Version:   model.SnapshotVersion,
		Timestamp: m.now().UTC().Format(timestampLayout),
	}

	for _, c := range model.Collections {
		docs, err := m.local.Scan(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", c, err)
		}
		if err := snap.SetDocuments(c, docs); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// ImportAll восстанавливает коллекции, присутствующие в снимке; остальные не трогает.
// Снимок проверяется целиком до первой записи. Каждая коллекция пишется своей транзакцией.
func (m *Mirror) ImportAll(ctx context.Context, snap *model.Snapshot) ([]model.Collection, error) {
	byCollection, err := snap.Documents()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	restored := make([]model.Collection, 0, len(byCollection))
	for _, c := range model.Collections {
		docs, ok := byCollection[c]
		if !ok {
			continue
		}
		if err := m.replaceLocal(ctx, c, docs); err != nil {
			return restored, fmt.Errorf("import %s: %w", c, err)
		}
		restored = append(restored, c)
	}

	m.logger.Info("imported snapshot", zap.Int("collections", len(restored)), zap.String("version", snap.Version))
	return restored, nil
}

// WipeAll очищает все локальные коллекции. Удалённое хранилище не затрагивается.
func (m *Mirror) WipeAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.local.Transaction(ctx, model.Collections, func(tx repository.Tx) error {
		for _, c := range model.Collections {
			if err := tx.Clear(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("wipe local store: %w", err)
	}
	return nil
}

// Reconfigure сохраняет новые настройки, при смене параметров переподключает облако
// и заново выполняет загрузку каждой коллекции.
func (m *Mirror) Reconfigure(ctx context.Context, settings model.Settings) (map[model.Collection]Report, error) {
	if settings.DataSource != model.DataSourceLocal && settings.DataSource != model.DataSourceCloud {
		return nil, fmt.Errorf("%w: data source %q", ErrInvalidSettings, settings.DataSource)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.local.SaveSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	if settings.Remote != m.settings.Remote && m.remote != nil {
		if err := m.remote.Close(); err != nil {
			m.logger.Warn("close remote store", zap.Error(err))
		}
		m.remote = nil
	}
	m.settings = settings

	if settings.DataSource == model.DataSourceCloud {
		if _, err := m.ensureRemote(ctx); err != nil {
			m.logger.Warn("cloud database not connected", zap.Error(err))
		}
	}

	reports := make(map[model.Collection]Report, len(model.Collections))
	for _, c := range model.Collections {
		_, report, err := m.load(ctx, c)
		if err != nil {
			return reports, err
		}
		reports[c] = report
	}

	m.logger.Info("mirror reconfigured",
		zap.String("dataSource", string(settings.DataSource)),
		zap.Bool("demoMode", settings.DemoMode),
		zap.String("remoteDriver", settings.Remote.Driver))
	return reports, nil
}

// LoadSettings возвращает сохранённые настройки или fallback, если их ещё нет.
func LoadSettings(ctx context.Context, local LocalStore, fallback model.Settings) (model.Settings, error) {
	settings, found, err := local.LoadSettings(ctx)
	if err != nil {
		return fallback, err
	}
	if !found {
		if err := local.SaveSettings(ctx, fallback); err != nil {
			return fallback, err
		}
		return fallback, nil
	}
	return settings, nil
}
