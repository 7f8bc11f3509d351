package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/staysync/internal/mirror"
	"github.com/mmeshcher/staysync/internal/model"
)

// ExportData возвращает снимок всей локальной базы.
func (s *Service) ExportData(ctx context.Context) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.ExportAll(ctx)
}

// ImportData восстанавливает коллекции из снимка.
func (s *Service) ImportData(ctx context.Context, snap *model.Snapshot) ([]model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored, err := s.store.ImportAll(ctx, snap)
	if err != nil {
		return restored, err
	}
	s.logger.Info("data restored from backup", zap.Int("collections", len(restored)))
	return restored, nil
}

// WipeData очищает локальную базу.
func (s *Service) WipeData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.WipeAll(ctx); err != nil {
		return err
	}
	s.logger.Warn("local data wiped")
	return nil
}

// Settings возвращает текущие настройки хранения.
func (s *Service) Settings() model.Settings {
	return s.store.Settings()
}

// UpdateSettings применяет новые настройки и перезагружает все коллекции.
// Предупреждения всех коллекций объединяются в один отчёт.
func (s *Service) UpdateSettings(ctx context.Context, settings model.Settings) (mirror.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report mirror.Report
	reports, err := s.store.Reconfigure(ctx, settings)
	for _, c := range model.Collections {
		if r, ok := reports[c]; ok {
			report.Merge(r)
		}
	}
	if err != nil {
		return report, err
	}
	return report, nil
}
