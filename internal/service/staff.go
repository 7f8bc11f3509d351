package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mmeshcher/staysync/internal/mirror"
	"github.com/mmeshcher/staysync/internal/model"
	"github.com/mmeshcher/staysync/internal/validation"
)

// StaffInput — данные нового сотрудника.
type StaffInput struct {
	Name   string
	Role   model.StaffRole
	Status model.DutyStatus
	Shift  string
	PIN    string
}

// Session описывает вошедшего сотрудника.
type Session struct {
	StaffID  string     `json:"staffId"`
	Name     string     `json:"name"`
	Role     model.Role `json:"role"`
	Initials string     `json:"initials"`
}

// ListStaff возвращает сотрудников без PIN-кодов.
func (s *Service) ListStaff(ctx context.Context) ([]model.Staff, mirror.Report, error) {
	var report mirror.Report
	staff, err := load[model.Staff](ctx, s, model.CollectionStaff, &report)
	if err != nil {
		return nil, report, err
	}
	for i := range staff {
		staff[i].PIN = ""
	}
	return staff, report, nil
}

// RecoverPINs возвращает сотрудников вместе с PIN-кодами. Доступно только суперпользователю.
func (s *Service) RecoverPINs(ctx context.Context) ([]model.Staff, mirror.Report, error) {
	var report mirror.Report
	staff, err := load[model.Staff](ctx, s, model.CollectionStaff, &report)
	return staff, report, err
}

// AddStaff добавляет сотрудника.
func (s *Service) AddStaff(ctx context.Context, in StaffInput) (model.Staff, mirror.Report, error) {
	var report mirror.Report
	if err := validateStaff(in); err != nil {
		return model.Staff{}, report, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staff, err := load[model.Staff](ctx, s, model.CollectionStaff, &report)
	if err != nil {
		return model.Staff{}, report, err
	}

	member := model.Staff{
		ID:     s.newID(),
		Name:   in.Name,
		Role:   in.Role,
		Status: in.Status,
		Shift:  in.Shift,
		PIN:    in.PIN,
	}
	staff = append(staff, member)

	if err := save(ctx, s, model.CollectionStaff, staff, &report); err != nil {
		return model.Staff{}, report, err
	}

	member.PIN = ""
	return member, report, nil
}

// DeleteStaff удаляет сотрудника.
func (s *Service) DeleteStaff(ctx context.Context, id string) (mirror.Report, error) {
	var report mirror.Report

	s.mu.Lock()
	defer s.mu.Unlock()

	staff, err := load[model.Staff](ctx, s, model.CollectionStaff, &report)
	if err != nil {
		return report, err
	}
	idx := staffIndex(staff, id)
	if idx < 0 {
		return report, fmt.Errorf("staff %s: %w", id, ErrNotFound)
	}

	staff = append(staff[:idx], staff[idx+1:]...)
	return report, save(ctx, s, model.CollectionStaff, staff, &report)
}

// SetStaffStatus меняет состояние смены сотрудника.
func (s *Service) SetStaffStatus(ctx context.Context, id string, status model.DutyStatus) (model.Staff, mirror.Report, error) {
	var report mirror.Report
	if !validDuty(status) {
		return model.Staff{}, report, fmt.Errorf("%w: unknown duty status %q", ErrInvalidInput, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staff, err := load[model.Staff](ctx, s, model.CollectionStaff, &report)
	if err != nil {
		return model.Staff{}, report, err
	}
	idx := staffIndex(staff, id)
	if idx < 0 {
		return model.Staff{}, report, fmt.Errorf("staff %s: %w", id, ErrNotFound)
	}

	staff[idx].Status = status
	if err := save(ctx, s, model.CollectionStaff, staff, &report); err != nil {
		return model.Staff{}, report, err
	}

	member := staff[idx]
	member.PIN = ""
	return member, report, nil
}

// CreateAdmin создаёт первого сотрудника с ролью Superuser и сразу открывает для него сессию.
// Доступно только пока список сотрудников пуст.
func (s *Service) CreateAdmin(ctx context.Context, name, pin string) (Session, mirror.Report, error) {
	var report mirror.Report
	if strings.TrimSpace(name) == "" {
		return Session{}, report, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !validation.IsValidPIN(pin) {
		return Session{}, report, fmt.Errorf("%w: PIN must be %d digits", ErrInvalidInput, validation.PINLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staff, err := load[model.Staff](ctx, s, model.CollectionStaff, &report)
	if err != nil {
		return Session{}, report, err
	}
	if len(staff) > 0 {
		return Session{}, report, ErrAdminExists
	}

	admin := model.Staff{
		ID:     s.newID(),
		Name:   name,
		Role:   model.StaffSuperuser,
		Status: model.DutyOn,
		Shift:  "Any",
		PIN:    pin,
	}
	if err := save(ctx, s, model.CollectionStaff, []model.Staff{admin}, &report); err != nil {
		return Session{}, report, err
	}

	s.logger.Info("first administrator created", zap.String("staffId", admin.ID))
	return newSession(admin), report, nil
}

// Authenticate проверяет PIN сотрудника и возвращает сессию.
func (s *Service) Authenticate(ctx context.Context, staffID, pin string) (Session, mirror.Report, error) {
	var report mirror.Report

	staff, err := load[model.Staff](ctx, s, model.CollectionStaff, &report)
	if err != nil {
		return Session{}, report, err
	}

	idx := staffIndex(staff, staffID)
	if idx < 0 || subtle.ConstantTimeCompare([]byte(staff[idx].PIN), []byte(pin)) != 1 {
		return Session{}, report, ErrInvalidCredentials
	}
	return newSession(staff[idx]), report, nil
}

// SessionFor восстанавливает сессию по идентификатору сотрудника.
func (s *Service) SessionFor(ctx context.Context, staffID string) (Session, error) {
	var report mirror.Report

	staff, err := load[model.Staff](ctx, s, model.CollectionStaff, &report)
	if err != nil {
		return Session{}, err
	}
	idx := staffIndex(staff, staffID)
	if idx < 0 {
		return Session{}, ErrInvalidCredentials
	}
	return newSession(staff[idx]), nil
}

func newSession(member model.Staff) Session {
	return Session{
		StaffID:  member.ID,
		Name:     member.Name,
		Role:     model.SessionRole(member.Role),
		Initials: initials(member.Name),
	}
}

func initials(name string) string {
	parts := strings.Fields(name)
	if len(parts) >= 2 {
		a, _ := utf8.DecodeRuneInString(parts[0])
		b, _ := utf8.DecodeRuneInString(parts[1])
		return strings.ToUpper(string(a) + string(b))
	}

	runes := []rune(strings.TrimSpace(name))
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}

func validateStaff(in StaffInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	switch in.Role {
	case model.StaffSuperuser, model.StaffManager, model.StaffHousekeeping, model.StaffReception, model.StaffMaintenance:
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	if !validDuty(in.Status) {
		return fmt.Errorf("%w: unknown duty status %q", ErrInvalidInput, in.Status)
	}
	if !validation.IsValidPIN(in.PIN) {
		return fmt.Errorf("%w: PIN must be %d digits", ErrInvalidInput, validation.PINLength)
	}
	return nil
}

func validDuty(status model.DutyStatus) bool {
	switch status {
	case model.DutyOn, model.DutyOff, model.DutyBreak:
		return true
	}
	return false
}

func staffIndex(staff []model.Staff, id string) int {
	for i := range staff {
		if staff[i].ID == id {
			return i
		}
	}
	return -1
}
