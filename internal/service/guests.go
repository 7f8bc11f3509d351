package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/staysync/internal/billing"
	"github.com/mmeshcher/staysync/internal/mirror"
	"github.com/mmeshcher/staysync/internal/model"
)

// GuestInput — поля гостя, задаваемые при бронировании и редактировании.
type GuestInput struct {
	Name       string
	Email      string
	Phone      string
	CheckIn    string
	CheckOut   string
	RoomNumber string
	VIP        bool
	Status     model.GuestStatus
}

func (in GuestInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: guest name is required", ErrInvalidInput)
	}
	switch in.Status {
	case model.GuestStatusReserved, model.GuestStatusCheckedIn, model.GuestStatusCheckedOut:
	default:
		return fmt.Errorf("%w: unknown guest status %q", ErrInvalidInput, in.Status)
	}

	checkIn, err := model.ParseDate(in.CheckIn)
	if err != nil {
		return fmt.Errorf("%w: check-in must be YYYY-MM-DD", ErrInvalidInput)
	}
	checkOut, err := model.ParseDate(in.CheckOut)
	if err != nil {
		return fmt.Errorf("%w: check-out must be YYYY-MM-DD", ErrInvalidInput)
	}
	if checkOut.Before(checkIn) {
		return fmt.Errorf("%w: check-out is before check-in", ErrInvalidInput)
	}
	return nil
}

// GuestView — гость вместе с расчётом на текущий момент.
type GuestView struct {
	model.Guest
	Unlinked bool         `json:"unlinked"`
	Bill     billing.Bill `json:"bill"`
}

// GuestUpdate — результат редактирования гостя.
// Notice заполняется, если новый номер не найден и гость остался без привязки.
type GuestUpdate struct {
	Guest  model.Guest `json:"guest"`
	Notice string      `json:"notice,omitempty"`
}

// PaymentInput — данные платежа гостя. Пустая дата означает сегодня.
type PaymentInput struct {
	Amount float64
	Date   string
	Note   string
}

// ListGuests возвращает гостей с текущим расчётом. Гость без найденного номера помечается как несвязанный.
func (s *Service) ListGuests(ctx context.Context) ([]GuestView, mirror.Report, error) {
	var report mirror.Report

	guests, rooms, txs, err := s.loadBillingInputs(ctx, &report)
	if err != nil {
		return nil, report, err
	}

	asOf := s.now()
	views := make([]GuestView, 0, len(guests))
	for _, g := range guests {
		bill := billing.Compute(g, rooms, txs, asOf)
		views = append(views, GuestView{Guest: g, Unlinked: !bill.Linked, Bill: bill})
	}
	return views, report, nil
}

// GuestBill возвращает расчёт по гостю на текущий момент.
func (s *Service) GuestBill(ctx context.Context, guestID string) (billing.Bill, mirror.Report, error) {
	var report mirror.Report

	guests, rooms, txs, err := s.loadBillingInputs(ctx, &report)
	if err != nil {
		return billing.Bill{}, report, err
	}

	idx := guestIndex(guests, guestID)
	if idx < 0 {
		return billing.Bill{}, report, fmt.Errorf("guest %s: %w", guestID, ErrNotFound)
	}
	return billing.Compute(guests[idx], rooms, txs, s.now()), report, nil
}

func (s *Service) loadBillingInputs(ctx context.Context, report *mirror.Report) ([]model.Guest, []model.Room, []model.Transaction, error) {
	guests, err := load[model.Guest](ctx, s, model.CollectionGuests, report)
	if err != nil {
		return nil, nil, nil, err
	}
	rooms, err := load[model.Room](ctx, s, model.CollectionRooms, report)
	if err != nil {
		return nil, nil, nil, err
	}
	txs, err := load[model.Transaction](ctx, s, model.CollectionTransactions, report)
	if err != nil {
		return nil, nil, nil, err
	}
	return guests, rooms, txs, nil
}

// BookGuest регистрирует гостя в свободном номере. Заселённый гость сразу занимает номер.
func (s *Service) BookGuest(ctx context.Context, in GuestInput) (model.Guest, mirror.Report, error) {
	var report mirror.Report
	if err := in.validate(); err != nil {
		return model.Guest{}, report, err
	}
	if in.Status == model.GuestStatusCheckedOut {
		return model.Guest{}, report, fmt.Errorf("%w: a new booking must be Reserved or Checked In", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := load[model.Room](ctx, s, model.CollectionRooms, &report)
	if err != nil {
		return model.Guest{}, report, err
	}
	roomIdx := roomIndexByNumber(rooms, in.RoomNumber)
	if roomIdx < 0 {
		return model.Guest{}, report, fmt.Errorf("room %s: %w", in.RoomNumber, ErrNotFound)
	}
	if rooms[roomIdx].Status != model.RoomStatusAvailable {
		return model.Guest{}, report, fmt.Errorf("room %s: %w", in.RoomNumber, ErrRoomUnavailable)
	}

	guests, err := load[model.Guest](ctx, s, model.CollectionGuests, &report)
	if err != nil {
		return model.Guest{}, report, err
	}

	guest := in.apply(model.Guest{ID: s.newID()})
	guests = append(guests, guest)
	if err := save(ctx, s, model.CollectionGuests, guests, &report); err != nil {
		return model.Guest{}, report, err
	}

	if guest.Status == model.GuestStatusCheckedIn {
		rooms[roomIdx].Status = model.RoomStatusOccupied
		rooms[roomIdx].GuestID = guest.ID
		if err := save(ctx, s, model.CollectionRooms, rooms, &report); err != nil {
			return guest, report, err
		}
	}

	s.logger.Info("guest booked",
		zap.String("guestId", guest.ID), zap.String("room", guest.RoomNumber), zap.String("status", string(guest.Status)))
	return guest, report, nil
}

// UpdateGuest сохраняет изменения гостя и переносит привязку номера:
// прежний номер освобождается в состоянии Dirty, новый занимается, если гость заселён.
func (s *Service) UpdateGuest(ctx context.Context, id string, in GuestInput) (GuestUpdate, mirror.Report, error) {
	var report mirror.Report
	if err := in.validate(); err != nil {
		return GuestUpdate{}, report, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	guests, err := load[model.Guest](ctx, s, model.CollectionGuests, &report)
	if err != nil {
		return GuestUpdate{}, report, err
	}
	idx := guestIndex(guests, id)
	if idx < 0 {
		return GuestUpdate{}, report, fmt.Errorf("guest %s: %w", id, ErrNotFound)
	}
	old := guests[idx]
	updated := in.apply(old)

	rooms, err := load[model.Room](ctx, s, model.CollectionRooms, &report)
	if err != nil {
		return GuestUpdate{}, report, err
	}

	result := GuestUpdate{Guest: updated}
	roomsChanged, err := relinkRoom(rooms, old, updated, &result)
	if err != nil {
		return GuestUpdate{}, report, err
	}

	guests[idx] = updated
	if err := save(ctx, s, model.CollectionGuests, guests, &report); err != nil {
		return GuestUpdate{}, report, err
	}
	if roomsChanged {
		if err := save(ctx, s, model.CollectionRooms, rooms, &report); err != nil {
			return result, report, err
		}
	}
	return result, report, nil
}

// relinkRoom приводит номера в соответствие новому состоянию гостя. Изменяет rooms на месте.
func relinkRoom(rooms []model.Room, old, updated model.Guest, result *GuestUpdate) (bool, error) {
	changed := false
	oldIdx := roomIndexByNumber(rooms, old.RoomNumber)
	newIdx := roomIndexByNumber(rooms, updated.RoomNumber)

	if updated.Status == model.GuestStatusCheckedIn && newIdx >= 0 {
		target := rooms[newIdx]
		if target.GuestID != updated.ID && (target.GuestID != "" || target.Status != model.RoomStatusAvailable) {
			return false, fmt.Errorf("room %s: %w", target.Number, ErrRoomUnavailable)
		}
	}

	leaving := old.RoomNumber != updated.RoomNumber || updated.Status == model.GuestStatusCheckedOut
	if leaving && oldIdx >= 0 && rooms[oldIdx].GuestID == old.ID {
		rooms[oldIdx].Status = model.RoomStatusDirty
		rooms[oldIdx].GuestID = ""
		changed = true
	}

	if newIdx < 0 {
		if old.RoomNumber != updated.RoomNumber {
			result.Notice = fmt.Sprintf("Room %s does not exist. Guest updated but room status not linked.", updated.RoomNumber)
		}
		return changed, nil
	}

	if updated.Status == model.GuestStatusCheckedIn && rooms[newIdx].GuestID != updated.ID {
		rooms[newIdx].Status = model.RoomStatusOccupied
		rooms[newIdx].GuestID = updated.ID
		changed = true
	}
	return changed, nil
}

// CheckoutRoom выселяет гостя из номера: гость получает статус Checked Out с датой выезда сегодня,
// номер становится Dirty и отвязывается.
func (s *Service) CheckoutRoom(ctx context.Context, roomID string) (model.Room, mirror.Report, error) {
	var report mirror.Report

	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := load[model.Room](ctx, s, model.CollectionRooms, &report)
	if err != nil {
		return model.Room{}, report, err
	}
	roomIdx := roomIndexByID(rooms, roomID)
	if roomIdx < 0 {
		return model.Room{}, report, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	guestID := rooms[roomIdx].GuestID
	if guestID == "" {
		return model.Room{}, report, ErrRoomHasNoGuest
	}

	guests, err := load[model.Guest](ctx, s, model.CollectionGuests, &report)
	if err != nil {
		return model.Room{}, report, err
	}
	if idx := guestIndex(guests, guestID); idx >= 0 {
		guests[idx].Status = model.GuestStatusCheckedOut
		guests[idx].CheckOut = s.today()
	} else {
		s.logger.Warn("checked out room references a missing guest",
			zap.String("roomId", roomID), zap.String("guestId", guestID))
	}

	rooms[roomIdx].Status = model.RoomStatusDirty
	rooms[roomIdx].GuestID = ""

	if err := save(ctx, s, model.CollectionGuests, guests, &report); err != nil {
		return model.Room{}, report, err
	}
	if err := save(ctx, s, model.CollectionRooms, rooms, &report); err != nil {
		return model.Room{}, report, err
	}

	s.logger.Info("guest checked out", zap.String("guestId", guestID), zap.String("room", rooms[roomIdx].Number))
	return rooms[roomIdx], report, nil
}

// RecordPayment добавляет платёж гостя в начало журнала и уменьшает его справочный баланс.
// Живой баланс уменьшается ровно на сумму платежа.
func (s *Service) RecordPayment(ctx context.Context, guestID string, in PaymentInput) (model.Transaction, mirror.Report, error) {
	var report mirror.Report

	date := in.Date
	if date == "" {
		date = s.today()
	}
	tx, err := billing.NewPayment(s.newID(), guestID, in.Amount, date, in.Note)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidAmount) || errors.Is(err, billing.ErrInvalidDate) {
			return model.Transaction{}, report, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return model.Transaction{}, report, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	guests, err := load[model.Guest](ctx, s, model.CollectionGuests, &report)
	if err != nil {
		return model.Transaction{}, report, err
	}
	idx := guestIndex(guests, guestID)
	if idx < 0 {
		return model.Transaction{}, report, fmt.Errorf("guest %s: %w", guestID, ErrNotFound)
	}

	txs, err := load[model.Transaction](ctx, s, model.CollectionTransactions, &report)
	if err != nil {
		return model.Transaction{}, report, err
	}
	txs = append([]model.Transaction{tx}, txs...)
	guests[idx] = billing.DeductBalance(guests[idx], in.Amount)

	if err := save(ctx, s, model.CollectionTransactions, txs, &report); err != nil {
		return model.Transaction{}, report, err
	}
	if err := save(ctx, s, model.CollectionGuests, guests, &report); err != nil {
		return tx, report, err
	}

	s.logger.Info("payment recorded", zap.String("guestId", guestID), zap.Float64("amount", in.Amount))
	return tx, report, nil
}

func (in GuestInput) apply(g model.Guest) model.Guest {
	g.Name = in.Name
	g.Email = in.Email
	g.Phone = in.Phone
	g.CheckIn = in.CheckIn
	g.CheckOut = in.CheckOut
	g.RoomNumber = in.RoomNumber
	g.VIP = in.VIP
	g.Status = in.Status
	return g
}

func guestIndex(guests []model.Guest, id string) int {
	for i := range guests {
		if guests[i].ID == id {
			return i
		}
	}
	return -1
}
