package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/staysync/internal/mirror"
	"github.com/mmeshcher/staysync/internal/model"
	"github.com/mmeshcher/staysync/internal/validation"
)

// RoomInput — редактируемые поля номера.
type RoomInput struct {
	Number   string
	Type     model.RoomType
	Price    float64
	Discount *float64
}

func (in RoomInput) validate() error {
	if strings.TrimSpace(in.Number) == "" {
		return fmt.Errorf("%w: room number is required", ErrInvalidInput)
	}
	switch in.Type {
	case model.RoomTypeSingle, model.RoomTypeDouble, model.RoomTypeSuite, model.RoomTypeDeluxe:
	default:
		return fmt.Errorf("%w: unknown room type %q", ErrInvalidInput, in.Type)
	}
	if in.Price < 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0) {
		return fmt.Errorf("%w: price must be a non-negative number", ErrInvalidInput)
	}
	if in.Discount != nil && !validation.IsValidDiscount(*in.Discount) {
		return fmt.Errorf("%w: discount must be between 0 and 100", ErrInvalidInput)
	}
	return nil
}

// SetupPlan описывает генерацию номеров мастером первоначальной настройки.
type SetupPlan struct {
	Floors        int
	RoomsPerFloor int
	BasePrice     float64
}

// ListRooms возвращает все номера.
func (s *Service) ListRooms(ctx context.Context) ([]model.Room, mirror.Report, error) {
	var report mirror.Report
	rooms, err := load[model.Room](ctx, s, model.CollectionRooms, &report)
	return rooms, report, err
}

// AddRoom добавляет свободный номер.
func (s *Service) AddRoom(ctx context.Context, in RoomInput) (model.Room, mirror.Report, error) {
	var report mirror.Report
	if err := in.validate(); err != nil {
		return model.Room{}, report, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := load[model.Room](ctx, s, model.CollectionRooms, &report)
	if err != nil {
		return model.Room{}, report, err
	}
	if idx := roomIndexByNumber(rooms, in.Number); idx >= 0 {
		return model.Room{}, report, fmt.Errorf("%w: %s", ErrRoomNumberTaken, in.Number)
	}

	room := model.Room{
		ID:       s.newID(),
		Number:   in.Number,
		Type:     in.Type,
		Status:   model.RoomStatusAvailable,
		Price:    in.Price,
		Discount: in.Discount,
	}
	rooms = append(rooms, room)

	if err := save(ctx, s, model.CollectionRooms, rooms, &report); err != nil {
		return model.Room{}, report, err
	}
	return room, report, nil
}

// UpdateRoom меняет номер, тип, цену и скидку. Номер занятой комнаты не меняется.
func (s *Service) UpdateRoom(ctx context.Context, id string, in RoomInput) (model.Room, mirror.Report, error) {
	var report mirror.Report
	if err := in.validate(); err != nil {
		return model.Room{}, report, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := load[model.Room](ctx, s, model.CollectionRooms, &report)
	if err != nil {
		return model.Room{}, report, err
	}

	idx := roomIndexByID(rooms, id)
	if idx < 0 {
		return model.Room{}, report, fmt.Errorf("room %s: %w", id, ErrNotFound)
	}
	room := rooms[idx]

	if in.Number != room.Number {
		if room.GuestID != "" {
			return model.Room{}, report, ErrRoomOccupied
		}
		if other := roomIndexByNumber(rooms, in.Number); other >= 0 {
			return model.Room{}, report, fmt.Errorf("%w: %s", ErrRoomNumberTaken, in.Number)
		}
	}

	room.Number = in.Number
	room.Type = in.Type
	room.Price = in.Price
	room.Discount = in.Discount
	rooms[idx] = room

	if err := save(ctx, s, model.CollectionRooms, rooms, &report); err != nil {
		return model.Room{}, report, err
	}
	return room, report, nil
}

// DeleteRoom удаляет незанятый номер.
func (s *Service) DeleteRoom(ctx context.Context, id string) (mirror.Report, error) {
	var report mirror.Report

	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := load[model.Room](ctx, s, model.CollectionRooms, &report)
	if err != nil {
		return report, err
	}

	idx := roomIndexByID(rooms, id)
	if idx < 0 {
		return report, fmt.Errorf("room %s: %w", id, ErrNotFound)
	}
	if rooms[idx].GuestID != "" {
		return report, ErrRoomOccupied
	}

	rooms = append(rooms[:idx], rooms[idx+1:]...)
	return report, save(ctx, s, model.CollectionRooms, rooms, &report)
}

// SetRoomStatus меняет состояние номера. Занятость задаётся только заселением и выселением.
func (s *Service) SetRoomStatus(ctx context.Context, id string, status model.RoomStatus) (model.Room, mirror.Report, error) {
	var report mirror.Report

	switch status {
	case model.RoomStatusAvailable, model.RoomStatusDirty, model.RoomStatusMaintenance:
	case model.RoomStatusOccupied:
		return model.Room{}, report, fmt.Errorf("%w: book a guest to occupy a room", ErrInvalidInput)
	default:
		return model.Room{}, report, fmt.Errorf("%w: unknown room status %q", ErrInvalidInput, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := load[model.Room](ctx, s, model.CollectionRooms, &report)
	if err != nil {
		return model.Room{}, report, err
	}

	idx := roomIndexByID(rooms, id)
	if idx < 0 {
		return model.Room{}, report, fmt.Errorf("room %s: %w", id, ErrNotFound)
	}
	if rooms[idx].GuestID != "" {
		return model.Room{}, report, ErrRoomOccupied
	}

	rooms[idx].Status = status
	if err := save(ctx, s, model.CollectionRooms, rooms, &report); err != nil {
		return model.Room{}, report, err
	}
	return rooms[idx], report, nil
}

// SetupRooms создаёт номера по этажам, если номеров ещё нет.
// Номера 01–05 на этаже — Single, 06–08 — Double по полуторной цене, 09 и выше — Suite по двойной.
func (s *Service) SetupRooms(ctx context.Context, plan SetupPlan) ([]model.Room, mirror.Report, error) {
	var report mirror.Report
	if plan.Floors < 1 || plan.Floors > 99 || plan.RoomsPerFloor < 1 || plan.RoomsPerFloor > 99 {
		return nil, report, fmt.Errorf("%w: floors and rooms per floor must be between 1 and 99", ErrInvalidInput)
	}
	if plan.BasePrice < 0 || math.IsNaN(plan.BasePrice) || math.IsInf(plan.BasePrice, 0) {
		return nil, report, fmt.Errorf("%w: base price must be a non-negative number", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := load[model.Room](ctx, s, model.CollectionRooms, &report)
	if err != nil {
		return nil, report, err
	}
	if len(existing) > 0 {
		return nil, report, ErrRoomsExist
	}

	rooms := generateRooms(plan, s.newID)
	if err := save(ctx, s, model.CollectionRooms, rooms, &report); err != nil {
		return nil, report, err
	}

	s.logger.Info("rooms generated by setup wizard", zap.Int("rooms", len(rooms)))
	return rooms, report, nil
}

func generateRooms(plan SetupPlan, newID func() string) []model.Room {
	rooms := make([]model.Room, 0, plan.Floors*plan.RoomsPerFloor)
	for f := 1; f <= plan.Floors; f++ {
		for r := 1; r <= plan.RoomsPerFloor; r++ {
			room := model.Room{
				ID:     newID(),
				Number: fmt.Sprintf("%d%02d", f, r),
				Type:   model.RoomTypeSingle,
				Status: model.RoomStatusAvailable,
				Price:  plan.BasePrice,
			}
			switch {
			case r > 8:
				room.Type = model.RoomTypeSuite
				room.Price = plan.BasePrice * 2
			case r > 5:
				room.Type = model.RoomTypeDouble
				room.Price = math.Round(plan.BasePrice * 1.5)
			}
			rooms = append(rooms, room)
		}
	}
	return rooms
}

func roomIndexByID(rooms []model.Room, id string) int {
	for i := range rooms {
		if rooms[i].ID == id {
			return i
		}
	}
	return -1
}

func roomIndexByNumber(rooms []model.Room, number string) int {
	for i := range rooms {
		if rooms[i].Number == number {
			return i
		}
	}
	return -1
}
