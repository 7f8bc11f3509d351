package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mmeshcher/staysync/internal/mirror"
	"github.com/mmeshcher/staysync/internal/model"
)

type stubStore struct {
	data      map[model.Collection][]model.Document
	settings  model.Settings
	saveWarn  bool
	loadErr   error
	saves     []model.Collection
	wiped     bool
	imported  *model.Snapshot
	reconfErr error
}

func newStubStore() *stubStore {
	return &stubStore{data: make(map[model.Collection][]model.Document)}
}

func (s *stubStore) Load(ctx context.Context, c model.Collection) ([]model.Document, mirror.Report, error) {
	if s.loadErr != nil {
		return nil, mirror.Report{}, s.loadErr
	}
	docs := make([]model.Document, len(s.data[c]))
	copy(docs, s.data[c])
	return docs, mirror.Report{Source: model.DataSourceLocal}, nil
}

func (s *stubStore) Save(ctx context.Context, c model.Collection, docs []model.Document) (mirror.Report, error) {
	s.data[c] = docs
	s.saves = append(s.saves, c)

	report := mirror.Report{Source: model.DataSourceLocal}
	if s.saveWarn {
		report.Source = model.DataSourceCloud
		report.Warnings = []mirror.Warning{{Kind: mirror.WarningCloudWriteFailed, Collection: c}}
	}
	return report, nil
}

func (s *stubStore) ExportAll(ctx context.Context) (*model.Snapshot, error) {
	snap := &model.Snapshot{Version: model.SnapshotVersion}
	for _, c := range model.Collections {
		if err := snap.SetDocuments(c, s.data[c]); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (s *stubStore) ImportAll(ctx context.Context, snap *model.Snapshot) ([]model.Collection, error) {
	s.imported = snap
	return []model.Collection{model.CollectionRooms}, nil
}

func (s *stubStore) WipeAll(ctx context.Context) error {
	s.wiped = true
	return nil
}

func (s *stubStore) Reconfigure(ctx context.Context, settings model.Settings) (map[model.Collection]mirror.Report, error) {
	if s.reconfErr != nil {
		return nil, s.reconfErr
	}
	s.settings = settings
	out := make(map[model.Collection]mirror.Report)
	for _, c := range model.Collections {
		out[c] = mirror.Report{
			Source:   model.DataSourceLocal,
			Warnings: []mirror.Warning{{Kind: mirror.WarningCloudReadFallback, Collection: c}},
		}
	}
	return out, nil
}

func (s *stubStore) Settings() model.Settings { return s.settings }
func (s *stubStore) Close() error             { return nil }

func put[T model.Keyed](t *testing.T, s *stubStore, c model.Collection, items ...T) {
	t.Helper()
	docs, err := mirror.Encode(items)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s.data[c] = docs
}

func get[T any](t *testing.T, s *stubStore, c model.Collection) []T {
	t.Helper()
	items, err := mirror.Decode[T](s.data[c])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return items
}

var fixedNow = time.Date(2023, 10, 28, 12, 0, 0, 0, time.UTC)

func newTestService(store *stubStore) *Service {
	n := 0
	return NewService(store,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
}

func ptr[T any](v T) *T { return &v }

func TestAddRoom(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionRooms, model.Room{ID: "r1", Number: "101", Type: model.RoomTypeSingle, Status: model.RoomStatusAvailable, Price: 90})
	svc := newTestService(store)

	room, _, err := svc.AddRoom(context.Background(), RoomInput{Number: "102", Type: model.RoomTypeDouble, Price: 120})
	if err != nil {
		t.Fatalf("AddRoom: %v", err)
	}
	if room.Status != model.RoomStatusAvailable || room.ID != "id-1" {
		t.Fatalf("unexpected room: %+v", room)
	}
	if got := get[model.Room](t, store, model.CollectionRooms); len(got) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(got))
	}

	_, _, err = svc.AddRoom(context.Background(), RoomInput{Number: "101", Type: model.RoomTypeSingle, Price: 90})
	if !errors.Is(err, ErrRoomNumberTaken) {
		t.Fatalf("expected ErrRoomNumberTaken, got %v", err)
	}

	_, _, err = svc.AddRoom(context.Background(), RoomInput{Number: "103", Type: model.RoomTypeSingle, Price: 90, Discount: ptr(150.0)})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOccupiedRoomIsProtected(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionRooms, model.Room{ID: "r1", Number: "101", Type: model.RoomTypeSingle, Status: model.RoomStatusOccupied, Price: 90, GuestID: "g1"})
	svc := newTestService(store)
	ctx := context.Background()

	if _, _, err := svc.SetRoomStatus(ctx, "r1", model.RoomStatusDirty); !errors.Is(err, ErrRoomOccupied) {
		t.Fatalf("expected ErrRoomOccupied on status change, got %v", err)
	}
	if _, err := svc.DeleteRoom(ctx, "r1"); !errors.Is(err, ErrRoomOccupied) {
		t.Fatalf("expected ErrRoomOccupied on delete, got %v", err)
	}
	if _, _, err := svc.UpdateRoom(ctx, "r1", RoomInput{Number: "201", Type: model.RoomTypeSingle, Price: 90}); !errors.Is(err, ErrRoomOccupied) {
		t.Fatalf("expected ErrRoomOccupied on renumber, got %v", err)
	}
	if _, _, err := svc.SetRoomStatus(ctx, "r1", model.RoomStatusOccupied); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for manual occupancy, got %v", err)
	}

	room, _, err := svc.UpdateRoom(ctx, "r1", RoomInput{Number: "101", Type: model.RoomTypeSuite, Price: 200, Discount: ptr(10.0)})
	if err != nil {
		t.Fatalf("UpdateRoom: %v", err)
	}
	if room.GuestID != "g1" || room.Status != model.RoomStatusOccupied || room.Price != 200 {
		t.Fatalf("unexpected room after update: %+v", room)
	}
}

func TestSetupRooms(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)

	rooms, _, err := svc.SetupRooms(context.Background(), SetupPlan{Floors: 2, RoomsPerFloor: 10, BasePrice: 120})
	if err != nil {
		t.Fatalf("SetupRooms: %v", err)
	}
	if len(rooms) != 20 {
		t.Fatalf("expected 20 rooms, got %d", len(rooms))
	}

	checks := map[string]struct {
		typ   model.RoomType
		price float64
	}{
		"101": {model.RoomTypeSingle, 120},
		"106": {model.RoomTypeDouble, 180},
		"209": {model.RoomTypeSuite, 240},
		"210": {model.RoomTypeSuite, 240},
	}
	for _, r := range rooms {
		want, ok := checks[r.Number]
		if !ok {
			continue
		}
		if r.Type != want.typ || r.Price != want.price || r.Status != model.RoomStatusAvailable {
			t.Fatalf("room %s = %+v, want %v at %v", r.Number, r, want.typ, want.price)
		}
	}

	_, _, err = svc.SetupRooms(context.Background(), SetupPlan{Floors: 1, RoomsPerFloor: 1, BasePrice: 100})
	if !errors.Is(err, ErrRoomsExist) {
		t.Fatalf("expected ErrRoomsExist, got %v", err)
	}
}

func TestBookGuest(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionRooms,
		model.Room{ID: "r1", Number: "101", Type: model.RoomTypeSingle, Status: model.RoomStatusAvailable, Price: 90},
		model.Room{ID: "r2", Number: "102", Type: model.RoomTypeSingle, Status: model.RoomStatusDirty, Price: 90},
	)
	svc := newTestService(store)
	ctx := context.Background()

	in := GuestInput{Name: "Ada", CheckIn: "2023-10-25", CheckOut: "2023-10-28", RoomNumber: "101", Status: model.GuestStatusCheckedIn}
	guest, _, err := svc.BookGuest(ctx, in)
	if err != nil {
		t.Fatalf("BookGuest: %v", err)
	}
	if guest.Balance != 0 {
		t.Fatalf("expected zero balance, got %v", guest.Balance)
	}

	rooms := get[model.Room](t, store, model.CollectionRooms)
	if rooms[0].Status != model.RoomStatusOccupied || rooms[0].GuestID != guest.ID {
		t.Fatalf("room not occupied: %+v", rooms[0])
	}

	in.RoomNumber = "102"
	if _, _, err := svc.BookGuest(ctx, in); !errors.Is(err, ErrRoomUnavailable) {
		t.Fatalf("expected ErrRoomUnavailable, got %v", err)
	}
	in.RoomNumber = "999"
	if _, _, err := svc.BookGuest(ctx, in); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	in.RoomNumber = "101"
	in.CheckOut = "2023-10-20"
	if _, _, err := svc.BookGuest(ctx, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBookGuest_ReservedLeavesRoomAvailable(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionRooms, model.Room{ID: "r1", Number: "101", Type: model.RoomTypeSingle, Status: model.RoomStatusAvailable, Price: 90})
	svc := newTestService(store)

	_, _, err := svc.BookGuest(context.Background(), GuestInput{
		Name: "Ada", CheckIn: "2023-11-01", CheckOut: "2023-11-03", RoomNumber: "101", Status: model.GuestStatusReserved,
	})
	if err != nil {
		t.Fatalf("BookGuest: %v", err)
	}

	rooms := get[model.Room](t, store, model.CollectionRooms)
	if rooms[0].Status != model.RoomStatusAvailable || rooms[0].GuestID != "" {
		t.Fatalf("reserved guest must not occupy the room: %+v", rooms[0])
	}
	for _, c := range store.saves {
		if c == model.CollectionRooms {
			t.Fatalf("rooms must not be saved for a reservation")
		}
	}
}

func TestUpdateGuest_RoomTransfer(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionRooms,
		model.Room{ID: "r1", Number: "101", Type: model.RoomTypeSingle, Status: model.RoomStatusOccupied, Price: 90, GuestID: "g1"},
		model.Room{ID: "r2", Number: "102", Type: model.RoomTypeSingle, Status: model.RoomStatusAvailable, Price: 90},
	)
	put(t, store, model.CollectionGuests, model.Guest{ID: "g1", Name: "Ada", CheckIn: "2023-10-25", CheckOut: "2023-10-28", RoomNumber: "101", Status: model.GuestStatusCheckedIn})
	svc := newTestService(store)

	in := GuestInput{Name: "Ada", CheckIn: "2023-10-25", CheckOut: "2023-10-28", RoomNumber: "102", Status: model.GuestStatusCheckedIn}
	res, _, err := svc.UpdateGuest(context.Background(), "g1", in)
	if err != nil {
		t.Fatalf("UpdateGuest: %v", err)
	}
	if res.Notice != "" {
		t.Fatalf("unexpected notice %q", res.Notice)
	}

	rooms := get[model.Room](t, store, model.CollectionRooms)
	if rooms[0].Status != model.RoomStatusDirty || rooms[0].GuestID != "" {
		t.Fatalf("old room not freed: %+v", rooms[0])
	}
	if rooms[1].Status != model.RoomStatusOccupied || rooms[1].GuestID != "g1" {
		t.Fatalf("new room not occupied: %+v", rooms[1])
	}
}

func TestUpdateGuest_MissingRoomNotice(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionRooms, model.Room{ID: "r1", Number: "101", Type: model.RoomTypeSingle, Status: model.RoomStatusOccupied, Price: 90, GuestID: "g1"})
	put(t, store, model.CollectionGuests, model.Guest{ID: "g1", Name: "Ada", CheckIn: "2023-10-25", CheckOut: "2023-10-28", RoomNumber: "101", Status: model.GuestStatusCheckedIn})
	svc := newTestService(store)

	in := GuestInput{Name: "Ada", CheckIn: "2023-10-25", CheckOut: "2023-10-28", RoomNumber: "909", Status: model.GuestStatusCheckedIn}
	res, _, err := svc.UpdateGuest(context.Background(), "g1", in)
	if err != nil {
		t.Fatalf("UpdateGuest: %v", err)
	}
	if !strings.Contains(res.Notice, "909") {
		t.Fatalf("expected notice about room 909, got %q", res.Notice)
	}
	if got := get[model.Guest](t, store, model.CollectionGuests)[0]; got.RoomNumber != "909" {
		t.Fatalf("guest not updated: %+v", got)
	}
}

func TestUpdateGuest_ReservedToCheckedIn(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionRooms, model.Room{ID: "r1", Number: "101", Type: model.RoomTypeSingle, Status: model.RoomStatusAvailable, Price: 90})
	put(t, store, model.CollectionGuests, model.Guest{ID: "g1", Name: "Ada", CheckIn: "2023-10-28", CheckOut: "2023-10-30", RoomNumber: "101", Status: model.GuestStatusReserved})
	svc := newTestService(store)

	in := GuestInput{Name: "Ada", CheckIn: "2023-10-28", CheckOut: "2023-10-30", RoomNumber: "101", Status: model.GuestStatusCheckedIn}
	if _, _, err := svc.UpdateGuest(context.Background(), "g1", in); err != nil {
		t.Fatalf("UpdateGuest: %v", err)
	}

	rooms := get[model.Room](t, store, model.CollectionRooms)
	if rooms[0].Status != model.RoomStatusOccupied || rooms[0].GuestID != "g1" {
		t.Fatalf("room not occupied after check-in: %+v", rooms[0])
	}
}

func TestCheckoutRoom(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionRooms,
		model.Room{ID: "r1", Number: "101", Type: model.RoomTypeSingle, Status: model.RoomStatusOccupied, Price: 90, GuestID: "g1"},
		model.Room{ID: "r2", Number: "102", Type: model.RoomTypeSingle, Status: model.RoomStatusAvailable, Price: 90},
	)
	put(t, store, model.CollectionGuests, model.Guest{ID: "g1", Name: "Ada", CheckIn: "2023-10-25", CheckOut: "2023-10-30", RoomNumber: "101", Status: model.GuestStatusCheckedIn})
	svc := newTestService(store)
	ctx := context.Background()

	room, _, err := svc.CheckoutRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("CheckoutRoom: %v", err)
	}
	if room.Status != model.RoomStatusDirty || room.GuestID != "" {
		t.Fatalf("room not released: %+v", room)
	}

	guest := get[model.Guest](t, store, model.CollectionGuests)[0]
	if guest.Status != model.GuestStatusCheckedOut || guest.CheckOut != "2023-10-28" {
		t.Fatalf("guest not checked out: %+v", guest)
	}

	if _, _, err := svc.CheckoutRoom(ctx, "r2"); !errors.Is(err, ErrRoomHasNoGuest) {
		t.Fatalf("expected ErrRoomHasNoGuest, got %v", err)
	}
	if _, _, err := svc.CheckoutRoom(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordPayment(t *testing.T) {
	store := newStubStore()
	store.saveWarn = true
	put(t, store, model.CollectionRooms, model.Room{ID: "r1", Number: "101", Type: model.RoomTypeSingle, Status: model.RoomStatusOccupied, Price: 90, GuestID: "g1"})
	put(t, store, model.CollectionGuests, model.Guest{ID: "g1", Name: "Ada", CheckIn: "2023-10-25", CheckOut: "2023-10-28", RoomNumber: "101", Status: model.GuestStatusCheckedIn, Balance: 270})
	put(t, store, model.CollectionTransactions, model.Transaction{ID: "t0", Date: "2023-10-25", Category: model.CategoryRoomRevenue, Amount: 50, Type: model.TransactionIncome})
	svc := newTestService(store)
	ctx := context.Background()

	before, _, err := svc.GuestBill(ctx, "g1")
	if err != nil {
		t.Fatalf("GuestBill: %v", err)
	}
	if before.Accrued != 270 || before.Balance != 270 {
		t.Fatalf("unexpected bill before payment: %+v", before)
	}

	tx, report, err := svc.RecordPayment(ctx, "g1", PaymentInput{Amount: 100})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if tx.Date != "2023-10-28" || tx.Description != "Room Payment" || tx.Category != model.CategoryGuestPayment {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if len(report.Warnings) != 2 {
		t.Fatalf("expected one warning per saved collection, got %d", len(report.Warnings))
	}

	txs := get[model.Transaction](t, store, model.CollectionTransactions)
	if txs[0].ID != tx.ID {
		t.Fatalf("payment must be prepended, got %s first", txs[0].ID)
	}

	after, _, err := svc.GuestBill(ctx, "g1")
	if err != nil {
		t.Fatalf("GuestBill: %v", err)
	}
	if after.Balance != 170 || after.Paid != 100 {
		t.Fatalf("unexpected bill after payment: %+v", after)
	}
	if g := get[model.Guest](t, store, model.CollectionGuests)[0]; g.Balance != 170 {
		t.Fatalf("stored balance = %v, want 170", g.Balance)
	}

	if _, _, err := svc.RecordPayment(ctx, "g1", PaymentInput{Amount: -5}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative amount, got %v", err)
	}
	if _, _, err := svc.RecordPayment(ctx, "ghost", PaymentInput{Amount: 5}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGuestBill_BillsByCalendarDate(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionRooms, model.Room{ID: "r1", Number: "202", Type: model.RoomTypeDeluxe, Status: model.RoomStatusOccupied, Price: 250, GuestID: "g1"})
	put(t, store, model.CollectionGuests, model.Guest{ID: "g1", Name: "Rob", CheckIn: "2023-10-26", CheckOut: "2023-10-30", RoomNumber: "202", Status: model.GuestStatusCheckedIn})
	svc := newTestService(store)

	bill, _, err := svc.GuestBill(context.Background(), "g1")
	if err != nil {
		t.Fatalf("GuestBill: %v", err)
	}
	if bill.AsOf != "2023-10-28" || bill.Nights != 2 || bill.Accrued != 500 {
		t.Fatalf("unexpected bill at midday: %+v", bill)
	}
}

func TestListGuests_UnlinkedFlag(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionRooms, model.Room{ID: "r1", Number: "101", Type: model.RoomTypeSingle, Status: model.RoomStatusAvailable, Price: 90})
	put(t, store, model.CollectionGuests,
		model.Guest{ID: "g1", Name: "Ada", CheckIn: "2023-10-25", CheckOut: "2023-10-28", RoomNumber: "101", Status: model.GuestStatusCheckedIn},
		model.Guest{ID: "g2", Name: "Bob", CheckIn: "2023-10-25", CheckOut: "2023-10-28", RoomNumber: "777", Status: model.GuestStatusCheckedIn},
	)
	svc := newTestService(store)

	views, _, err := svc.ListGuests(context.Background())
	if err != nil {
		t.Fatalf("ListGuests: %v", err)
	}
	if views[0].Unlinked || views[0].Bill.Accrued != 270 {
		t.Fatalf("unexpected first view: %+v", views[0])
	}
	if !views[1].Unlinked || views[1].Bill.Accrued != 0 {
		t.Fatalf("unexpected second view: %+v", views[1])
	}
}

func TestResolveTicket(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionMaintenance, model.MaintenanceTicket{ID: "m1", RoomNumber: "101", Description: "Leak", Priority: model.PriorityHigh, Status: model.TicketPending, Date: "2023-10-27"})
	svc := newTestService(store)
	ctx := context.Background()

	if _, _, err := svc.StartTicket(ctx, "m1"); err != nil {
		t.Fatalf("StartTicket: %v", err)
	}
	if _, _, err := svc.StartTicket(ctx, "m1"); !errors.Is(err, ErrTicketState) {
		t.Fatalf("expected ErrTicketState, got %v", err)
	}

	ticket, _, err := svc.ResolveTicket(ctx, "m1", 45, "replaced valve")
	if err != nil {
		t.Fatalf("ResolveTicket: %v", err)
	}
	if ticket.Status != model.TicketResolved || ticket.CompletedDate != "2023-10-28" || ticket.Cost == nil || *ticket.Cost != 45 {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}

	txs := get[model.Transaction](t, store, model.CollectionTransactions)
	if len(txs) != 1 {
		t.Fatalf("expected one expense, got %d", len(txs))
	}
	if txs[0].Type != model.TransactionExpense || txs[0].Category != model.CategoryMaintenanceCost ||
		txs[0].Description != "Ticket #m1 Resolution: replaced valve" {
		t.Fatalf("unexpected expense: %+v", txs[0])
	}

	if _, _, err := svc.ResolveTicket(ctx, "m1", 0, ""); !errors.Is(err, ErrTicketState) {
		t.Fatalf("expected ErrTicketState for resolved ticket, got %v", err)
	}
}

func TestResolveTicket_FreeFixAddsNoExpense(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionMaintenance, model.MaintenanceTicket{ID: "m1", RoomNumber: "101", Description: "Bulb", Priority: model.PriorityLow, Status: model.TicketPending, Date: "2023-10-27"})
	svc := newTestService(store)

	if _, _, err := svc.ResolveTicket(context.Background(), "m1", 0, "swapped"); err != nil {
		t.Fatalf("ResolveTicket: %v", err)
	}
	if len(store.data[model.CollectionTransactions]) != 0 {
		t.Fatalf("zero-cost resolution must not add a transaction")
	}
	if _, _, err := svc.ResolveTicket(context.Background(), "m1", -1, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAddTicketPrepends(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionMaintenance, model.MaintenanceTicket{ID: "m1", RoomNumber: "101", Description: "Leak", Priority: model.PriorityHigh, Status: model.TicketPending, Date: "2023-10-27"})
	svc := newTestService(store)

	ticket, _, err := svc.AddTicket(context.Background(), TicketInput{RoomNumber: "102", Description: "AC", Priority: model.PriorityMedium, ReportedBy: "Sarah"})
	if err != nil {
		t.Fatalf("AddTicket: %v", err)
	}
	if ticket.Status != model.TicketPending || ticket.Date != "2023-10-28" {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}
	if tickets := get[model.MaintenanceTicket](t, store, model.CollectionMaintenance); tickets[0].ID != ticket.ID {
		t.Fatalf("new ticket must be first")
	}
}

func TestStaffLifecycle(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)
	ctx := context.Background()

	session, _, err := svc.CreateAdmin(ctx, "Grace Hopper", "1234")
	if err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if session.Role != model.RoleSuperuser || session.Initials != "GH" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if _, _, err := svc.CreateAdmin(ctx, "Other", "9999"); !errors.Is(err, ErrAdminExists) {
		t.Fatalf("expected ErrAdminExists, got %v", err)
	}

	member, _, err := svc.AddStaff(ctx, StaffInput{Name: "Mike", Role: model.StaffMaintenance, Status: model.DutyOn, Shift: "Morning", PIN: "0000"})
	if err != nil {
		t.Fatalf("AddStaff: %v", err)
	}
	if member.PIN != "" {
		t.Fatalf("AddStaff must not return the PIN")
	}
	if _, _, err := svc.AddStaff(ctx, StaffInput{Name: "X", Role: model.StaffReception, Status: model.DutyOn, PIN: "12"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short PIN, got %v", err)
	}

	listed, _, err := svc.ListStaff(ctx)
	if err != nil {
		t.Fatalf("ListStaff: %v", err)
	}
	for _, s := range listed {
		if s.PIN != "" {
			t.Fatalf("ListStaff leaked PIN for %s", s.ID)
		}
	}

	recovered, _, err := svc.RecoverPINs(ctx)
	if err != nil {
		t.Fatalf("RecoverPINs: %v", err)
	}
	if recovered[1].PIN != "0000" {
		t.Fatalf("RecoverPINs must return PINs")
	}

	contractor, _, err := svc.Authenticate(ctx, member.ID, "0000")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if contractor.Role != model.RoleContractor {
		t.Fatalf("expected Contractor role, got %s", contractor.Role)
	}
	if _, _, err := svc.Authenticate(ctx, member.ID, "1111"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	updated, _, err := svc.SetStaffStatus(ctx, member.ID, model.DutyBreak)
	if err != nil || updated.Status != model.DutyBreak {
		t.Fatalf("SetStaffStatus: %+v, %v", updated, err)
	}

	restored, err := svc.SessionFor(ctx, member.ID)
	if err != nil || restored.Name != "Mike" {
		t.Fatalf("SessionFor: %+v, %v", restored, err)
	}

	if _, err := svc.DeleteStaff(ctx, member.ID); err != nil {
		t.Fatalf("DeleteStaff: %v", err)
	}
	if _, err := svc.SessionFor(ctx, member.ID); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after delete, got %v", err)
	}
	if _, err := svc.DeleteStaff(ctx, member.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountingSummary(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionTransactions,
		model.Transaction{ID: "t1", Date: "2023-10-28", Category: model.CategoryRoomRevenue, Amount: 100.1, Type: model.TransactionIncome},
		model.Transaction{ID: "t2", Date: "2023-10-27", Category: model.CategoryGuestPayment, Amount: 200.2, Type: model.TransactionIncome},
		model.Transaction{ID: "t3", Date: "2023-10-27", Category: model.CategoryUtilities, Amount: 50.3, Type: model.TransactionExpense},
	)
	svc := newTestService(store)

	summary, _, err := svc.AccountingSummary(context.Background())
	if err != nil {
		t.Fatalf("AccountingSummary: %v", err)
	}
	if summary.Income != 300.3 || summary.Expenses != 50.3 || summary.Profit != 250 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.ByCategory[model.CategoryUtilities] != 50.3 || summary.Transactions != 3 {
		t.Fatalf("unexpected categories: %+v", summary.ByCategory)
	}
}

func TestDashboard(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionRooms,
		model.Room{ID: "r1", Number: "101", Status: model.RoomStatusOccupied, GuestID: "g1"},
		model.Room{ID: "r2", Number: "102", Status: model.RoomStatusAvailable},
		model.Room{ID: "r3", Number: "103", Status: model.RoomStatusDirty},
	)
	put(t, store, model.CollectionMaintenance,
		model.MaintenanceTicket{ID: "m1", Status: model.TicketPending},
		model.MaintenanceTicket{ID: "m2", Status: model.TicketResolved},
	)
	put(t, store, model.CollectionTransactions,
		model.Transaction{ID: "t1", Date: "2023-10-28", Amount: 80, Type: model.TransactionIncome},
		model.Transaction{ID: "t2", Date: "2023-10-22", Amount: 40, Type: model.TransactionIncome},
		model.Transaction{ID: "t3", Date: "2023-10-01", Amount: 10, Type: model.TransactionIncome},
	)
	svc := newTestService(store)

	d, _, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.TotalRooms != 3 || d.OccupiedRooms != 1 || d.OccupancyRate != 33 || d.ActiveTickets != 1 {
		t.Fatalf("unexpected dashboard: %+v", d)
	}
	if d.TodayIncome != 80 || d.TotalRevenue != 130 {
		t.Fatalf("unexpected revenue: today=%v total=%v", d.TodayIncome, d.TotalRevenue)
	}
	if len(d.Revenue) != 7 || d.Revenue[0].Date != "2023-10-22" || d.Revenue[0].Amount != 40 {
		t.Fatalf("unexpected revenue window: %+v", d.Revenue)
	}
}

func TestExportTransactions(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionTransactions, model.Transaction{ID: "t1", Date: "2023-10-28", Amount: 80, Type: model.TransactionIncome})
	svc := newTestService(store)

	export, _, err := svc.ExportTransactions(context.Background(), "json")
	if err != nil {
		t.Fatalf("ExportTransactions: %v", err)
	}
	if export.FileName != "hotel_financials_2023-10-28.json" {
		t.Fatalf("unexpected file name %q", export.FileName)
	}

	var buf bytes.Buffer
	if err := export.Render(&buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var txs []model.Transaction
	if err := json.Unmarshal(buf.Bytes(), &txs); err != nil || len(txs) != 1 {
		t.Fatalf("unexpected export %s: %v", buf.String(), err)
	}

	if _, _, err := svc.ExportTransactions(context.Background(), "pdf"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestUpdateSettingsMergesWarnings(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)

	settings := model.Settings{DataSource: model.DataSourceCloud}
	report, err := svc.UpdateSettings(context.Background(), settings)
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if len(report.Warnings) != len(model.Collections) {
		t.Fatalf("expected %d warnings, got %d", len(model.Collections), len(report.Warnings))
	}
	if svc.Settings() != settings {
		t.Fatalf("settings not applied")
	}

	store.reconfErr = errors.New("disk full")
	if _, err := svc.UpdateSettings(context.Background(), settings); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDataManagement(t *testing.T) {
	store := newStubStore()
	put(t, store, model.CollectionRooms, model.Room{ID: "r1", Number: "101"})
	svc := newTestService(store)
	ctx := context.Background()

	snap, err := svc.ExportData(ctx)
	if err != nil {
		t.Fatalf("ExportData: %v", err)
	}
	if _, ok := snap.Data["staysync_rooms"]; !ok {
		t.Fatalf("snapshot misses rooms")
	}

	if _, err := svc.ImportData(ctx, snap); err != nil || store.imported != snap {
		t.Fatalf("ImportData: %v", err)
	}
	if err := svc.WipeData(ctx); err != nil || !store.wiped {
		t.Fatalf("WipeData: %v", err)
	}
}

func TestLoadErrorPropagates(t *testing.T) {
	store := newStubStore()
	store.loadErr = errors.New("disk failure")
	svc := newTestService(store)

	if _, _, err := svc.ListRooms(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
}
