// Package model содержит доменные сущности сервиса StaySync.
package model

import (
	"encoding/json"
	"time"
)

// DateLayout задаёт формат календарных дат во всех сущностях.
const DateLayout = "2006-01-02"

// ParseDate разбирает календарную дату в формате YYYY-MM-DD (UTC, полночь).
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate форматирует момент времени как календарную дату.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// RoomType описывает категорию номера.
type RoomType string

const (
	RoomTypeSingle RoomType = "Single"
	RoomTypeDouble RoomType = "Double"
	RoomTypeSuite  RoomType = "Suite"
	RoomTypeDeluxe RoomType = "Deluxe"
)

// RoomStatus описывает состояние номера.
type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "Available"
	RoomStatusOccupied    RoomStatus = "Occupied"
	RoomStatusDirty       RoomStatus = "Dirty"
	RoomStatusMaintenance RoomStatus = "Maintenance"
)

// Room описывает номер отеля.
// GuestID заполнен тогда и только тогда, когда номер занят.
type Room struct {
	ID       string     `json:"id"`
	Number   string     `json:"number"`
	Type     RoomType   `json:"type"`
	Status   RoomStatus `json:"status"`
	Price    float64    `json:"price"`
	Discount *float64   `json:"discount,omitempty"`
	GuestID  string     `json:"guestId,omitempty"`
}

// GetID возвращает ключ записи.
func (r Room) GetID() string { return r.ID }

// GuestStatus описывает стадию проживания гостя.
type GuestStatus string

const (
	GuestStatusReserved   GuestStatus = "Reserved"
	GuestStatusCheckedIn  GuestStatus = "Checked In"
	GuestStatusCheckedOut GuestStatus = "Checked Out"
)

// Guest описывает гостя и его бронирование.
// RoomNumber — слабая ссылка на Room.Number, Balance — справочное поле (положительное значение означает долг).
type Guest struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Phone      string      `json:"phone"`
	CheckIn    string      `json:"checkIn"`
	CheckOut   string      `json:"checkOut"`
	RoomNumber string      `json:"roomNumber"`
	VIP        bool        `json:"vip"`
	Status     GuestStatus `json:"status"`
	Balance    float64     `json:"balance"`
}

// GetID возвращает ключ записи.
func (g Guest) GetID() string { return g.ID }

// TransactionType задаёт направление движения денег.
type TransactionType string

const (
	TransactionIncome  TransactionType = "Income"
	TransactionExpense TransactionType = "Expense"
)

// TransactionCategory — закрытый перечень статей учёта.
type TransactionCategory string

const (
	CategoryRoomRevenue     TransactionCategory = "Room Revenue"
	CategoryFoodBeverage    TransactionCategory = "F&B"
	CategoryServices        TransactionCategory = "Services"
	CategoryMaintenanceCost TransactionCategory = "Maintenance Cost"
	CategoryPayroll         TransactionCategory = "Payroll"
	CategoryUtilities       TransactionCategory = "Utilities"
	CategoryGuestPayment    TransactionCategory = "Guest Payment"
)

// Categories перечисляет статьи в порядке отображения.
var Categories = []TransactionCategory{
	CategoryRoomRevenue,
	CategoryFoodBeverage,
	CategoryServices,
	CategoryMaintenanceCost,
	CategoryPayroll,
	CategoryUtilities,
	CategoryGuestPayment,
}

// Transaction описывает запись журнала операций. Сумма всегда положительна, знак задаётся типом.
type Transaction struct {
	ID          string              `json:"id"`
	Date        string              `json:"date"`
	Category    TransactionCategory `json:"category"`
	Amount      float64             `json:"amount"`
	Description string              `json:"description"`
	Type        TransactionType     `json:"type"`
	GuestID     string              `json:"guestId,omitempty"`
}

// GetID возвращает ключ записи.
func (t Transaction) GetID() string { return t.ID }

// TicketPriority описывает срочность заявки.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "Low"
	PriorityMedium TicketPriority = "Medium"
	PriorityHigh   TicketPriority = "High"
)

// TicketStatus описывает стадию заявки на обслуживание.
type TicketStatus string

const (
	TicketPending    TicketStatus = "Pending"
	TicketInProgress TicketStatus = "In Progress"
	TicketResolved   TicketStatus = "Resolved"
)

// MaintenanceTicket описывает заявку на ремонт.
// Cost и CompletedDate заполняются только при закрытии заявки.
type MaintenanceTicket struct {
	ID            string         `json:"id"`
	RoomNumber    string         `json:"roomNumber"`
	Description   string         `json:"description"`
	Priority      TicketPriority `json:"priority"`
	Status        TicketStatus   `json:"status"`
	ReportedBy    string         `json:"reportedBy"`
	Date          string         `json:"date"`
	Cost          *float64       `json:"cost,omitempty"`
	CompletedDate string         `json:"completedDate,omitempty"`
}

// GetID возвращает ключ записи.
func (m MaintenanceTicket) GetID() string { return m.ID }

// StaffRole — должность сотрудника.
type StaffRole string

const (
	StaffSuperuser    StaffRole = "Superuser"
	StaffManager      StaffRole = "Manager"
	StaffHousekeeping StaffRole = "Housekeeping"
	StaffReception    StaffRole = "Reception"
	StaffMaintenance  StaffRole = "Maintenance"
)

// DutyStatus — текущее состояние смены сотрудника.
type DutyStatus string

const (
	DutyOn    DutyStatus = "On Duty"
	DutyOff   DutyStatus = "Off Duty"
	DutyBreak DutyStatus = "Break"
)

// Staff описывает сотрудника. PIN хранится в открытом виде.
type Staff struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Role   StaffRole  `json:"role"`
	Status DutyStatus `json:"status"`
	Shift  string     `json:"shift"`
	PIN    string     `json:"pin"`
}

// GetID возвращает ключ записи.
func (s Staff) GetID() string { return s.ID }

// BookingOutcome — итог архивного проживания.
type BookingOutcome string

const (
	OutcomeCompleted BookingOutcome = "Completed"
	OutcomeCancelled BookingOutcome = "Cancelled"
	OutcomeNoShow    BookingOutcome = "No Show"
)

// BookingHistory — неизменяемая архивная запись о проживании.
type BookingHistory struct {
	ID          string         `json:"id"`
	GuestID     string         `json:"guestId"`
	CheckIn     string         `json:"checkIn"`
	CheckOut    string         `json:"checkOut"`
	RoomNumber  string         `json:"roomNumber"`
	RoomType    RoomType       `json:"roomType"`
	TotalAmount float64        `json:"totalAmount"`
	Status      BookingOutcome `json:"status"`
	Rating      *int           `json:"rating,omitempty"`
}

// GetID возвращает ключ записи.
func (b BookingHistory) GetID() string { return b.ID }

// Role — роль сессии, выведенная из должности сотрудника.
type Role string

const (
	RoleSuperuser  Role = "Superuser"
	RoleManager    Role = "Manager"
	RoleStaff      Role = "Staff"
	RoleContractor Role = "Contractor"
)

// SessionRole сопоставляет должность сотрудника с ролью сессии.
func SessionRole(r StaffRole) Role {
	switch r {
	case StaffSuperuser:
		return RoleSuperuser
	case StaffManager:
		return RoleManager
	case StaffMaintenance:
		return RoleContractor
	default:
		return RoleStaff
	}
}

// IsManagement сообщает, есть ли у роли доступ к управлению.
func (r Role) IsManagement() bool {
	return r == RoleManager || r == RoleSuperuser
}

// Document — запись коллекции в хранилище: ключ и JSON-тело.
type Document struct {
	ID   string
	Body json.RawMessage
}
