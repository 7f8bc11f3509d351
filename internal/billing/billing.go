// Package billing вычисляет начисления, оплаты и текущий баланс гостя.
//
// Все функции пакета чистые: они ничего не сохраняют и не возвращают ошибок,
// поэтому их можно вызывать на каждый запрос. Несвязанный номер или
// нераспознаваемая дата дают нулевое начисление.
package billing

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/staysync/internal/model"
)

const day = 24 * time.Hour

var (
	// ErrInvalidAmount возвращается для неположительной или нечисловой суммы платежа.
	ErrInvalidAmount = errors.New("payment amount must be a positive number")
	// ErrInvalidDate возвращается, если дата платежа не является календарной датой.
	ErrInvalidDate = errors.New("payment date must be YYYY-MM-DD")
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// Bill содержит расчёт по гостю на указанную дату.
type Bill struct {
	GuestID     string  `json:"guestId"`
	Linked      bool    `json:"linked"`
	Nights      int64   `json:"nights"`
	NightlyRate float64 `json:"nightlyRate"`
	Accrued     float64 `json:"accrued"`
	Paid        float64 `json:"paid"`
	Balance     float64 `json:"balance"`
	AsOf        string  `json:"asOf"`
}

// FindRoom ищет номер по отображаемому номеру комнаты гостя.
func FindRoom(rooms []model.Room, number string) *model.Room {
	for i := range rooms {
		if rooms[i].Number == number {
			return &rooms[i]
		}
	}
	return nil
}

// EffectiveRate возвращает стоимость ночи с учётом скидки. Скидка не ограничивается диапазоном 0–100.
func EffectiveRate(room model.Room) float64 {
	return effectiveRate(room).InexactFloat64()
}

func effectiveRate(room model.Room) decimal.Decimal {
	rate := decimal.NewFromFloat(room.Price)
	if room.Discount != nil && *room.Discount != 0 {
		factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(*room.Discount).Div(hundred))
		rate = rate.Mul(factor)
	}
	return rate
}

// BillableNights считает оплачиваемые ночи: окно заканчивается в min(asOf, checkOut),
// неполные сутки округляются вверх, минимум одна ночь.
func BillableNights(checkIn, checkOut, asOf time.Time) int64 {
	end := checkOut
	if asOf.Before(checkOut) {
		end = asOf
	}

	diff := end.Sub(checkIn)
	nights := int64(diff / day)
	if diff%day > 0 {
		nights++
	}
	if nights < 1 {
		nights = 1
	}
	return nights
}

// AccruedCharges возвращает начисление за проживание на дату asOf, округлённое до целых.
// Время суток asOf не учитывается.
func AccruedCharges(guest model.Guest, room *model.Room, asOf time.Time) float64 {
	accrued, _, _ := accrue(guest, room, asOf)
	return accrued.InexactFloat64()
}

func accrue(guest model.Guest, room *model.Room, asOf time.Time) (decimal.Decimal, int64, bool) {
	if room == nil {
		return decimal.Zero, 0, false
	}

	checkIn, err := model.ParseDate(guest.CheckIn)
	if err != nil {
		return decimal.Zero, 0, false
	}
	checkOut, err := model.ParseDate(guest.CheckOut)
	if err != nil {
		return decimal.Zero, 0, false
	}

	nights := BillableNights(checkIn, checkOut, calendarDate(asOf))
	total := effectiveRate(*room).Mul(decimal.NewFromInt(nights))
	return roundHalfUp(total), nights, true
}

// TotalPaid суммирует доходные операции, привязанные к гостю.
func TotalPaid(guestID string, txs []model.Transaction) float64 {
	return totalPaid(guestID, txs).InexactFloat64()
}

func totalPaid(guestID string, txs []model.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		if t.GuestID == guestID && t.Type == model.TransactionIncome {
			sum = sum.Add(decimal.NewFromFloat(t.Amount))
		}
	}
	return sum
}

// LiveBalance возвращает начисления минус оплаты. Отрицательное значение означает переплату.
func LiveBalance(guest model.Guest, room *model.Room, txs []model.Transaction, asOf time.Time) float64 {
	accrued, _, _ := accrue(guest, room, asOf)
	return accrued.Sub(totalPaid(guest.ID, txs)).InexactFloat64()
}

// Compute собирает полный расчёт по гостю, находя его номер по значению.
func Compute(guest model.Guest, rooms []model.Room, txs []model.Transaction, asOf time.Time) Bill {
	room := FindRoom(rooms, guest.RoomNumber)
	accrued, nights, linked := accrue(guest, room, asOf)
	paid := totalPaid(guest.ID, txs)

	bill := Bill{
		GuestID: guest.ID,
		Linked:  linked,
		Nights:  nights,
		Accrued: accrued.InexactFloat64(),
		Paid:    paid.InexactFloat64(),
		Balance: accrued.Sub(paid).InexactFloat64(),
		AsOf:    model.FormatDate(calendarDate(asOf)),
	}
	if room != nil {
		bill.NightlyRate = EffectiveRate(*room)
	}
	return bill
}

// NewPayment формирует доходную операцию «Guest Payment». Дата может быть в прошлом.
func NewPayment(id, guestID string, amount float64, date, note string) (model.Transaction, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return model.Transaction{}, ErrInvalidAmount
	}
	if _, err := model.ParseDate(date); err != nil {
		return model.Transaction{}, ErrInvalidDate
	}
	if note == "" {
		note = "Room Payment"
	}

	return model.Transaction{
		ID:          id,
		Date:        date,
		Category:    model.CategoryGuestPayment,
		Amount:      amount,
		Description: note,
		Type:        model.TransactionIncome,
		GuestID:     guestID,
	}, nil
}

// DeductBalance уменьшает справочный баланс гостя на сумму платежа.
func DeductBalance(guest model.Guest, amount float64) model.Guest {
	guest.Balance = decimal.NewFromFloat(guest.Balance).Sub(decimal.NewFromFloat(amount)).InexactFloat64()
	return guest
}

// roundHalfUp округляет до целого, половины — в сторону плюс бесконечности.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Add(half).Floor()
}

// calendarDate отбрасывает время суток: расчёт ведётся по календарной дате asOf в UTC.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
