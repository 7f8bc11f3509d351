package service

import (
	"context"
	"io"
	"math"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/staysync/internal/mirror"
	"github.com/mmeshcher/staysync/internal/model"
	"github.com/mmeshcher/staysync/internal/report"
)

// revenueDays — длина окна графика дневной выручки.
const revenueDays = 7

// Summary — финансовая сводка по журналу операций.
type Summary struct {
	Income       float64                               `json:"income"`
	Expenses     float64                               `json:"expenses"`
	Profit       float64                               `json:"profit"`
	ByCategory   map[model.TransactionCategory]float64 `json:"byCategory"`
	Transactions int                                   `json:"transactions"`
}

// DailyIncome — доход за один календарный день.
type DailyIncome struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// Dashboard — сводные показатели для главного экрана.
type Dashboard struct {
	TotalRooms    int                      `json:"totalRooms"`
	OccupiedRooms int                      `json:"occupiedRooms"`
	OccupancyRate int                      `json:"occupancyRate"`
	RoomStatuses  map[model.RoomStatus]int `json:"roomStatuses"`
	ActiveTickets int                      `json:"activeTickets"`
	TodayIncome   float64                  `json:"todayIncome"`
	TotalRevenue  float64                  `json:"totalRevenue"`
	TotalExpenses float64                  `json:"totalExpenses"`
	Revenue       []DailyIncome            `json:"revenue"`
}

// Export — готовая выгрузка журнала операций.
type Export struct {
	Format   report.Format
	FileName string
	write    func(w io.Writer) error
}

// Render записывает выгрузку в w.
func (e Export) Render(w io.Writer) error {
	return e.write(w)
}

// ListTransactions возвращает журнал операций, новые — первыми.
func (s *Service) ListTransactions(ctx context.Context) ([]model.Transaction, mirror.Report, error) {
	var rep mirror.Report
	txs, err := load[model.Transaction](ctx, s, model.CollectionTransactions, &rep)
	return txs, rep, err
}

// AccountingSummary суммирует доходы и расходы по журналу операций.
func (s *Service) AccountingSummary(ctx context.Context) (Summary, mirror.Report, error) {
	txs, rep, err := s.ListTransactions(ctx)
	if err != nil {
		return Summary{}, rep, err
	}
	return summarize(txs), rep, nil
}

func summarize(txs []model.Transaction) Summary {
	income, expenses := decimal.Zero, decimal.Zero
	byCategory := make(map[model.TransactionCategory]decimal.Decimal, len(model.Categories))

	for _, t := range txs {
		amount := decimal.NewFromFloat(t.Amount)
		switch t.Type {
		case model.TransactionIncome:
			income = income.Add(amount)
		case model.TransactionExpense:
			expenses = expenses.Add(amount)
		}
		byCategory[t.Category] = byCategory[t.Category].Add(amount)
	}

	out := Summary{
		Income:       income.InexactFloat64(),
		Expenses:     expenses.InexactFloat64(),
		Profit:       income.Sub(expenses).InexactFloat64(),
		ByCategory:   make(map[model.TransactionCategory]float64, len(byCategory)),
		Transactions: len(txs),
	}
	for c, v := range byCategory {
		out.ByCategory[c] = v.InexactFloat64()
	}
	return out
}

// ExportTransactions готовит выгрузку журнала в запрошенном формате.
func (s *Service) ExportTransactions(ctx context.Context, format string) (Export, mirror.Report, error) {
	f, err := report.ParseFormat(format)
	if err != nil {
		return Export{}, mirror.Report{}, err
	}

	txs, rep, err := s.ListTransactions(ctx)
	if err != nil {
		return Export{}, rep, err
	}

	return Export{
		Format:   f,
		FileName: f.FileName(s.today()),
		write: func(w io.Writer) error {
			return report.Write(w, f, txs)
		},
	}, rep, nil
}

// History возвращает архив завершённых проживаний.
func (s *Service) History(ctx context.Context) ([]model.BookingHistory, mirror.Report, error) {
	var rep mirror.Report
	history, err := load[model.BookingHistory](ctx, s, model.CollectionHistory, &rep)
	return history, rep, err
}

// Dashboard собирает показатели загрузки, заявок и выручки.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, mirror.Report, error) {
	var rep mirror.Report

	rooms, err := load[model.Room](ctx, s, model.CollectionRooms, &rep)
	if err != nil {
		return Dashboard{}, rep, err
	}
	tickets, err := load[model.MaintenanceTicket](ctx, s, model.CollectionMaintenance, &rep)
	if err != nil {
		return Dashboard{}, rep, err
	}
	txs, err := load[model.Transaction](ctx, s, model.CollectionTransactions, &rep)
	if err != nil {
		return Dashboard{}, rep, err
	}

	d := Dashboard{
		TotalRooms: len(rooms),
		RoomStatuses: map[model.RoomStatus]int{
			model.RoomStatusAvailable:   0,
			model.RoomStatusOccupied:    0,
			model.RoomStatusDirty:       0,
			model.RoomStatusMaintenance: 0,
		},
	}
	for _, r := range rooms {
		d.RoomStatuses[r.Status]++
	}
	d.OccupiedRooms = d.RoomStatuses[model.RoomStatusOccupied]
	if d.TotalRooms > 0 {
		d.OccupancyRate = int(math.Round(float64(d.OccupiedRooms) / float64(d.TotalRooms) * 100))
	}

	for _, t := range tickets {
		if t.Status != model.TicketResolved {
			d.ActiveTickets++
		}
	}

	summary := summarize(txs)
	d.TotalRevenue = summary.Income
	d.TotalExpenses = summary.Expenses

	now := s.now().UTC()
	daily := make(map[string]decimal.Decimal, revenueDays)
	for _, t := range txs {
		if t.Type == model.TransactionIncome {
			daily[t.Date] = daily[t.Date].Add(decimal.NewFromFloat(t.Amount))
		}
	}
	d.Revenue = make([]DailyIncome, 0, revenueDays)
	for i := revenueDays - 1; i >= 0; i-- {
		date := model.FormatDate(now.AddDate(0, 0, -i))
		d.Revenue = append(d.Revenue, DailyIncome{Date: date, Amount: daily[date].InexactFloat64()})
	}
	d.TodayIncome = d.Revenue[len(d.Revenue)-1].Amount

	return d, rep, nil
}
