package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/staysync/internal/mirror"
	"github.com/mmeshcher/staysync/internal/model"
)

// TicketInput — данные новой заявки на ремонт.
type TicketInput struct {
	RoomNumber  string
	Description string
	Priority    model.TicketPriority
	ReportedBy  string
}

// ListTickets возвращает заявки, новые — первыми.
func (s *Service) ListTickets(ctx context.Context) ([]model.MaintenanceTicket, mirror.Report, error) {
	var report mirror.Report
	tickets, err := load[model.MaintenanceTicket](ctx, s, model.CollectionMaintenance, &report)
	return tickets, report, err
}

// AddTicket создаёт заявку в статусе Pending с сегодняшней датой.
func (s *Service) AddTicket(ctx context.Context, in TicketInput) (model.MaintenanceTicket, mirror.Report, error) {
	var report mirror.Report

	if strings.TrimSpace(in.RoomNumber) == "" || strings.TrimSpace(in.Description) == "" {
		return model.MaintenanceTicket{}, report, fmt.Errorf("%w: room number and description are required", ErrInvalidInput)
	}
	switch in.Priority {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
	default:
		return model.MaintenanceTicket{}, report, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, in.Priority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := load[model.MaintenanceTicket](ctx, s, model.CollectionMaintenance, &report)
	if err != nil {
		return model.MaintenanceTicket{}, report, err
	}

	ticket := model.MaintenanceTicket{
		ID:          s.newID(),
		RoomNumber:  in.RoomNumber,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      model.TicketPending,
		ReportedBy:  in.ReportedBy,
		Date:        s.today(),
	}
	tickets = append([]model.MaintenanceTicket{ticket}, tickets...)

	if err := save(ctx, s, model.CollectionMaintenance, tickets, &report); err != nil {
		return model.MaintenanceTicket{}, report, err
	}
	return ticket, report, nil
}

// StartTicket переводит заявку из Pending в In Progress.
func (s *Service) StartTicket(ctx context.Context, id string) (model.MaintenanceTicket, mirror.Report, error) {
	var report mirror.Report

	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := load[model.MaintenanceTicket](ctx, s, model.CollectionMaintenance, &report)
	if err != nil {
		return model.MaintenanceTicket{}, report, err
	}
	idx := ticketIndex(tickets, id)
	if idx < 0 {
		return model.MaintenanceTicket{}, report, fmt.Errorf("ticket %s: %w", id, ErrNotFound)
	}
	if tickets[idx].Status != model.TicketPending {
		return model.MaintenanceTicket{}, report, fmt.Errorf("%w: %s is %s", ErrTicketState, id, tickets[idx].Status)
	}

	tickets[idx].Status = model.TicketInProgress
	if err := save(ctx, s, model.CollectionMaintenance, tickets, &report); err != nil {
		return model.MaintenanceTicket{}, report, err
	}
	return tickets[idx], report, nil
}

// ResolveTicket закрывает заявку. Ненулевая стоимость попадает в журнал как расход «Maintenance Cost».
func (s *Service) ResolveTicket(ctx context.Context, id string, cost float64, note string) (model.MaintenanceTicket, mirror.Report, error) {
	var report mirror.Report

	if cost < 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return model.MaintenanceTicket{}, report, fmt.Errorf("%w: cost must be a non-negative number", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := load[model.MaintenanceTicket](ctx, s, model.CollectionMaintenance, &report)
	if err != nil {
		return model.MaintenanceTicket{}, report, err
	}
	idx := ticketIndex(tickets, id)
	if idx < 0 {
		return model.MaintenanceTicket{}, report, fmt.Errorf("ticket %s: %w", id, ErrNotFound)
	}
	if tickets[idx].Status == model.TicketResolved {
		return model.MaintenanceTicket{}, report, fmt.Errorf("%w: %s is already resolved", ErrTicketState, id)
	}

	today := s.today()
	tickets[idx].Status = model.TicketResolved
	tickets[idx].Cost = &cost
	tickets[idx].CompletedDate = today

	if err := save(ctx, s, model.CollectionMaintenance, tickets, &report); err != nil {
		return model.MaintenanceTicket{}, report, err
	}

	if cost > 0 {
		txs, err := load[model.Transaction](ctx, s, model.CollectionTransactions, &report)
		if err != nil {
			return tickets[idx], report, err
		}
		expense := model.Transaction{
			ID:          s.newID(),
			Date:        today,
			Category:    model.CategoryMaintenanceCost,
			Amount:      cost,
			Description: fmt.Sprintf("Ticket #%s Resolution: %s", id, note),
			Type:        model.TransactionExpense,
		}
		txs = append([]model.Transaction{expense}, txs...)
		if err := save(ctx, s, model.CollectionTransactions, txs, &report); err != nil {
			return tickets[idx], report, err
		}
	}

	s.logger.Info("ticket resolved", zap.String("ticketId", id), zap.Float64("cost", cost))
	return tickets[idx], report, nil
}

func ticketIndex(tickets []model.MaintenanceTicket, id string) int {
	for i := range tickets {
		if tickets[i].ID == id {
			return i
		}
	}
	return -1
}
