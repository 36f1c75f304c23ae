package expenses

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aquatrack/aquatrack/internal/shared"
)

// Service manages operating expenses, including purchase-side COGS entries.
type Service struct {
	repo  RepositoryPort
	clock *shared.Clock
}

// NewService builds Service.
func NewService(repo RepositoryPort, clock *shared.Clock) *Service {
	return &Service{repo: repo, clock: clock}
}

func validMethod(method string) bool {
	_, ok := allowedPayMethods[method]
	return ok
}

// CreateInput is the payload for recording an expense.
type CreateInput struct {
	Amount        float64
	Description   string
	Date          *time.Time
	PaymentMethod string
	Category      *string
}

// Create records an expense, defaulting the date to the current business day
// and the payment method to cash.
func (s *Service) Create(ctx context.Context, input CreateInput) (Expense, error) {
	if input.Amount < 0 {
		return Expense{}, fmt.Errorf("expenses: amount must be non-negative: %w", shared.ErrValidation)
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return Expense{}, fmt.Errorf("expenses: description is required: %w", shared.ErrValidation)
	}
	method := strings.TrimSpace(input.PaymentMethod)
	if method == "" {
		method = "Cash"
	}
	if !validMethod(method) {
		return Expense{}, fmt.Errorf("expenses: payment_method must be one of Bank, Cash, M-Pesa, Other: %w", shared.ErrValidation)
	}

	// Dates are stored date-only, as UTC midnight of the business-calendar
	// day, so explicit and defaulted dates land in the same day window.
	date := shared.DateOnly(s.clock.Today())
	if input.Date != nil {
		date = shared.DateOnly(*input.Date)
	}
	expense := Expense{
		Date:          date,
		Description:   description,
		Amount:        input.Amount,
		PaymentMethod: method,
	}
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category != "" {
			expense.Category = &category
		}
	}
	if actor := shared.ActorFromContext(ctx); actor != nil {
		expense.AddedBy = &actor.ID
	}
	if err := s.repo.Create(ctx, &expense); err != nil {
		return Expense{}, err
	}
	return expense, nil
}

// RecordCOGS records a purchase-side cost entry locked to the cogs category.
func (s *Service) RecordCOGS(ctx context.Context, input CreateInput) (Expense, error) {
	if strings.TrimSpace(input.Description) == "" {
		input.Description = "COGS purchase"
	}
	category := CategoryCOGS
	input.Category = &category
	return s.Create(ctx, input)
}

// UpdateInput carries partial changes to an expense.
type UpdateInput struct {
	Amount        *float64
	Description   *string
	Date          *time.Time
	PaymentMethod *string
	Category      *string
}

// Update edits an expense.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Expense, error) {
	expense, err := s.repo.Get(ctx, id)
	if err != nil {
		return Expense{}, err
	}
	if input.Amount != nil {
		if *input.Amount < 0 {
			return Expense{}, fmt.Errorf("expenses: amount must be non-negative: %w", shared.ErrValidation)
		}
		expense.Amount = *input.Amount
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return Expense{}, fmt.Errorf("expenses: description is required: %w", shared.ErrValidation)
		}
		expense.Description = description
	}
	if input.PaymentMethod != nil {
		method := strings.TrimSpace(*input.PaymentMethod)
		if !validMethod(method) {
			return Expense{}, fmt.Errorf("expenses: payment_method must be one of Bank, Cash, M-Pesa, Other: %w", shared.ErrValidation)
		}
		expense.PaymentMethod = method
	}
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category == "" {
			expense.Category = nil
		} else {
			expense.Category = &category
		}
	}
	if input.Date != nil {
		expense.Date = shared.DateOnly(*input.Date)
	}
	if err := s.repo.Update(ctx, expense); err != nil {
		return Expense{}, err
	}
	return expense, nil
}

// Get fetches an expense by id.
func (s *Service) Get(ctx context.Context, id int64) (Expense, error) {
	return s.repo.Get(ctx, id)
}

// List lists expenses for an inclusive calendar-day range. The filter bounds
// are widened to the half-open date-only window before hitting the
// repository.
func (s *Service) List(ctx context.Context, filter Filter) ([]Expense, error) {
	filter.DateFrom, filter.DateTo = shared.DateWindow(filter.DateFrom, filter.DateTo)
	return s.repo.List(ctx, filter)
}

// ListDay lists expenses for the business day offset days back from today.
func (s *Service) ListDay(ctx context.Context, offsetDays int) ([]Expense, string, error) {
	day := s.clock.Today().AddDate(0, 0, -offsetDays)
	out, err := s.List(ctx, Filter{DateFrom: day, DateTo: day})
	return out, day.Format("2006-01-02"), err
}

// ListRecent lists expenses for the last n business days, today inclusive.
func (s *Service) ListRecent(ctx context.Context, days int) ([]Expense, error) {
	to := s.clock.Today()
	from := to.AddDate(0, 0, -(days - 1))
	return s.List(ctx, Filter{DateFrom: from, DateTo: to})
}

// Delete soft-deletes an expense.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.SetDeleted(ctx, id, true)
}

// Restore reverses a soft delete.
func (s *Service) Restore(ctx context.Context, id int64) error {
	return s.repo.SetDeleted(ctx, id, false)
}
