package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/aquatrack/aquatrack/internal/shared"
)

// Service manages the customer directory.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput is the payload for registering a customer.
type CreateInput struct {
	Name  string
	Phone *string
	Email *string
	Notes *string
}

// Create registers a customer.
func (s *Service) Create(ctx context.Context, input CreateInput) (Customer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Customer{}, fmt.Errorf("customers: name is required: %w", shared.ErrValidation)
	}
	customer := Customer{Name: name, Phone: input.Phone, Email: input.Email, Notes: input.Notes}
	if err := s.repo.Create(ctx, &customer); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

// UpdateInput carries partial changes to a customer.
type UpdateInput struct {
	Name  *string
	Phone *string
	Email *string
	Notes *string
}

// Update edits a customer.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Customer, error) {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return Customer{}, fmt.Errorf("customers: name cannot be empty: %w", shared.ErrValidation)
		}
		customer.Name = name
	}
	if input.Phone != nil {
		customer.Phone = input.Phone
	}
	if input.Email != nil {
		customer.Email = input.Email
	}
	if input.Notes != nil {
		customer.Notes = input.Notes
	}
	if err := s.repo.Update(ctx, customer); err != nil {
		return Customer{}, err
	}
	return customer, nil
}

// Get fetches a customer by id.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// Lookup resolves a customer's name, for sale creation.
func (s *Service) Lookup(ctx context.Context, id int64) (string, error) {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return customer.Name, nil
}

// List returns every customer with their outstanding balance.
func (s *Service) List(ctx context.Context) ([]View, error) {
	return s.repo.ListWithBalances(ctx)
}

// Delete removes a customer.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
