package domain

import (
	"context"
	"errors"
)

type CreateCustomerRequest struct {
	Name  string
	Email string
	Phone string
}

type GetCustomerRequest struct {
	ID string
}

type ListCustomerRequest struct {
	PageToken string
	PageSize  int
	Name      string
	Email     string
}

type ListCustomerResponse struct {
	Customers     []Customer `json:"customers"`
	NextPageToken string     `json:"next_page_token,omitempty"`
	HasMore       bool       `json:"has_more"`
}

// Service is the customer collaborator. Besides plain CRUD it serves as the
// credit ledger consumed by finance creation and cascade deletion.
type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)

	// IncrementCredits adds n credits to the customer balance.
	IncrementCredits(ctx context.Context, customerID string, n int) error
	// DecrementCredits removes up to n credits, flooring the balance at zero.
	DecrementCredits(ctx context.Context, customerID string, n int) error
}

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrInvalidID      = errors.New("invalid_id")
	ErrInvalidCredits = errors.New("invalid_credits")
	ErrNotFound       = errors.New("not_found")
)
