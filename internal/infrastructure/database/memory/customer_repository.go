// Package memory holds process-local repositories for tests and single-node
// local runs. They honour the same contracts as the postgres repositories.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"loan-origination/internal/domain/customer"
	"loan-origination/internal/pkg/apperrors"
)

type CustomerRepository struct {
	mu       sync.RWMutex
	nextID   int64
	byID     map[int64]customer.Customer
	byNumber map[string]int64
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{
		byID:     make(map[int64]customer.Customer),
		byNumber: make(map[string]int64),
	}
}

func (r *CustomerRepository) Save(_ context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if cust.CustomerID == 0 {
		if _, exists := r.byNumber[cust.CustomerNumber]; exists {
			return fmt.Errorf("%w: customers_customer_number_key", apperrors.ErrAlreadyExists)
		}
		r.nextID++
		cust.CustomerID = r.nextID
		cust.CreatedAt = now
		cust.UpdatedAt = now
		r.byNumber[cust.CustomerNumber] = cust.CustomerID
		r.byID[cust.CustomerID] = *cust
		return nil
	}

	stored, ok := r.byID[cust.CustomerID]
	if !ok {
		return apperrors.ErrNotFound
	}
	cust.CreatedAt = stored.CreatedAt
	cust.UpdatedAt = now
	r.byID[cust.CustomerID] = *cust
	return nil
}

func (r *CustomerRepository) FindByNumber(_ context.Context, customerNumber string) (*customer.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byNumber[customerNumber]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cust := r.byID[id]
	return &cust, nil
}
