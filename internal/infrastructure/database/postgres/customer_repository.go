package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"loan-origination/internal/domain/customer"
	"loan-origination/internal/pkg/apperrors"
)

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

const customerColumns = `id, customer_number, kyc_data, created_at, updated_at`

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
	}
}

func (r *CustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}
	if cust.CustomerID == 0 {
		return r.createCustomer(ctx, cust)
	}
	return r.updateCustomer(ctx, cust)
}

func (r *CustomerRepository) createCustomer(ctx context.Context, cust *customer.Customer) error {
	query := `
        INSERT INTO customers (customer_number, kyc_data, created_at, updated_at)
        VALUES ($1, $2, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	start := time.Now()
	err := r.db.QueryRow(ctx, query, cust.CustomerNumber, nullableJSON(cust.KYC)).
		Scan(&cust.CustomerID, &cust.CreatedAt, &cust.UpdatedAt)
	recordQuery("CreateCustomer", start, err)

	if err != nil {
		return translateDBError(err, r.logger.With("customer_number", cust.CustomerNumber))
	}
	r.logger.InfoContext(ctx, "Customer inserted", "customer_id", cust.CustomerID, "customer_number", cust.CustomerNumber)
	return nil
}

func (r *CustomerRepository) updateCustomer(ctx context.Context, cust *customer.Customer) error {
	query := `
        UPDATE customers
        SET kyc_data = $2, updated_at = NOW()
        WHERE id = $1
        RETURNING updated_at`

	start := time.Now()
	err := r.db.QueryRow(ctx, query, cust.CustomerID, nullableJSON(cust.KYC)).Scan(&cust.UpdatedAt)
	recordQuery("UpdateCustomer", start, err)

	if err != nil {
		return translateDBError(err, r.logger.With("customer_id", cust.CustomerID))
	}
	return nil
}

func (r *CustomerRepository) FindByNumber(ctx context.Context, customerNumber string) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE customer_number = $1`

	start := time.Now()
	cust, err := scanCustomer(r.db.QueryRow(ctx, query, customerNumber))
	recordQuery("FindCustomerByNumber", start, err)

	if err != nil {
		return nil, translateDBError(err, r.logger.With("customer_number", customerNumber))
	}
	return cust, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*customer.Customer, error) {
	var (
		cust customer.Customer
		kyc  []byte
	)
	if err := row.Scan(&cust.CustomerID, &cust.CustomerNumber, &kyc, &cust.CreatedAt, &cust.UpdatedAt); err != nil {
		return nil, err
	}
	if len(kyc) > 0 {
		cust.KYC = kyc
	}
	return &cust, nil
}

// nullableJSON maps an empty snapshot to SQL NULL.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
