package memory

import (
	"context"
	"testing"

	"loan-origination/internal/domain/customer"
	"loan-origination/internal/domain/loan"
	"loan-origination/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepository()

	c := customer.NewCustomer("C1", []byte(`{"firstName":"Jane"}`))
	require.NoError(t, repo.Save(ctx, c))
	assert.Equal(t, int64(1), c.CustomerID)

	dup := customer.NewCustomer("C1", nil)
	assert.ErrorIs(t, repo.Save(ctx, dup), apperrors.ErrAlreadyExists)

	found, err := repo.FindByNumber(ctx, "C1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"firstName":"Jane"}`, string(found.KYC))

	found.UpdateKYC([]byte(`{"firstName":"Janet"}`))
	require.NoError(t, repo.Save(ctx, found))
	updated, err := repo.FindByNumber(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.CustomerID)
	assert.JSONEq(t, `{"firstName":"Janet"}`, string(updated.KYC))

	_, err = repo.FindByNumber(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLoanRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("one active loan per customer", func(t *testing.T) {
		for _, status := range loan.ActiveStatuses {
			t.Run(string(status), func(t *testing.T) {
				repo := NewLoanRepository()
				first, _ := loan.NewLoan(1, "C1", 100)
				require.NoError(t, repo.Create(ctx, first))
				require.NoError(t, repo.SetStatus(first.ID, status))

				second, _ := loan.NewLoan(1, "C1", 100)
				assert.ErrorIs(t, repo.Create(ctx, second), loan.ErrActiveLoanExists)

				other, _ := loan.NewLoan(2, "C2", 100)
				assert.NoError(t, repo.Create(ctx, other))
			})
		}
	})

	t.Run("rejected loan does not block", func(t *testing.T) {
		repo := NewLoanRepository()
		first, _ := loan.NewLoan(1, "C1", 100)
		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.SetStatus(first.ID, loan.StatusRejected))

		active, err := repo.HasActiveLoan(ctx, 1)
		require.NoError(t, err)
		assert.False(t, active)

		second, _ := loan.NewLoan(1, "C1", 100)
		assert.NoError(t, repo.Create(ctx, second))
	})

	t.Run("decision only applies to pending loans", func(t *testing.T) {
		repo := NewLoanRepository()
		l, _ := loan.NewLoan(1, "C1", 100)
		require.NoError(t, repo.Create(ctx, l))

		pending, err := repo.FindPendingByCustomer(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, pending.Decide(720, 500))
		require.NoError(t, repo.SaveDecision(ctx, pending))

		stored, err := repo.GetByID(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.StatusApproved, stored.Status)
		assert.Equal(t, 720.0, *stored.Score)

		assert.ErrorIs(t, repo.SaveDecision(ctx, pending), loan.ErrNoPendingLoan)

		_, err = repo.FindPendingByCustomer(ctx, 1)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("returned loans are copies", func(t *testing.T) {
		repo := NewLoanRepository()
		l, _ := loan.NewLoan(1, "C1", 100)
		require.NoError(t, repo.Create(ctx, l))

		got, _ := repo.GetByID(ctx, l.ID)
		got.Status = loan.StatusRejected

		again, _ := repo.GetByID(ctx, l.ID)
		assert.Equal(t, loan.StatusPending, again.Status)
	})
}
