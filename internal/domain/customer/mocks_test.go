package customer

import (
	"context"

	"loan-origination/internal/event"

	"github.com/stretchr/testify/mock"
)

type MockCustomerRepository struct {
	mock.Mock
}

func (_m *MockCustomerRepository) Save(ctx context.Context, customer *Customer) error {
	ret := _m.Called(ctx, customer)

	if rf, ok := ret.Get(0).(func(context.Context, *Customer) error); ok {
		return rf(ctx, customer)
	}
	return ret.Error(0)
}

func (_m *MockCustomerRepository) FindByNumber(ctx context.Context, customerNumber string) (*Customer, error) {
	ret := _m.Called(ctx, customerNumber)

	var r0 *Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*Customer)
	}
	return r0, ret.Error(1)
}

type MockKYCProvider struct {
	mock.Mock
}

func (_m *MockKYCProvider) FetchKYC(ctx context.Context, customerNumber string) (*KYCSnapshot, error) {
	ret := _m.Called(ctx, customerNumber)

	var r0 *KYCSnapshot
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*KYCSnapshot)
	}
	return r0, ret.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (_m *MockEventPublisher) PublishCustomerSubscribed(ctx context.Context, evt event.CustomerSubscribedEvent) error {
	return _m.Called(ctx, evt).Error(0)
}

func (_m *MockEventPublisher) PublishLoanCreated(ctx context.Context, evt event.LoanCreatedEvent) error {
	return _m.Called(ctx, evt).Error(0)
}

func (_m *MockEventPublisher) PublishLoanDecided(ctx context.Context, evt event.LoanDecidedEvent) error {
	return _m.Called(ctx, evt).Error(0)
}
