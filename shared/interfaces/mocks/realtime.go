package mocks

import (
	"context"

	"nexttale/shared/interfaces"
	"nexttale/shared/messaging"

	"github.com/stretchr/testify/mock"
)

// InFlightSet is a mock type for the InFlightSet type
type InFlightSet struct {
	mock.Mock
}

// TryClaim provides a mock function with given fields: ctx, key
func (_m *InFlightSet) TryClaim(ctx context.Context, key string) (bool, error) {
	ret := _m.Called(ctx, key)
	return ret.Bool(0), ret.Error(1)
}

// Release provides a mock function with given fields: ctx, key
func (_m *InFlightSet) Release(ctx context.Context, key string) error {
	ret := _m.Called(ctx, key)
	return ret.Error(0)
}

// NewInFlightSet creates a new instance of InFlightSet. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewInFlightSet(t interface {
	mock.TestingT
	Cleanup(func())
}) *InFlightSet {
	m := &InFlightSet{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// PregenerationPublisher is a mock type for the PregenerationPublisher type
type PregenerationPublisher struct {
	mock.Mock
}

// PublishPregeneration provides a mock function with given fields: ctx, payload
func (_m *PregenerationPublisher) PublishPregeneration(ctx context.Context, payload messaging.PregenerationTaskPayload) error {
	ret := _m.Called(ctx, payload)
	return ret.Error(0)
}

// NewPregenerationPublisher creates a new instance of PregenerationPublisher. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewPregenerationPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *PregenerationPublisher {
	m := &PregenerationPublisher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// TransactionManager is a mock type for the TransactionManager type.
// ExecTx runs fn directly unless a return value is configured. Like the real
// manager, a nested call joins the outer transaction and is not recorded.
type TransactionManager struct {
	mock.Mock
}

type txKey struct{}

// InTx reports whether ctx was handed out by TransactionManager.ExecTx.
func InTx(ctx context.Context) bool {
	in, _ := ctx.Value(txKey{}).(bool)
	return in
}

// ExecTx provides a mock function with given fields: ctx, fn
func (_m *TransactionManager) ExecTx(ctx context.Context, fn interfaces.TxFn) error {
	if InTx(ctx) {
		return fn(ctx)
	}
	ret := _m.Called(ctx, fn)
	if err := ret.Error(0); err != nil {
		return err
	}
	return fn(context.WithValue(ctx, txKey{}, true))
}

// NewTransactionManager creates a new instance of TransactionManager. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewTransactionManager(t interface {
	mock.TestingT
	Cleanup(func())
}) *TransactionManager {
	m := &TransactionManager{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var (
	_ interfaces.InFlightSet            = (*InFlightSet)(nil)
	_ interfaces.PregenerationPublisher = (*PregenerationPublisher)(nil)
	_ interfaces.TransactionManager     = (*TransactionManager)(nil)
)
