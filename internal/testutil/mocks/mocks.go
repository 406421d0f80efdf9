// Package mocks holds testify mocks of the collaborators the service depends on.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/GabrielNunesIT/event-buffer/internal/dispatcher"
	"github.com/GabrielNunesIT/event-buffer/internal/model"
)

// Transport is a mock of dispatcher.Transport.
type Transport struct {
	mock.Mock
}

// NewTransport creates a Transport mock whose expectations are asserted on cleanup.
func NewTransport(t interface {
	mock.TestingT
	Cleanup(func())
}) *Transport {
	m := &Transport{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Send provides a mock function.
func (m *Transport) Send(ctx context.Context, req dispatcher.Request) (dispatcher.Response, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(dispatcher.Response), args.Error(1)
}

// Store is a mock of store.Store.
type Store struct {
	mock.Mock
}

// NewStore creates a Store mock whose expectations are asserted on cleanup.
func NewStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *Store {
	m := &Store{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Load provides a mock function.
func (m *Store) Load(ctx context.Context) ([]model.Event, error) {
	args := m.Called(ctx)
	events, _ := args.Get(0).([]model.Event)
	return events, args.Error(1)
}

// Save provides a mock function.
func (m *Store) Save(ctx context.Context, events []model.Event) error {
	return m.Called(ctx, events).Error(0)
}

// Delete provides a mock function.
func (m *Store) Delete(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Name provides a mock function.
func (m *Store) Name() string {
	return "mock"
}
