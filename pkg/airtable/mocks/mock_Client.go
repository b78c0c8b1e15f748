// Package mocks provides test doubles for the airtable client.
package mocks

import (
	"context"

	airtable "github.com/sells-group/airtable-api/pkg/airtable"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// List provides a mock function with given fields: ctx, baseID, table, opts
func (_m *MockClient) List(ctx context.Context, baseID string, table string, opts airtable.ListOptions) (*airtable.Page, error) {
	ret := _m.Called(ctx, baseID, table, opts)

	if len(ret) == 0 {
		panic("no return value specified for List")
	}

	var r0 *airtable.Page
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, airtable.ListOptions) (*airtable.Page, error)); ok {
		return rf(ctx, baseID, table, opts)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*airtable.Page)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// All provides a mock function with given fields: ctx, baseID, table, opts
func (_m *MockClient) All(ctx context.Context, baseID string, table string, opts airtable.ListOptions) ([]airtable.Record, error) {
	ret := _m.Called(ctx, baseID, table, opts)

	if len(ret) == 0 {
		panic("no return value specified for All")
	}

	var r0 []airtable.Record
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, airtable.ListOptions) ([]airtable.Record, error)); ok {
		return rf(ctx, baseID, table, opts)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]airtable.Record)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// Get provides a mock function with given fields: ctx, baseID, table, recordID
func (_m *MockClient) Get(ctx context.Context, baseID string, table string, recordID string) (*airtable.Record, error) {
	ret := _m.Called(ctx, baseID, table, recordID)

	if len(ret) == 0 {
		panic("no return value specified for Get")
	}

	var r0 *airtable.Record
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) (*airtable.Record, error)); ok {
		return rf(ctx, baseID, table, recordID)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*airtable.Record)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// First provides a mock function with given fields: ctx, baseID, table, formula
func (_m *MockClient) First(ctx context.Context, baseID string, table string, formula string) (*airtable.Record, error) {
	ret := _m.Called(ctx, baseID, table, formula)

	if len(ret) == 0 {
		panic("no return value specified for First")
	}

	var r0 *airtable.Record
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) (*airtable.Record, error)); ok {
		return rf(ctx, baseID, table, formula)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*airtable.Record)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
