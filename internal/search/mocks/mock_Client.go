// Package mocks provides test doubles for the search client.
package mocks

import (
	"context"
	"time"

	mock "github.com/stretchr/testify/mock"

	search "github.com/sells-group/ratings-cli/internal/search"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Search provides a mock function with given fields: ctx, query, timeout
func (_m *MockClient) Search(ctx context.Context, query string, timeout time.Duration) (*search.Results, error) {
	ret := _m.Called(ctx, query, timeout)

	if len(ret) == 0 {
		panic("no return value specified for Search")
	}

	var r0 *search.Results
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Duration) (*search.Results, error)); ok {
		return rf(ctx, query, timeout)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Duration) *search.Results); ok {
		r0 = rf(ctx, query, timeout)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*search.Results)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, time.Duration) error); ok {
		r1 = rf(ctx, query, timeout)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
