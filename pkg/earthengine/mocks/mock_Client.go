// Package mocks provides test doubles for the earthengine client.
package mocks

import (
	"context"
	"encoding/json"

	earthengine "github.com/sells-group/carbon-estimator/pkg/earthengine"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// ComputeValue provides a mock function with given fields: ctx, expr
func (_m *MockClient) ComputeValue(ctx context.Context, expr earthengine.Expression) (json.RawMessage, error) {
	ret := _m.Called(ctx, expr)

	if len(ret) == 0 {
		panic("no return value specified for ComputeValue")
	}

	var r0 json.RawMessage
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, earthengine.Expression) (json.RawMessage, error)); ok {
		return rf(ctx, expr)
	}
	if rf, ok := ret.Get(0).(func(context.Context, earthengine.Expression) json.RawMessage); ok {
		r0 = rf(ctx, expr)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(json.RawMessage)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, earthengine.Expression) error); ok {
		r1 = rf(ctx, expr)
	} else {
		r1 = ret.Error(1)
	}

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
