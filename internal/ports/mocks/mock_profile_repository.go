package mocks

import (
	"context"

	"github.com/bnema/mindstream-cli/internal/domain"
	mock "github.com/stretchr/testify/mock"
)

// MockProfileRepository is a mock type for the ProfileRepository type
type MockProfileRepository struct {
	mock.Mock
}

type MockProfileRepository_Expecter struct {
	mock *mock.Mock
}

func (_m *MockProfileRepository) EXPECT() *MockProfileRepository_Expecter {
	return &MockProfileRepository_Expecter{mock: &_m.Mock}
}

// Get provides a mock function with given fields: ctx
func (_m *MockProfileRepository) Get(ctx context.Context) (domain.Profile, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Get")
	}

	var r0 domain.Profile
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (domain.Profile, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) domain.Profile); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Get(0).(domain.Profile)
	}
	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

type MockProfileRepository_Get_Call struct {
	*mock.Call
}

func (_e *MockProfileRepository_Expecter) Get(ctx interface{}) *MockProfileRepository_Get_Call {
	return &MockProfileRepository_Get_Call{Call: _e.mock.On("Get", ctx)}
}

func (_c *MockProfileRepository_Get_Call) Return(_a0 domain.Profile, _a1 error) *MockProfileRepository_Get_Call {
	_c.Call.Return(_a0, _a1)
	return _c
}

// Save provides a mock function with given fields: ctx, profile
func (_m *MockProfileRepository) Save(ctx context.Context, profile domain.Profile) error {
	ret := _m.Called(ctx, profile)

	if len(ret) == 0 {
		panic("no return value specified for Save")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, domain.Profile) error); ok {
		r0 = rf(ctx, profile)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

type MockProfileRepository_Save_Call struct {
	*mock.Call
}

func (_e *MockProfileRepository_Expecter) Save(ctx interface{}, profile interface{}) *MockProfileRepository_Save_Call {
	return &MockProfileRepository_Save_Call{Call: _e.mock.On("Save", ctx, profile)}
}

func (_c *MockProfileRepository_Save_Call) Return(_a0 error) *MockProfileRepository_Save_Call {
	_c.Call.Return(_a0)
	return _c
}

// NewMockProfileRepository creates a new instance of MockProfileRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockProfileRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProfileRepository {
	m := &MockProfileRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
