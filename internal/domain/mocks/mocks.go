// Package mocks holds testify mocks for the domain ports.
package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/coverletter-assistant/internal/domain"
)

// MockChatCompleter is a mock of domain.ChatCompleter.
type MockChatCompleter struct {
	mock.Mock
}

// Complete provides a mock function with given fields: ctx, req
func (_m *MockChatCompleter) Complete(ctx domain.Context, req domain.ChatRequest) domain.CompletionAttempt {
	ret := _m.Called(ctx, req)

	if rf, ok := ret.Get(0).(func(domain.Context, domain.ChatRequest) domain.CompletionAttempt); ok {
		return rf(ctx, req)
	}
	return ret.Get(0).(domain.CompletionAttempt)
}

// MockAttemptRecorder is a mock of domain.AttemptRecorder.
type MockAttemptRecorder struct {
	mock.Mock
}

// Record provides a mock function with given fields: ctx, requestID, a
func (_m *MockAttemptRecorder) Record(ctx domain.Context, requestID string, a domain.CompletionAttempt) error {
	ret := _m.Called(ctx, requestID, a)
	return ret.Error(0)
}

// MockLimiter is a mock of domain.Limiter.
type MockLimiter struct {
	mock.Mock
}

// Allow provides a mock function with given fields: ctx, key, cost
func (_m *MockLimiter) Allow(ctx domain.Context, key string, cost int64) (bool, time.Duration, error) {
	ret := _m.Called(ctx, key, cost)
	return ret.Bool(0), ret.Get(1).(time.Duration), ret.Error(2)
}

// MockTextExtractor is a mock of domain.TextExtractor.
type MockTextExtractor struct {
	mock.Mock
}

// ExtractPath provides a mock function with given fields: ctx, fileName, path
func (_m *MockTextExtractor) ExtractPath(ctx domain.Context, fileName, path string) (string, error) {
	ret := _m.Called(ctx, fileName, path)
	return ret.String(0), ret.Error(1)
}

// MockAttemptReader is a mock of domain.AttemptReader.
type MockAttemptReader struct {
	mock.Mock
}

// ListByRequest provides a mock function with given fields: ctx, requestID
func (_m *MockAttemptReader) ListByRequest(ctx domain.Context, requestID string) ([]domain.CompletionAttempt, error) {
	ret := _m.Called(ctx, requestID)

	var r0 []domain.CompletionAttempt
	if v := ret.Get(0); v != nil {
		r0 = v.([]domain.CompletionAttempt)
	}
	return r0, ret.Error(1)
}
