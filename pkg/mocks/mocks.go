// Package mocks provides test doubles for the burrito interfaces.
// MockRunner is generated by mockgen (see tools.go); the doubles in this
// file are hand-written recorders.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sqlite-burrito/burrito/pkg/registry"
)

// MockPublisher records published packages
type MockPublisher struct {
	mu           sync.Mutex
	published    []registry.Package
	publishError error
	revisions    int
}

// NewMockPublisher creates a new mock publisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records the package and returns a sequential revision
func (m *MockPublisher) Publish(_ context.Context, pkg registry.Package) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return "", m.publishError
	}
	m.revisions++
	m.published = append(m.published, pkg)
	return fmt.Sprintf("rev-%d", m.revisions), nil
}

// SetPublishError makes every following Publish fail
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// Published returns a copy of the published packages
func (m *MockPublisher) Published() []registry.Package {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]registry.Package(nil), m.published...)
}

// MockNotifier records notifications
type MockNotifier struct {
	mu        sync.Mutex
	Starts    []string
	Successes []string
	Failures  []error
	Durations []time.Duration
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// NotifyStart records a start notification
func (m *MockNotifier) NotifyStart(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Starts = append(m.Starts, name)
}

// NotifySuccess records a success notification
func (m *MockNotifier) NotifySuccess(name string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Successes = append(m.Successes, name)
	m.Durations = append(m.Durations, duration)
}

// NotifyFailure records a failure notification
func (m *MockNotifier) NotifyFailure(_ string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failures = append(m.Failures, err)
}
