package main

import (
	"context"
	"time"
)

// This file contains mocks definitions needed to perform unit tests.

type MockBookStorage struct {
	CreateFunc                func(ctx context.Context, book Book) error
	GetByPKFunc               func(ctx context.Context, pk string) (Book, error)
	SearchFunc                func(ctx context.Context, query SearchQuery) ([]Book, error)
	PatchImageFunc            func(ctx context.Context, pk string, image string) error
	ReplaceEditableFieldsFunc func(ctx context.Context, pk string, fields BookFields) error
	DeleteFunc                func(ctx context.Context, pk string) error
}

// Create mocks the behavior of book creation by the repository.
func (m *MockBookStorage) Create(ctx context.Context, book Book) error {
	return m.CreateFunc(ctx, book)
}

// GetByPK mocks the behavior of retrieving a book by the repository.
func (m *MockBookStorage) GetByPK(ctx context.Context, pk string) (Book, error) {
	return m.GetByPKFunc(ctx, pk)
}

// Search mocks the behavior of searching books by the repository.
func (m *MockBookStorage) Search(ctx context.Context, query SearchQuery) ([]Book, error) {
	return m.SearchFunc(ctx, query)
}

// PatchImage mocks the behavior of changing a book image by the repository.
func (m *MockBookStorage) PatchImage(ctx context.Context, pk string, image string) error {
	return m.PatchImageFunc(ctx, pk, image)
}

// ReplaceEditableFields mocks the behavior of replacing a book by the repository.
func (m *MockBookStorage) ReplaceEditableFields(ctx context.Context, pk string, fields BookFields) error {
	return m.ReplaceEditableFieldsFunc(ctx, pk, fields)
}

// Delete mocks the behavior of deleting a book by the repository.
func (m *MockBookStorage) Delete(ctx context.Context, pk string) error {
	return m.DeleteFunc(ctx, pk)
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 123456789, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `Sun, 02 Jul 2023 00:00:00 UTC` in time.RFC1123 format.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
	MockedPK  string
}

// NewMockUIDHandler returns a mocked instance with predictable ids.
func NewMockUIDHandler(id, pk string) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id, MockedPK: pk}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// GeneratePK returns the configured pk.
func (muid *MockUIDHandler) GeneratePK() string {
	return muid.MockedPK
}

// MockQueuer implements a fake Queuer.
type MockQueuer struct {
	PushFunc func(ctx context.Context, qid string, event BookEvent) error
	PopFunc  func(ctx context.Context, qids ...string) (string, BookEvent, error)
}

// Push mocks the behavior of enqueuing a book change.
func (mq *MockQueuer) Push(ctx context.Context, qid string, event BookEvent) error {
	return mq.PushFunc(ctx, qid, event)
}

// Pop mocks the behavior of dequeuing a book change.
func (mq *MockQueuer) Pop(ctx context.Context, qids ...string) (string, BookEvent, error) {
	return mq.PopFunc(ctx, qids...)
}
