package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pushedChange struct {
	qid   string
	event BookEvent
}

// newRecordingQueue returns a queue which keeps every pushed change.
func newRecordingQueue(pushErr error) (*MockQueuer, *[]pushedChange) {
	changes := &[]pushedChange{}
	return &MockQueuer{
		PushFunc: func(ctx context.Context, qid string, event BookEvent) error {
			*changes = append(*changes, pushedChange{qid, event})
			return pushErr
		},
	}, changes
}

func TestBookServiceCreate(t *testing.T) {
	var stored Book
	repo := &MockBookStorage{
		CreateFunc: func(ctx context.Context, book Book) error {
			stored = book
			return nil
		},
	}
	queue, changes := newRecordingQueue(nil)
	clock := NewMockClocker()
	bs := NewBookService(zap.NewNop(), clock, NewMockUIDHandler("", "0123456789abcdef0123456789abcdef"), repo, queue)

	fields := BookFields{Title: "Go", Description: "d", Price: 10, Image: ""}
	book, err := bs.Create(context.Background(), fields)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", book.PK)
	assert.Equal(t, fields, book.BookFields)
	assert.Equal(t, time.Date(2023, 7, 2, 0, 0, 0, 123000000, time.UTC), book.CreatedAt)
	assert.Equal(t, book, stored)
	require.Len(t, *changes, 1)
	assert.Equal(t, pushedChange{MirrorQueue, BookEvent{Kind: CreateEvent, Book: book}}, (*changes)[0])
}

func TestBookServiceCreateFailure(t *testing.T) {
	repo := &MockBookStorage{
		CreateFunc: func(ctx context.Context, book Book) error {
			return errors.New("storage down")
		},
	}
	queue, changes := newRecordingQueue(nil)
	bs := NewBookService(zap.NewNop(), NewMockClocker(), NewMockUIDHandler("", "pk"), repo, queue)
	_, err := bs.Create(context.Background(), BookFields{Title: "Go", Price: 1})
	assert.EqualError(t, err, "storage down")
	assert.Empty(t, *changes)
}

func TestBookServicePatchImage(t *testing.T) {
	var patched bool
	repo := &MockBookStorage{
		GetByPKFunc: func(ctx context.Context, pk string) (Book, error) {
			if pk == "known" {
				return Book{PK: pk}, nil
			}
			return Book{}, ErrBookNotFound
		},
		PatchImageFunc: func(ctx context.Context, pk string, image string) error {
			patched = true
			return nil
		},
	}
	queue, changes := newRecordingQueue(nil)
	bs := NewBookService(zap.NewNop(), NewMockClocker(), NewMockUIDHandler("", ""), repo, queue)

	_, err := bs.PatchImage(context.Background(), "unknown", "x")
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.False(t, patched)
	assert.Empty(t, *changes)

	resp, err := bs.PatchImage(context.Background(), "known", "https://img")
	require.NoError(t, err)
	assert.Equal(t, BookPK{PK: "known"}, resp)
	assert.True(t, patched)
	require.Len(t, *changes, 1)
	assert.Equal(t, MirrorQueue, (*changes)[0].qid)
	assert.Equal(t, PatchEvent, (*changes)[0].event.Kind)
	assert.Equal(t, "https://img", (*changes)[0].event.Book.Image)
}

func TestBookServiceReplace(t *testing.T) {
	created := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)
	current := Book{PK: "known", BookFields: BookFields{Title: "Old", Price: 1}, CreatedAt: created}
	repo := &MockBookStorage{
		GetByPKFunc: func(ctx context.Context, pk string) (Book, error) {
			if pk == current.PK {
				return current, nil
			}
			return Book{}, ErrBookNotFound
		},
		ReplaceEditableFieldsFunc: func(ctx context.Context, pk string, fields BookFields) error {
			current.BookFields = fields
			return nil
		},
	}
	queue, changes := newRecordingQueue(errors.New("queue down"))
	bs := NewBookService(zap.NewNop(), NewMockClocker(), NewMockUIDHandler("", ""), repo, queue)

	_, err := bs.Replace(context.Background(), "unknown", BookFields{Title: "New", Price: 2})
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.Empty(t, *changes)

	fields := BookFields{Title: "New", Description: "", Price: 2, Image: ""}
	book, err := bs.Replace(context.Background(), "known", fields)
	require.NoError(t, err, "a failing queue must not fail the replace")
	assert.Equal(t, Book{PK: "known", BookFields: fields, CreatedAt: created}, book)
	require.Len(t, *changes, 1)
	assert.Equal(t, MirrorQueue, (*changes)[0].qid)
	assert.Equal(t, ReplaceEvent, (*changes)[0].event.Kind)
}

func TestBookServiceDelete(t *testing.T) {
	var deleted string
	repo := &MockBookStorage{
		DeleteFunc: func(ctx context.Context, pk string) error {
			deleted = pk
			return nil
		},
	}
	bs := NewBookService(zap.NewNop(), NewMockClocker(), NewMockUIDHandler("", ""), repo, nil)
	require.NoError(t, bs.Delete(context.Background(), "any"))
	assert.Equal(t, "any", deleted)
}

func TestBookServiceSearch(t *testing.T) {
	var received SearchQuery
	repo := &MockBookStorage{
		SearchFunc: func(ctx context.Context, query SearchQuery) ([]Book, error) {
			received = query
			return nil, nil
		},
	}
	bs := NewBookService(zap.NewNop(), NewMockClocker(), NewMockUIDHandler("", ""), repo, nil)
	books, err := bs.Search(context.Background(), SearchQuery{Query: "  go  ", Limit: 5, MaxPrice: 10})
	require.NoError(t, err)
	assert.NotNil(t, books)
	assert.Empty(t, books)
	assert.Equal(t, SearchQuery{Query: "go", Limit: 5, MaxPrice: 10}, received)
}

// TestBookServicePublishOrder ensures every kind of change goes on the same
// queue in the order the mutations happened.
func TestBookServicePublishOrder(t *testing.T) {
	repo := &MockBookStorage{
		CreateFunc: func(ctx context.Context, book Book) error { return nil },
		GetByPKFunc: func(ctx context.Context, pk string) (Book, error) {
			return Book{PK: pk}, nil
		},
		PatchImageFunc:            func(ctx context.Context, pk string, image string) error { return nil },
		ReplaceEditableFieldsFunc: func(ctx context.Context, pk string, fields BookFields) error { return nil },
		DeleteFunc:                func(ctx context.Context, pk string) error { return nil },
	}
	queue, changes := newRecordingQueue(nil)
	bs := NewBookService(zap.NewNop(), NewMockClocker(), NewMockUIDHandler("", "pk"), repo, queue)
	ctx := context.Background()

	_, err := bs.Create(ctx, BookFields{Title: "Go", Price: 1})
	require.NoError(t, err)
	_, err = bs.Replace(ctx, "pk", BookFields{Title: "Go", Price: 1, Image: "a"})
	require.NoError(t, err)
	_, err = bs.PatchImage(ctx, "pk", "b")
	require.NoError(t, err)
	require.NoError(t, bs.Delete(ctx, "pk"))

	kinds := make([]string, 0, len(*changes))
	for _, c := range *changes {
		assert.Equal(t, MirrorQueue, c.qid)
		kinds = append(kinds, c.event.Kind)
	}
	assert.Equal(t, []string{CreateEvent, ReplaceEvent, PatchEvent, DeleteEvent}, kinds)
}
