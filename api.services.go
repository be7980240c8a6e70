package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BookServiceProvider holds the book operations exposed by the api.
// PatchImage and Replace report ErrBookNotFound for an unknown pk
// while Delete never does.
type BookServiceProvider interface {
	Create(ctx context.Context, fields BookFields) (Book, error)
	GetOne(ctx context.Context, pk string) (Book, error)
	Search(ctx context.Context, query SearchQuery) ([]Book, error)
	PatchImage(ctx context.Context, pk string, image string) (BookPK, error)
	Replace(ctx context.Context, pk string, fields BookFields) (Book, error)
	Delete(ctx context.Context, pk string) error
}

type BookService struct {
	logger     *zap.Logger
	clock      Clocker
	idsHandler UIDHandler
	storage    BookStorage
	queue      Queuer
}

// NewBookService provides a book service. The queue is optional, when
// set every successful change is published for the mirror consumer.
func NewBookService(logger *zap.Logger, clock Clocker, idsHandler UIDHandler, storage BookStorage, queue Queuer) BookServiceProvider {
	return &BookService{
		logger:     logger,
		clock:      clock,
		idsHandler: idsHandler,
		storage:    storage,
		queue:      queue,
	}
}

// Create assigns a fresh pk and the creation time then stores the book.
// The timestamp is truncated to milliseconds, the precision kept by mongodb.
func (bs *BookService) Create(ctx context.Context, fields BookFields) (Book, error) {
	book := Book{
		PK:         bs.idsHandler.GeneratePK(),
		BookFields: fields,
		CreatedAt:  bs.clock.Now().UTC().Truncate(time.Millisecond),
	}
	if err := bs.storage.Create(ctx, book); err != nil {
		return Book{}, err
	}
	bs.publish(ctx, CreateEvent, book)
	return book, nil
}

func (bs *BookService) GetOne(ctx context.Context, pk string) (Book, error) {
	return bs.storage.GetByPK(ctx, pk)
}

func (bs *BookService) Search(ctx context.Context, query SearchQuery) ([]Book, error) {
	query.Query = NormalizeQuery(query.Query)
	books, err := bs.storage.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []Book{}
	}
	return books, nil
}

func (bs *BookService) PatchImage(ctx context.Context, pk string, image string) (BookPK, error) {
	if _, err := bs.storage.GetByPK(ctx, pk); err != nil {
		return BookPK{}, err
	}
	if err := bs.storage.PatchImage(ctx, pk, image); err != nil {
		return BookPK{}, err
	}
	bs.publish(ctx, PatchEvent, Book{PK: pk, BookFields: BookFields{Image: image}})
	return BookPK{PK: pk}, nil
}

// Replace overwrites the editable fields then reads the book back so the
// caller gets the stored state.
func (bs *BookService) Replace(ctx context.Context, pk string, fields BookFields) (Book, error) {
	if _, err := bs.storage.GetByPK(ctx, pk); err != nil {
		return Book{}, err
	}
	if err := bs.storage.ReplaceEditableFields(ctx, pk, fields); err != nil {
		return Book{}, err
	}
	bs.publish(ctx, ReplaceEvent, Book{PK: pk, BookFields: fields})
	return bs.storage.GetByPK(ctx, pk)
}

func (bs *BookService) Delete(ctx context.Context, pk string) error {
	if err := bs.storage.Delete(ctx, pk); err != nil {
		return err
	}
	bs.publish(ctx, DeleteEvent, Book{PK: pk})
	return nil
}

// publish sends the change on the mirror queue. Every kind shares the
// same queue so the consumer replays changes in publication order.
func (bs *BookService) publish(ctx context.Context, kind string, book Book) {
	if bs.queue == nil {
		return
	}
	if err := bs.queue.Push(ctx, MirrorQueue, BookEvent{Kind: kind, Book: book}); err != nil {
		bs.logger.Error("service: failed to push book change to queue", zap.String("kind", kind), zap.String("book.pk", book.PK), zap.Error(err))
	}
}
