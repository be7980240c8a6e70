package main

import (
	"context"

	"go.uber.org/zap"
)

type Consumer interface {
	Consume(ctx context.Context, qids ...string) error
}

// mirrorConsumer replays the book changes published by the service
// into a secondary storage, usually a local boltdb file.
type mirrorConsumer struct {
	logger *zap.Logger
	queue  Queuer
	repo   BookStorage
}

func NewMirrorConsumer(logger *zap.Logger, q Queuer, repo BookStorage) Consumer {
	return &mirrorConsumer{logger, q, repo}
}

// Consume pops changes until the context is done. Failures on a single
// change are logged and skipped.
func (mc *mirrorConsumer) Consume(ctx context.Context, qids ...string) error {
	for {
		qid, event, err := mc.queue.Pop(ctx, qids...)
		if err != nil && ctx.Err() != nil {
			mc.logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		if err != nil {
			mc.logger.Error("consumer: error on queue pop call", zap.Error(err))
			continue
		}

		mc.apply(ctx, qid, event)
	}
}

func (mc *mirrorConsumer) apply(ctx context.Context, qid string, event BookEvent) {
	var err error
	book := event.Book
	switch event.Kind {
	case CreateEvent:
		if err = mc.repo.Create(ctx, book); err != nil {
			mc.logger.Error("consumer: failed to create", zap.String("book.pk", book.PK), zap.Error(err))
		}
	case PatchEvent:
		if err = mc.repo.PatchImage(ctx, book.PK, book.Image); err != nil {
			mc.logger.Error("consumer: failed to patch", zap.String("book.pk", book.PK), zap.Error(err))
		}
	case ReplaceEvent:
		if err = mc.repo.ReplaceEditableFields(ctx, book.PK, book.BookFields); err != nil {
			mc.logger.Error("consumer: failed to replace", zap.String("book.pk", book.PK), zap.Error(err))
		}
	case DeleteEvent:
		if err = mc.repo.Delete(ctx, book.PK); err != nil {
			mc.logger.Error("consumer: failed to delete", zap.String("book.pk", book.PK), zap.Error(err))
		}
	default:
		mc.logger.Warn("consumer: received unknown kind of change", zap.String("qid", qid), zap.String("kind", event.Kind), zap.String("book.pk", book.PK))
	}
}
