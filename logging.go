package qarelay

import (
	"context"

	"go.uber.org/zap"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "qarelay"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("service closed")
	return nil
}

func (mw *loggingMiddleware) Ask(ctx context.Context, q Question) (Reply, error) {
	log := mw.log.With(
		zap.String("action", "ask"),
		zap.String("user_id", q.UserID),
	)

	reply, err := mw.next.Ask(ctx, q)
	if err != nil {
		log.Error(err.Error())
		return Reply{}, err
	}

	log.Info("question answered",
		zap.String("source", string(reply.Source)),
		zap.Bool("escalated", reply.Escalated),
	)

	return reply, nil
}

func (mw *loggingMiddleware) ReloadKnowledgeBase(ctx context.Context) (int, error) {
	log := mw.log.With(
		zap.String("action", "reload_knowledge_base"),
	)

	entries, err := mw.next.ReloadKnowledgeBase(ctx)
	if err != nil {
		log.Error(err.Error())
		return 0, err
	}

	log.Info("knowledge base reloaded", zap.Int("entries", entries))
	return entries, nil
}

func (mw *loggingMiddleware) CountEntries(ctx context.Context) int {
	return mw.next.CountEntries(ctx)
}
