package qarelay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flarexio/qarelay/escalate"
	"github.com/flarexio/qarelay/history"
	"github.com/flarexio/qarelay/kb"
	"github.com/flarexio/qarelay/llm"
	"github.com/flarexio/qarelay/vector"
)

const systemInstruction = "You are a customer support assistant. " +
	"Answer the customer's question using only the provided knowledge base context. " +
	"Be concise and friendly. If the context does not cover the question, say so."

// Service defines the core logic of the QA relay.
type Service interface {

	// Close releases the history store.
	Close() error

	// Ask runs the retrieval-augmented answer pipeline for one question.
	Ask(ctx context.Context, q Question) (Reply, error)

	// ReloadKnowledgeBase resets the similarity index and reinserts every
	// record from the loader, returning the inserted count.
	ReloadKnowledgeBase(ctx context.Context) (int, error)

	// CountEntries returns the similarity index entry count, 0 when the
	// index is unavailable.
	CountEntries(ctx context.Context) int
}

type ServiceMiddleware func(Service) Service

// Dependencies are the external collaborators of the pipeline. Any of them
// may be nil; the affected path degrades instead of crashing.
type Dependencies struct {
	Vector    vector.VectorDB
	History   history.Store
	Loader    kb.Loader
	Completer llm.Completer
	Notifier  escalate.Notifier
}

func NewService(ctx context.Context, cfg Config, deps Dependencies) (Service, error) {
	cfg.ApplyDefaults()

	log := zap.L().With(
		zap.String("service", "qarelay"),
	)

	svc := &service{
		vdb:       deps.Vector,
		history:   deps.History,
		loader:    deps.Loader,
		completer: deps.Completer,
		notifier:  deps.Notifier,

		cfg: cfg,
		log: log,
	}

	if deps.Vector != nil {
		collection, err := deps.Vector.Collection(cfg.Vector.Collection)
		if err != nil {
			return nil, err
		}

		svc.collection = collection
	}

	// Populate the index at startup. A failed load leaves the service
	// running with whatever the index already holds.
	if deps.Loader != nil && svc.collection != nil {
		count, err := svc.ReloadKnowledgeBase(ctx)
		if err != nil {
			log.Error("knowledge base load failed", zap.Error(err))
		} else {
			log.Info("knowledge base loaded", zap.Int("entries", count))
		}
	}

	return svc, nil
}

type service struct {
	vdb       vector.VectorDB
	history   history.Store
	loader    kb.Loader
	completer llm.Completer
	notifier  escalate.Notifier

	// collection is swapped by ReloadKnowledgeBase while Ask and
	// CountEntries read it from other goroutines.
	collection      vector.Collection
	collectionMutex sync.RWMutex

	cfg Config
	log *zap.Logger
}

func (svc *service) currentCollection() vector.Collection {
	svc.collectionMutex.RLock()
	defer svc.collectionMutex.RUnlock()

	return svc.collection
}

func (svc *service) Close() error {
	if svc.history == nil {
		return nil
	}

	return svc.history.Close()
}

func (svc *service) Ask(ctx context.Context, q Question) (Reply, error) {
	if strings.TrimSpace(q.Text) == "" {
		// Rejected before anything touches the history log.
		return Reply{}, ErrEmptyQuestion
	}

	log := svc.log.With(
		zap.String("action", "ask"),
		zap.String("user_id", q.UserID),
	)

	collection := svc.currentCollection()
	if collection == nil {
		svc.record(ctx, q.UserID, q.Text, ErrorReply)
		return Reply{}, ErrVectorDBNotSet
	}

	turns := svc.recent(ctx, q.UserID)

	var match *vector.Result

	results, err := collection.Query(ctx, q.Text, 1)
	if err != nil {
		// Embedding or index failure degrades to "no result".
		log.Error("index query failed", zap.Error(err))
	} else if len(results) > 0 {
		match = &results[0]
	}

	var reply Reply

	if match != nil && match.Distance <= svc.cfg.RelevanceThreshold {
		log.Info("relevant entry found",
			zap.String("entry_id", match.ID),
			zap.Float32("distance", match.Distance),
		)

		reply = svc.answer(ctx, q, turns, match)
	} else {
		if match != nil {
			log.Info("nearest entry above threshold",
				zap.String("entry_id", match.ID),
				zap.Float32("distance", match.Distance),
			)
		}

		reply = svc.escalateAndReply(ctx, q)
	}

	svc.record(ctx, q.UserID, q.Text, reply.Text)

	return reply, nil
}

// answer composes the final reply for a relevant match: the model
// composition when completion is enabled, the stored answer otherwise.
func (svc *service) answer(ctx context.Context, q Question, turns []history.Turn, match *vector.Result) Reply {
	if svc.completer == nil {
		return Reply{
			Text:   match.Content,
			Source: ReplyAnswered,
		}
	}

	req := buildPrompt(turns, match.Content, q.Text)

	text, err := svc.completer.Complete(ctx, req)
	if err != nil {
		svc.log.Error("chat completion failed",
			zap.String("user_id", q.UserID),
			zap.Error(err),
		)

		return Reply{
			Text:   ApologyReply,
			Source: ReplyApology,
		}
	}

	return Reply{
		Text:   text,
		Source: ReplyAnswered,
	}
}

// escalateAndReply forwards the question to the operator channel. The user
// reply is fixed before delivery, so a failed escalation never changes it.
func (svc *service) escalateAndReply(ctx context.Context, q Question) Reply {
	log := svc.log.With(
		zap.String("action", "escalate"),
		zap.String("user_id", q.UserID),
	)

	delivered := false

	if svc.notifier == nil {
		log.Warn("no escalation transport configured, question dropped")
	} else {
		esc := escalate.Escalation{
			UserID:    q.UserID,
			UserName:  q.UserName,
			Question:  q.Text,
			Timestamp: time.Now(),
		}

		if err := svc.notifier.Notify(ctx, esc); err != nil {
			log.Error("escalation delivery failed", zap.Error(err))
		} else {
			delivered = true
			log.Info("question forwarded to manager")
		}
	}

	return Reply{
		Text:      FallbackReply,
		Source:    ReplyEscalated,
		Escalated: delivered,
	}
}

func (svc *service) recent(ctx context.Context, userID string) []history.Turn {
	if svc.history == nil {
		return nil
	}

	turns, err := svc.history.Recent(ctx, userID, svc.cfg.HistoryWindow)
	if err != nil {
		svc.log.Error("history read failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil
	}

	return turns
}

// record appends the question and the produced reply, in that order. Storage
// failures are logged and never abort the user-visible reply.
func (svc *service) record(ctx context.Context, userID, question, reply string) {
	if svc.history == nil {
		return
	}

	if err := svc.history.Append(ctx, userID, history.RoleUser, question); err != nil {
		svc.log.Error("history append failed",
			zap.String("user_id", userID),
			zap.String("role", string(history.RoleUser)),
			zap.Error(err),
		)
	}

	if err := svc.history.Append(ctx, userID, history.RoleAssistant, reply); err != nil {
		svc.log.Error("history append failed",
			zap.String("user_id", userID),
			zap.String("role", string(history.RoleAssistant)),
			zap.Error(err),
		)
	}
}

func (svc *service) ReloadKnowledgeBase(ctx context.Context) (int, error) {
	log := svc.log.With(
		zap.String("action", "reload_knowledge_base"),
	)

	if svc.loader == nil {
		return 0, ErrLoaderNotSet
	}

	if svc.vdb == nil {
		return 0, ErrVectorDBNotSet
	}

	records, err := svc.loader.Load(ctx)
	if err != nil {
		// Bail out before the reset so a dead source does not wipe the
		// index that is already serving answers.
		return 0, err
	}

	collection, err := svc.vdb.Reset(svc.cfg.Vector.Collection)
	if err != nil {
		return 0, err
	}

	svc.collectionMutex.Lock()
	svc.collection = collection
	svc.collectionMutex.Unlock()

	added := 0
	for _, record := range records {
		doc := RecordToDocument(record)

		embedding, err := collection.Embedding(ctx, record.Question)
		if err != nil {
			log.Warn("record skipped, embedding failed",
				zap.String("question", record.Question),
				zap.Error(err),
			)
			continue
		}

		doc.Embedding = embedding

		if err := collection.AddDocument(ctx, doc); err != nil {
			log.Warn("record skipped, insert failed",
				zap.String("question", record.Question),
				zap.Error(err),
			)
			continue
		}

		added++
	}

	log.Info("index rebuilt",
		zap.Int("records", len(records)),
		zap.Int("added", added),
	)

	return added, nil
}

func (svc *service) CountEntries(ctx context.Context) int {
	collection := svc.currentCollection()
	if collection == nil {
		return 0
	}

	return collection.Count()
}

func buildPrompt(turns []history.Turn, retrieved, question string) llm.Request {
	messages := make([]llm.Message, 0, len(turns)+1)

	for _, turn := range turns {
		messages = append(messages, llm.Message{
			Role:    llm.Role(turn.Role),
			Content: turn.Content,
		})
	}

	content := fmt.Sprintf(
		"Knowledge base context:\n%s\n\nCustomer question:\n%s",
		retrieved, question,
	)

	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: content,
	})

	return llm.Request{
		System:   systemInstruction,
		Messages: messages,
	}
}
