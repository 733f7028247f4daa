package qarelay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/suite"

	"github.com/flarexio/qarelay/escalate"
	"github.com/flarexio/qarelay/history"
	"github.com/flarexio/qarelay/kb"
	"github.com/flarexio/qarelay/llm"
	"github.com/flarexio/qarelay/vector"

	chromemP "github.com/flarexio/qarelay/persistence/chromem"
	sqliteP "github.com/flarexio/qarelay/persistence/sqlite"
)

// stubEmbedding maps known phrases to fixed unit vectors. The paraphrase
// sits close to the stored question; the weather query is orthogonal.
func stubEmbedding() chromem.EmbeddingFunc {
	vectors := map[string][]float32{
		"What is the price?":     {1, 0, 0},
		"How much does it cost?": {0.95, 0.3122499, 0},
		"What's the weather?":    {0, 1, 0},
	}

	return func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}

		return []float32{0, 1, 0}, nil
	}
}

type stubLoader struct {
	records []kb.Record
	err     error
}

func (l *stubLoader) Load(ctx context.Context) ([]kb.Record, error) {
	return l.records, l.err
}

type stubCompleter struct {
	reply string
	err   error
	last  llm.Request
}

func (c *stubCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.last = req

	if c.err != nil {
		return "", c.err
	}

	return c.reply, nil
}

type stubNotifier struct {
	calls []escalate.Escalation
	err   error
}

func (n *stubNotifier) Notify(ctx context.Context, esc escalate.Escalation) error {
	n.calls = append(n.calls, esc)
	return n.err
}

type qaRelayTestSuite struct {
	suite.Suite

	ctx       context.Context
	svc       Service
	store     history.Store
	loader    *stubLoader
	completer *stubCompleter
	notifier  *stubNotifier
}

func (suite *qaRelayTestSuite) SetupTest() {
	ctx := context.Background()

	cfg := Config{
		Vector: vector.Config{
			Persistent: false,
			Collection: "qa",
		},
	}

	vdb, err := chromemP.NewChromemVectorDBWithEmbedding(cfg.Vector, stubEmbedding())
	suite.Require().NoError(err)

	store, err := sqliteP.NewHistoryStore(":memory:")
	suite.Require().NoError(err)

	suite.loader = &stubLoader{
		records: []kb.Record{
			{Question: "What is the price?", Answer: "10 per month", Category: "billing"},
		},
	}
	suite.completer = &stubCompleter{reply: "It costs 10 per month."}
	suite.notifier = &stubNotifier{}

	svc, err := NewService(ctx, cfg, Dependencies{
		Vector:    vdb,
		History:   store,
		Loader:    suite.loader,
		Completer: suite.completer,
		Notifier:  suite.notifier,
	})
	suite.Require().NoError(err)

	suite.ctx = ctx
	suite.svc = svc
	suite.store = store
}

func (suite *qaRelayTestSuite) TearDownTest() {
	if suite.svc != nil {
		suite.svc.Close()
	}
}

func (suite *qaRelayTestSuite) TestStartupLoad() {
	suite.Equal(1, suite.svc.CountEntries(suite.ctx))
}

func (suite *qaRelayTestSuite) TestAskExactQuestion() {
	reply, err := suite.svc.Ask(suite.ctx, Question{
		UserID:   "42",
		UserName: "Alice",
		Text:     "What is the price?",
	})

	suite.NoError(err)
	suite.Equal(ReplyAnswered, reply.Source)
	suite.Equal("It costs 10 per month.", reply.Text)
	suite.Empty(suite.notifier.calls)

	// The completion prompt carries the retrieved answer and the question.
	prompt := suite.completer.last
	suite.NotEmpty(prompt.System)
	suite.Require().NotEmpty(prompt.Messages)

	userTurn := prompt.Messages[len(prompt.Messages)-1]
	suite.Equal(llm.RoleUser, userTurn.Role)
	suite.Contains(userTurn.Content, "10 per month")
	suite.Contains(userTurn.Content, "What is the price?")
}

func (suite *qaRelayTestSuite) TestAskParaphrase() {
	reply, err := suite.svc.Ask(suite.ctx, Question{
		UserID: "42",
		Text:   "How much does it cost?",
	})

	suite.NoError(err)
	suite.Equal(ReplyAnswered, reply.Source)
	suite.Empty(suite.notifier.calls)
}

func (suite *qaRelayTestSuite) TestAskIrrelevantEscalates() {
	reply, err := suite.svc.Ask(suite.ctx, Question{
		UserID:   "42",
		UserName: "Alice",
		Text:     "What's the weather?",
	})

	suite.NoError(err)
	suite.Equal(ReplyEscalated, reply.Source)
	suite.Equal(FallbackReply, reply.Text)
	suite.True(reply.Escalated)

	suite.Require().Len(suite.notifier.calls, 1)
	suite.Equal("42", suite.notifier.calls[0].UserID)
	suite.Equal("Alice", suite.notifier.calls[0].UserName)
	suite.Equal("What's the weather?", suite.notifier.calls[0].Question)

	// Both turns recorded.
	turns, err := suite.store.Recent(suite.ctx, "42", 3)
	suite.Require().NoError(err)
	suite.Require().Len(turns, 2)
	suite.Equal("What's the weather?", turns[0].Content)
	suite.Equal(FallbackReply, turns[1].Content)
}

func (suite *qaRelayTestSuite) TestAskEmptyQuestion() {
	_, err := suite.svc.Ask(suite.ctx, Question{UserID: "42", Text: "   "})
	suite.ErrorIs(err, ErrEmptyQuestion)

	turns, err := suite.store.Recent(suite.ctx, "42", 3)
	suite.Require().NoError(err)
	suite.Empty(turns)
}

func (suite *qaRelayTestSuite) TestCompletionFailureApologizes() {
	suite.completer.err = errors.New("model unavailable")

	reply, err := suite.svc.Ask(suite.ctx, Question{
		UserID: "42",
		Text:   "What is the price?",
	})

	suite.NoError(err)
	suite.Equal(ReplyApology, reply.Source)
	suite.Equal(ApologyReply, reply.Text)

	// The question is still logged alongside the apology.
	turns, err := suite.store.Recent(suite.ctx, "42", 3)
	suite.Require().NoError(err)
	suite.Require().Len(turns, 2)
	suite.Equal("What is the price?", turns[0].Content)
	suite.Equal(ApologyReply, turns[1].Content)
}

func (suite *qaRelayTestSuite) TestEscalationFailureKeepsReply() {
	suite.notifier.err = errors.New("webhook timeout")

	reply, err := suite.svc.Ask(suite.ctx, Question{
		UserID: "42",
		Text:   "What's the weather?",
	})

	suite.NoError(err)
	suite.Equal(FallbackReply, reply.Text)
	suite.False(reply.Escalated)
}

func (suite *qaRelayTestSuite) TestHistoryFeedsPrompt() {
	_, err := suite.svc.Ask(suite.ctx, Question{UserID: "42", Text: "What is the price?"})
	suite.Require().NoError(err)

	_, err = suite.svc.Ask(suite.ctx, Question{UserID: "42", Text: "How much does it cost?"})
	suite.Require().NoError(err)

	// Second prompt carries the first exchange, oldest first.
	prompt := suite.completer.last
	suite.Require().GreaterOrEqual(len(prompt.Messages), 3)
	suite.Equal("What is the price?", prompt.Messages[0].Content)
	suite.Equal(llm.RoleUser, prompt.Messages[0].Role)
	suite.Equal(llm.RoleAssistant, prompt.Messages[1].Role)
}

func (suite *qaRelayTestSuite) TestReload() {
	entries, err := suite.svc.ReloadKnowledgeBase(suite.ctx)
	suite.NoError(err)
	suite.Equal(1, entries)

	suite.loader.records = nil

	entries, err = suite.svc.ReloadKnowledgeBase(suite.ctx)
	suite.NoError(err)
	suite.Equal(0, entries)
	suite.Equal(0, suite.svc.CountEntries(suite.ctx))
}

func (suite *qaRelayTestSuite) TestReloadLoaderFailureKeepsIndex() {
	suite.loader.err = errors.New("source unreachable")

	_, err := suite.svc.ReloadKnowledgeBase(suite.ctx)
	suite.Error(err)

	// The index still serves the previously loaded entries.
	suite.Equal(1, suite.svc.CountEntries(suite.ctx))
}

func TestQARelayTestSuite(t *testing.T) {
	suite.Run(t, new(qaRelayTestSuite))
}

// fakeCollection returns a fixed nearest-neighbor distance, for exercising
// the relevance gate boundary without an embedding stack.
type fakeCollection struct {
	distance float32
}

func (c *fakeCollection) AddDocument(ctx context.Context, doc vector.Document) error {
	return nil
}

func (c *fakeCollection) FindDocument(ctx context.Context, id string) (vector.Document, error) {
	return vector.Document{}, errors.New("not found")
}

func (c *fakeCollection) Query(ctx context.Context, query string, k int) ([]vector.Result, error) {
	return []vector.Result{
		{
			Document: vector.Document{ID: "qa_1", Content: "10 per month"},
			Distance: c.distance,
		},
	}, nil
}

func (c *fakeCollection) Embedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

func (c *fakeCollection) Count() int { return 1 }

type fakeVectorDB struct {
	collection *fakeCollection
}

func (v *fakeVectorDB) Collection(name string) (vector.Collection, error) {
	return v.collection, nil
}

func (v *fakeVectorDB) Reset(name string) (vector.Collection, error) {
	return v.collection, nil
}

func TestRelevanceGateBoundary(t *testing.T) {
	ctx := context.Background()

	newService := func(distance float32) Service {
		svc, err := NewService(ctx, Config{}, Dependencies{
			Vector: &fakeVectorDB{&fakeCollection{distance: distance}},
		})
		if err != nil {
			t.Fatal(err)
		}

		return svc
	}

	// A distance exactly at the threshold is accepted.
	reply, err := newService(DefaultRelevanceThreshold).Ask(ctx, Question{UserID: "42", Text: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Source != ReplyAnswered || reply.Text != "10 per month" {
		t.Fatalf("expected stored answer at the boundary, got %+v", reply)
	}

	// Just above the threshold is rejected.
	reply, err = newService(DefaultRelevanceThreshold + 0.001).Ask(ctx, Question{UserID: "42", Text: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Source != ReplyEscalated {
		t.Fatalf("expected escalation above the boundary, got %+v", reply)
	}
}

// Reload swaps the live collection while questions are being served; the
// swap must be safe against concurrent Ask and CountEntries.
func TestConcurrentAskAndReload(t *testing.T) {
	ctx := context.Background()

	cfg := Config{
		Vector: vector.Config{Collection: "qa"},
	}

	vdb, err := chromemP.NewChromemVectorDBWithEmbedding(cfg.Vector, stubEmbedding())
	if err != nil {
		t.Fatal(err)
	}

	loader := &stubLoader{
		records: []kb.Record{
			{Question: "What is the price?", Answer: "10 per month"},
		},
	}

	svc, err := NewService(ctx, cfg, Dependencies{
		Vector: vdb,
		Loader: loader,
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()

		for {
			select {
			case <-done:
				return
			default:
			}

			if _, err := svc.Ask(ctx, Question{UserID: "42", Text: "What is the price?"}); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	go func() {
		defer wg.Done()

		for {
			select {
			case <-done:
				return
			default:
			}

			svc.CountEntries(ctx)
		}
	}()

	for i := 0; i < 50; i++ {
		if _, err := svc.ReloadKnowledgeBase(ctx); err != nil {
			t.Error(err)
			break
		}
	}

	close(done)
	wg.Wait()
}

func TestAskWithoutIndex(t *testing.T) {
	ctx := context.Background()

	store, err := sqliteP.NewHistoryStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	svc, err := NewService(ctx, Config{}, Dependencies{History: store})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Ask(ctx, Question{UserID: "42", Text: "What is the price?"})
	if !errors.Is(err, ErrVectorDBNotSet) {
		t.Fatalf("expected ErrVectorDBNotSet, got %v", err)
	}

	// The question is still logged with the error placeholder.
	turns, err := store.Recent(ctx, "42", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 || turns[1].Content != ErrorReply {
		t.Fatalf("expected question and error placeholder in history, got %+v", turns)
	}
}
