package qarelay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/flarexio/qarelay/escalate"
	"github.com/flarexio/qarelay/kb"
)

func TestConfigYAMLUnmarshal(t *testing.T) {
	assert := assert.New(t)

	input := `
knowledgeBase:
  source: excel
  path: ./kb.xlsx
vector:
  persistent: true
  collection: qa
  embeddingModel: text-embedding-3-small
history:
  path: ./history.db
completion:
  enabled: true
  model: gpt-4o-mini
escalation:
  transport: webhook
  webhookURL: https://hook.example.com/abc
  timeout: 10s
relevanceThreshold: 0.3
historyWindow: 3
`

	var cfg Config
	err := yaml.Unmarshal([]byte(input), &cfg)
	require.NoError(t, err)

	assert.Equal("excel", cfg.KnowledgeBase.Source)
	assert.True(cfg.Vector.Persistent)
	assert.Equal("qa", cfg.Vector.Collection)
	assert.Equal("./history.db", cfg.History.Path)
	assert.True(cfg.Completion.Enabled)
	assert.Equal("gpt-4o-mini", cfg.Completion.Model)
	assert.Equal(escalate.TransportWebhook, cfg.Escalation.Transport)
	assert.Equal(10*time.Second, cfg.Escalation.Timeout.Duration())
	assert.Equal(float32(0.3), cfg.RelevanceThreshold)
	assert.Equal(3, cfg.HistoryWindow)
}

func TestConfigApplyDefaults(t *testing.T) {
	assert := assert.New(t)

	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(float32(DefaultRelevanceThreshold), cfg.RelevanceThreshold)
	assert.Equal(DefaultHistoryWindow, cfg.HistoryWindow)
	assert.Equal("qa", cfg.Vector.Collection)
}

func TestDurationJSONRoundtrip(t *testing.T) {
	assert := assert.New(t)

	d := Duration(90 * time.Second)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(`"1m30s"`, string(data))

	var parsed Duration
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(d, parsed)
}

func TestDurationYAMLRoundtrip(t *testing.T) {
	assert := assert.New(t)

	d := Duration(90 * time.Second)

	data, err := yaml.Marshal(d)
	require.NoError(t, err)
	assert.Equal("1m30s\n", string(data))

	var parsed Duration
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(d, parsed)
}

func TestRecordToDocument(t *testing.T) {
	assert := assert.New(t)

	record := kb.Record{
		Question: "What is the price?",
		Answer:   "10 per month",
		Category: "billing",
		Keywords: "price, cost",
	}

	doc := RecordToDocument(record)

	assert.Equal("10 per month", doc.Content)
	assert.Equal("What is the price?", doc.Metadata["question"])
	assert.Equal("billing", doc.Metadata["category"])
	assert.Equal("price, cost", doc.Metadata["keywords"])

	// Same record, same id: duplicates collapse instead of colliding.
	again := RecordToDocument(record)
	assert.Equal(doc.ID, again.ID)

	other := RecordToDocument(kb.Record{
		Question: "What is the price?",
		Answer:   "different answer",
	})
	assert.NotEqual(doc.ID, other.ID)
}
