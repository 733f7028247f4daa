package qarelay

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flarexio/qarelay/escalate"
	"github.com/flarexio/qarelay/history"
	"github.com/flarexio/qarelay/kb"
	"github.com/flarexio/qarelay/llm"
	"github.com/flarexio/qarelay/vector"
)

var (
	ErrEmptyQuestion  = errors.New("question is empty")
	ErrVectorDBNotSet = errors.New("vector database not set")
	ErrLoaderNotSet   = errors.New("knowledge base loader not set")
)

// Fixed reply shapes. There are exactly two terminal replies plus one
// cross-cutting error reply.
const (
	FallbackReply = "Thanks for your question! I couldn't find an answer in the knowledge base, " +
		"so I've forwarded it to our manager. We'll get back to you soon."

	ApologyReply = "Sorry, I'm having trouble composing an answer right now. " +
		"Please try again in a moment."

	ErrorReply = "Something went wrong while handling your question. Please try again later."
)

const (
	DefaultRelevanceThreshold = 0.3
	DefaultHistoryWindow      = 3
	DefaultUserID             = "unknown"
	DefaultUserName           = "User"
)

type Config struct {
	KnowledgeBase kb.Config        `yaml:"knowledgeBase"`
	Vector        vector.Config    `yaml:"vector"`
	History       history.Config   `yaml:"history"`
	Completion    llm.Config       `yaml:"completion"`
	Escalation    EscalationConfig `yaml:"escalation"`

	// RelevanceThreshold is the inclusive embedding-distance cutoff below
	// which a retrieved entry counts as a relevant match.
	RelevanceThreshold float32 `yaml:"relevanceThreshold"`

	// HistoryWindow is the number of recent exchanges fed to the
	// chat-completion request.
	HistoryWindow int `yaml:"historyWindow"`
}

type EscalationConfig struct {
	Transport  escalate.Transport `yaml:"transport"`
	WebhookURL string             `yaml:"webhookURL"`
	Timeout    Duration           `yaml:"timeout"`
}

// ApplyDefaults fills unset tuning values.
func (cfg *Config) ApplyDefaults() {
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = DefaultRelevanceThreshold
	}

	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}

	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "qa"
	}
}

// Question is one inbound user question with its identity.
type Question struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Text     string `json:"text"`
}

type ReplySource string

const (
	// ReplyAnswered is a knowledge-base-grounded answer, either the stored
	// answer or a model composition over it.
	ReplyAnswered ReplySource = "answered"

	// ReplyApology replaces a model composition that failed.
	ReplyApology ReplySource = "apology"

	// ReplyEscalated is the forwarded-to-a-human notice.
	ReplyEscalated ReplySource = "escalated"
)

type Reply struct {
	Text      string      `json:"text"`
	Source    ReplySource `json:"source"`
	Escalated bool        `json:"escalated,omitempty"`
}

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	str := d.Duration().String()
	return json.Marshal(str)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration().String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

// RecordToDocument converts a knowledge-base record to an index document.
// The answer is the stored content; the question is what gets embedded. The
// id is a content hash, so duplicate records collapse to the same entry with
// no collision handling needed.
func RecordToDocument(record kb.Record) vector.Document {
	data := record.Question + "|" + record.Answer

	hash := sha256.Sum256([]byte(data))
	id := "qa_" + hex.EncodeToString(hash[:12])

	metadata := map[string]string{
		"question": record.Question,
		"category": record.Category,
	}

	if record.Keywords != "" {
		metadata["keywords"] = record.Keywords
	}

	return vector.Document{
		ID:       id,
		Content:  record.Answer,
		Metadata: metadata,
	}
}
