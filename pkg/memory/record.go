// Package memory provides the assistant's two-tier memory: an append-only
// short-term conversation log and six typed vector collections with a
// unified recall bundle.
package memory

import (
	"time"
)

// Collection names. The set is fixed; callers address collections by these
// constants.
const (
	CollectionConversations = "conversations"
	CollectionSuccesses     = "successes"
	CollectionFailures      = "failures"
	CollectionKnowledge     = "knowledge"
	CollectionPreferences   = "preferences"
	CollectionPersonalFacts = "personal_facts"
)

// CollectionNames lists all collections in their fixed order.
func CollectionNames() []string {
	return []string{
		CollectionConversations,
		CollectionSuccesses,
		CollectionFailures,
		CollectionKnowledge,
		CollectionPreferences,
		CollectionPersonalFacts,
	}
}

// Record is one conversation turn in the short-term log.
type Record struct {
	// ID is the ULID assigned at append time.
	ID string `json:"id"`

	// UserMessage is the raw user input for the turn.
	UserMessage string `json:"user_message"`

	// AssistantReply is the final response text.
	AssistantReply string `json:"assistant_reply"`

	// Model is the backend model that produced the reply.
	Model string `json:"model,omitempty"`

	// Metadata holds arbitrary labels for the turn.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Timestamp is the append time, UTC.
	Timestamp time.Time `json:"timestamp"`
}

// Document is one entry in a vector collection.
type Document struct {
	// ID is unique within its collection.
	ID string `json:"id"`

	// Text is the embedded content.
	Text string `json:"text"`

	// Metadata holds string labels; preference and fact keys live here.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Distance is the query distance, nondecreasing within one result list.
	// Zero for documents returned by non-similarity lookups.
	Distance float64 `json:"distance,omitempty"`
}

// RecallBundle is the unified recall result. Collections stay separate;
// consumers must never see them merged.
type RecallBundle struct {
	Conversations []Record   `json:"conversations"`
	Successes     []Document `json:"successes"`
	Failures      []Document `json:"failures"`
	Preferences   []Document `json:"preferences"`
	PersonalFacts []Document `json:"personal_facts"`
}

// Empty reports whether the bundle holds nothing at all.
func (b RecallBundle) Empty() bool {
	return len(b.Conversations) == 0 && len(b.Successes) == 0 &&
		len(b.Failures) == 0 && len(b.Preferences) == 0 && len(b.PersonalFacts) == 0
}
