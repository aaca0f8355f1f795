package memory

import (
	"context"
	"hash/fnv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attache/attache/config"
	"github.com/attache/attache/pkg/fault"
	"github.com/attache/attache/pkg/logger"
)

// hashEmbedder produces deterministic vectors without an embedding service.
// Equal texts embed identically; different texts almost surely differ.
type hashEmbedder struct {
	dim   int
	calls int
}

func (e *hashEmbedder) Dimension() int { return e.dim }

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	vec := make([]float32, e.dim)
	h := fnv.New64a()
	for i := range vec {
		h.Write([]byte(text))
		h.Write([]byte{byte(i)})
		vec[i] = float32(h.Sum64()%1000)/500 - 1
	}
	return vec, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(config.MemoryConfig{
		Path:            t.TempDir(),
		VectorDimension: 16,
		RecallWindow:    24 * time.Hour,
		RecallTopK:      3,
	}, &hashEmbedder{dim: 16}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCollectionAddAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	knowledge, err := store.Collection(CollectionKnowledge)
	require.NoError(t, err)

	require.NoError(t, knowledge.Add(ctx, "k1", "go channels are typed conduits", map[string]string{"topic": "go"}))
	require.NoError(t, knowledge.Add(ctx, "k2", "cats sleep most of the day", nil))
	assert.Equal(t, 2, knowledge.Count())

	// Same text embeds identically, so k1 comes back at distance ~0.
	docs, err := knowledge.Query(ctx, "go channels are typed conduits", 5)
	require.NoError(t, err)
	require.Len(t, docs, 2, "k is clamped to collection size")
	assert.Equal(t, "k1", docs[0].ID)
	assert.InDelta(t, 0, docs[0].Distance, 1e-6)
	assert.LessOrEqual(t, docs[0].Distance, docs[1].Distance)
	assert.Equal(t, "go", docs[0].Metadata["topic"])
}

func TestCollectionDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	successes, err := store.Collection(CollectionSuccesses)
	require.NoError(t, err)

	require.NoError(t, successes.Add(ctx, "s1", "pattern one", nil))
	err = successes.Add(ctx, "s1", "pattern one again", nil)
	assert.Equal(t, fault.KindBadInput, fault.KindOf(err))
	assert.Equal(t, 1, successes.Count())
}

func TestCollectionRejectedVectorLeavesNoDocument(t *testing.T) {
	// Embedder narrower than the configured index width: every Add must be
	// rejected whole, with no document left behind.
	store, err := Open(config.MemoryConfig{
		Path:            t.TempDir(),
		VectorDimension: 16,
		RecallWindow:    time.Hour,
		RecallTopK:      2,
	}, &hashEmbedder{dim: 8}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	knowledge, err := store.Collection(CollectionKnowledge)
	require.NoError(t, err)

	err = knowledge.Add(context.Background(), "k1", "some fact", nil)
	assert.Equal(t, fault.KindBadInput, fault.KindOf(err))

	assert.Zero(t, knowledge.Count())
	docs, err := knowledge.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestCollectionEmptyQuery(t *testing.T) {
	store := newTestStore(t)

	failures, err := store.Collection(CollectionFailures)
	require.NoError(t, err)

	docs, err := failures.Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, docs, "empty collections answer queries with no results")
}

func TestUnknownCollection(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Collection("scratch")
	assert.Equal(t, fault.KindBadInput, fault.KindOf(err))
}

func TestRecallBundle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AppendTurn("remind me about the deadline", "it is friday", "general", nil)
	require.NoError(t, err)

	successes, _ := store.Collection(CollectionSuccesses)
	require.NoError(t, successes.Add(ctx, "s1", "scheduled a reminder successfully", nil))

	failures, _ := store.Collection(CollectionFailures)
	require.NoError(t, failures.Add(ctx, "f1", "calendar sync failed", nil))

	prefs, _ := store.Collection(CollectionPreferences)
	require.NoError(t, prefs.Add(ctx, "p1", "prefers short answers", map[string]string{"key": "deadline"}))
	require.NoError(t, prefs.Add(ctx, "p2", "likes verbose logs", map[string]string{"key": "logging"}))

	facts, _ := store.Collection(CollectionPersonalFacts)
	require.NoError(t, facts.Add(ctx, "pf1", "works in Tel Aviv", map[string]string{"key": "deadline"}))

	bundle, err := store.Recall(ctx, "what about the deadline?")
	require.NoError(t, err)

	require.Len(t, bundle.Conversations, 1)
	assert.Equal(t, "remind me about the deadline", bundle.Conversations[0].UserMessage)

	assert.Len(t, bundle.Successes, 1)
	assert.Len(t, bundle.Failures, 1)

	// Key matching is per token: only the "deadline"-keyed entries.
	require.Len(t, bundle.Preferences, 1)
	assert.Equal(t, "p1", bundle.Preferences[0].ID)
	require.Len(t, bundle.PersonalFacts, 1)
	assert.Equal(t, "pf1", bundle.PersonalFacts[0].ID)

	assert.False(t, bundle.Empty())
}

func TestRecallKeyedLookupLastWriteWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// ULID ids order lexically by creation time; the later id is the newer
	// write to the same key.
	prefs, _ := store.Collection(CollectionPreferences)
	require.NoError(t, prefs.Add(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAA", "prefers long answers",
		map[string]string{"key": "answers"}))
	require.NoError(t, prefs.Add(ctx, "01BRZ3NDEKTSV4RRFFQ69G5FAA", "prefers short answers",
		map[string]string{"key": "answers"}))

	bundle, err := store.Recall(ctx, "how should answers look?")
	require.NoError(t, err)

	require.Len(t, bundle.Preferences, 1, "one document per key")
	assert.Equal(t, "01BRZ3NDEKTSV4RRFFQ69G5FAA", bundle.Preferences[0].ID)
	assert.Equal(t, "prefers short answers", bundle.Preferences[0].Text)
}

func TestStorePersistsVectorsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := config.MemoryConfig{
		Path:            dir,
		VectorDimension: 16,
		RecallWindow:    time.Hour,
		RecallTopK:      2,
	}
	embedder := &hashEmbedder{dim: 16}

	store, err := Open(cfg, embedder, logger.Nop())
	require.NoError(t, err)
	knowledge, _ := store.Collection(CollectionKnowledge)
	require.NoError(t, knowledge.Add(context.Background(), "k1", "persisted fact", nil))
	require.NoError(t, store.Close())

	reopened, err := Open(cfg, embedder, logger.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	knowledge, _ = reopened.Collection(CollectionKnowledge)
	assert.Equal(t, 1, knowledge.Count())

	docs, err := knowledge.Query(context.Background(), "persisted fact", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "persisted fact", docs[0].Text)
}
