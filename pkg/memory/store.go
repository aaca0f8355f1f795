package memory

import (
	"context"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/dgraph-io/badger/v4"

	"github.com/attache/attache/config"
	"github.com/attache/attache/pkg/fault"
	"github.com/attache/attache/pkg/logger"
)

// recallConversationLimit caps how many recent turns a recall returns.
const recallConversationLimit = 10

// Store owns all persisted memory: the short-term log, the badger document
// store, and one vector index per collection.
type Store struct {
	root        string
	db          *badger.DB
	log         *ShortTermLog
	collections map[string]*Collection
	embedder    Embedder
	recallWin   time.Duration
	recallTopK  int
	logger      logger.Logger
}

// Open builds the store under cfg.Path, loading any persisted vector
// indexes.
func Open(cfg config.MemoryConfig, embedder Embedder, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Global()
	}

	shortTerm, err := OpenShortTermLog(filepath.Join(cfg.Path, "short_term.jsonl"))
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "long_term")).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		shortTerm.Close()
		return nil, fault.Fatal("open long-term store: %v", err)
	}

	store := &Store{
		root:        cfg.Path,
		db:          db,
		log:         shortTerm,
		collections: make(map[string]*Collection, 6),
		embedder:    embedder,
		recallWin:   cfg.RecallWindow,
		recallTopK:  cfg.RecallTopK,
		logger:      log,
	}

	for _, name := range CollectionNames() {
		index := NewVectorIndex(cfg.VectorDimension)
		if err := index.Load(store.indexPath(name)); err != nil {
			store.Close()
			return nil, err
		}
		store.collections[name] = newCollection(name, db, index, embedder)
	}

	log.Info("memory store opened",
		"path", cfg.Path,
		"dimension", cfg.VectorDimension,
		"collections", len(store.collections))
	return store, nil
}

func (s *Store) indexPath(collection string) string {
	return filepath.Join(s.root, "vectors", collection, "index.bin")
}

// ShortTerm returns the short-term conversation log.
func (s *Store) ShortTerm() *ShortTermLog { return s.log }

// Collection returns a collection by name.
func (s *Store) Collection(name string) (*Collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fault.BadInput("unknown collection %q", name)
	}
	return c, nil
}

// AppendTurn records one finished chat turn in the short-term log.
func (s *Store) AppendTurn(userMessage, reply, model string, metadata map[string]string) (Record, error) {
	return s.log.Append(Record{
		UserMessage:    userMessage,
		AssistantReply: reply,
		Model:          model,
		Metadata:       metadata,
	})
}

// Recall assembles the unified bundle for a query: recent conversations
// within the window, top-k successes and failures by similarity, and the
// preferences and personal facts whose key matches a query token. Keyed
// lookups are last-write-wins: when several documents share a key, only the
// newest one is returned. Collections are returned as separate slices, never
// merged.
func (s *Store) Recall(ctx context.Context, query string) (RecallBundle, error) {
	var bundle RecallBundle

	conversations, err := s.log.Last(recallConversationLimit, s.recallWin)
	if err != nil {
		return bundle, err
	}
	bundle.Conversations = conversations

	// Similarity lookups need the embedding endpoint; an unavailable
	// endpoint degrades recall to the short-term slice instead of failing
	// the turn.
	for _, part := range []struct {
		name string
		dst  *[]Document
	}{
		{CollectionSuccesses, &bundle.Successes},
		{CollectionFailures, &bundle.Failures},
	} {
		docs, err := s.collections[part.name].Query(ctx, query, s.recallTopK)
		if err != nil {
			if fault.KindOf(err) == fault.KindBackendUnavailable {
				s.logger.Warn("recall similarity lookup skipped",
					"collection", part.name, "error", err.Error())
				continue
			}
			return bundle, err
		}
		*part.dst = docs
	}

	tokens := queryTokens(query)
	for _, part := range []struct {
		name string
		dst  *[]Document
	}{
		{CollectionPreferences, &bundle.Preferences},
		{CollectionPersonalFacts, &bundle.PersonalFacts},
	} {
		docs, err := s.collections[part.name].All(ctx)
		if err != nil {
			return bundle, err
		}
		*part.dst = latestPerKey(docs, tokens)
	}

	return bundle, nil
}

// Save persists every collection's vector index.
func (s *Store) Save() error {
	for name, c := range s.collections {
		if err := c.index.Save(s.indexPath(name)); err != nil {
			return err
		}
	}
	return nil
}

// Close saves indexes and releases the underlying stores.
func (s *Store) Close() error {
	var firstErr error
	if err := s.Save(); err != nil {
		firstErr = err
	}
	if err := s.log.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func queryTokens(query string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[f] = struct{}{}
	}
	return tokens
}

func keyMatches(key string, tokens map[string]struct{}) bool {
	if key == "" {
		return false
	}
	_, ok := tokens[strings.ToLower(key)]
	return ok
}

// latestPerKey filters docs to those whose key matches a query token,
// keeping only the newest document per key. ULID ids order lexically by
// creation time, so the largest id wins.
func latestPerKey(docs []Document, tokens map[string]struct{}) []Document {
	newest := make(map[string]Document)
	var keys []string
	for _, doc := range docs {
		key := strings.ToLower(doc.Metadata["key"])
		if !keyMatches(key, tokens) {
			continue
		}
		current, seen := newest[key]
		if !seen {
			keys = append(keys, key)
		}
		if !seen || doc.ID > current.ID {
			newest[key] = doc
		}
	}
	out := make([]Document, 0, len(keys))
	for _, key := range keys {
		out = append(out, newest[key])
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
