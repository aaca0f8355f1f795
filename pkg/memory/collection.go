package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/attache/attache/pkg/fault"
)

// Collection is one typed vector collection: documents in badger, vectors in
// a per-collection index.
type Collection struct {
	name     string
	db       *badger.DB
	index    *VectorIndex
	embedder Embedder
}

func newCollection(name string, db *badger.DB, index *VectorIndex, embedder Embedder) *Collection {
	return &Collection{name: name, db: db, index: index, embedder: embedder}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

func (c *Collection) key(id string) []byte {
	return []byte(fmt.Sprintf("doc:%s:%s", c.name, id))
}

func (c *Collection) prefix() []byte {
	return []byte(fmt.Sprintf("doc:%s:", c.name))
}

// Add stores a document and indexes its embedding. IDs are unique within the
// collection; re-adding an existing id is a bad_input fault.
func (c *Collection) Add(ctx context.Context, id, text string, metadata map[string]string) error {
	if id == "" {
		return fault.BadInput("document id must not be empty")
	}
	if text == "" {
		return fault.BadInput("document text must not be empty")
	}
	if c.index.Has(id) {
		return fault.BadInput("document %q already exists in collection %s", id, c.name)
	}

	vector, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	doc := Document{ID: id, Text: text, Metadata: metadata}
	data, err := json.Marshal(doc)
	if err != nil {
		return fault.Fatal("marshal document: %v", err)
	}

	// Index first: a rejected vector must not leave a document behind.
	if err := c.index.Add(id, vector); err != nil {
		return err
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(c.key(id), data)
	}); err != nil {
		c.index.Delete(id)
		return fault.Fatal("store document in %s: %v", c.name, err)
	}
	return nil
}

// Get returns one document by id.
func (c *Collection) Get(ctx context.Context, id string) (Document, error) {
	var doc Document
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err == badger.ErrKeyNotFound {
		return Document{}, fault.BadInput("document %q not found in collection %s", id, c.name)
	}
	if err != nil {
		return Document{}, fault.Fatal("load document from %s: %v", c.name, err)
	}
	return doc, nil
}

// Query embeds text and returns the k nearest documents, distances
// nondecreasing. k is silently clamped to the collection size.
func (c *Collection) Query(ctx context.Context, text string, k int) ([]Document, error) {
	if c.index.Len() == 0 || k <= 0 {
		return nil, nil
	}

	vector, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	ids, distances, err := c.index.Search(vector, k)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(ids))
	for i, id := range ids {
		doc, err := c.Get(ctx, id)
		if err != nil {
			// Index/store drift: skip rather than fail the whole query.
			continue
		}
		doc.Distance = distances[i]
		docs = append(docs, doc)
	}
	return docs, nil
}

// Count returns the collection size.
func (c *Collection) Count() int {
	return c.index.Len()
}

// All returns every document in the collection, in storage order.
func (c *Collection) All(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.prefix()
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var doc Document
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fault.Fatal("scan collection %s: %v", c.name, err)
	}
	return docs, nil
}
