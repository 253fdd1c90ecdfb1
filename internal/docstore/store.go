package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/intervita/sessiond/internal/cache"
	appErrors "github.com/intervita/sessiond/pkg/errors"
	"github.com/intervita/sessiond/pkg/logger"
	"github.com/intervita/sessiond/pkg/random"
)

// DefaultBlockKey is the well-known key the serialized collection lives under.
const DefaultBlockKey = "documents"

// ErrDocumentNotFound is returned by Load when no record matches the id.
var ErrDocumentNotFound = appErrors.ErrNotFound.WithInternal(errors.New("docstore: document not found"))

// StoredDocument is one successfully parsed and accepted upload.
type StoredDocument struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	UploadDate time.Time      `json:"uploadDate"`
	Data       map[string]any `json:"data"`
}

// Store keeps previously parsed documents so a selection can be reused without
// re-submitting the file. The whole collection is persisted as one serialized
// block; the in-memory slice and the block are updated in lockstep, and a
// failed persist leaves the in-memory state untouched.
type Store struct {
	kv    cache.Store
	key   string
	clock func() time.Time

	mu     sync.Mutex
	docs   []StoredDocument
	loaded bool

	log *zap.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithBlockKey overrides the persistence key, e.g. to scope the cache per user.
func WithBlockKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a document store on top of the shared key/value store.
func New(kv cache.Store, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, errors.New("docstore: key/value store must be provided")
	}

	s := &Store{
		kv:    kv,
		key:   DefaultBlockKey,
		clock: time.Now,
		log:   logger.WithModule("docstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List returns all stored documents in insertion order. It re-reads the
// persisted block so a restarted caller always sees the durable state.
func (s *Store) List(ctx context.Context) ([]StoredDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reload(ctx); err != nil {
		return nil, err
	}

	out := make([]StoredDocument, len(s.docs))
	copy(out, s.docs)
	return out, nil
}

// Save assigns a fresh id to the parsed data, appends it to the collection and
// persists the whole updated block before returning the new record.
func (s *Store) Save(ctx context.Context, name string, data map[string]any) (StoredDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return StoredDocument{}, err
	}

	now := s.clock()
	id, err := random.DocumentID(now)
	if err != nil {
		return StoredDocument{}, appErrors.Wrap(err, "generate document id")
	}

	doc := StoredDocument{
		ID:         id,
		Name:       name,
		UploadDate: now,
		Data:       data,
	}

	next := append(append([]StoredDocument(nil), s.docs...), doc)
	if err := s.persist(ctx, next); err != nil {
		return StoredDocument{}, err
	}

	s.docs = next
	s.log.Debug("document saved", zap.String("id", doc.ID), zap.String("name", doc.Name))
	return doc, nil
}

// Load returns the parsed data for the first record matching id.
func (s *Store) Load(ctx context.Context, id string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	for _, doc := range s.docs {
		if doc.ID == id {
			return doc.Data, nil
		}
	}
	return nil, ErrDocumentNotFound
}

// Delete removes the matching record and re-persists the remaining collection.
// Deleting an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	next := make([]StoredDocument, 0, len(s.docs))
	removed := false
	for _, doc := range s.docs {
		if doc.ID == id {
			removed = true
			continue
		}
		next = append(next, doc)
	}

	if !removed {
		return nil
	}

	if err := s.persist(ctx, next); err != nil {
		return err
	}

	s.docs = next
	s.log.Debug("document deleted", zap.String("id", id))
	return nil
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	return s.reload(ctx)
}

func (s *Store) reload(ctx context.Context) error {
	block, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return appErrors.Wrap(err, "read document block")
	}

	if !found || len(block) == 0 {
		s.docs = nil
		s.loaded = true
		return nil
	}

	var docs []StoredDocument
	if err := json.Unmarshal(block, &docs); err != nil {
		return appErrors.Wrap(err, "decode document block")
	}

	s.docs = docs
	s.loaded = true
	return nil
}

func (s *Store) persist(ctx context.Context, docs []StoredDocument) error {
	block, err := json.Marshal(docs)
	if err != nil {
		return appErrors.Wrap(err, "encode document block")
	}
	if err := s.kv.Set(ctx, s.key, block, 0); err != nil {
		return appErrors.Wrap(err, "write document block")
	}
	return nil
}
