// Package chromem implements the dual memory store on chromem-go, a pure Go
// embedded vector database. Each (system, target) pair gets its own
// collection, so fast-pattern and reasoning state stay separately queryable
// without a server.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/devloop-ai/synapse-go-sdk/core"
	"github.com/devloop-ai/synapse-go-sdk/embedder"
	"github.com/devloop-ai/synapse-go-sdk/memory"
)

// Store is a local, in-memory implementation of memory.Store.
type Store struct {
	db          *chromem.DB
	embed       chromem.EmbeddingFunc
	logger      *zap.Logger
	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// New creates a chromem-backed store. The embedder vectorizes record
// content for Query similarity ranking.
func New(emb embedder.Embedder, logger *zap.Logger) (*Store, error) {
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db: chromem.NewDB(),
		embed: func(ctx context.Context, text string) ([]float32, error) {
			return emb.Embed(ctx, text)
		},
		logger:      logger,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// UpdateSystem1 applies one mutation to the fast store half.
func (s *Store) UpdateSystem1(ctx context.Context, update *core.MemoryUpdate) error {
	return s.apply(ctx, core.SystemOne, update)
}

// UpdateSystem2 applies one mutation to the slow store half.
func (s *Store) UpdateSystem2(ctx context.Context, update *core.MemoryUpdate) error {
	return s.apply(ctx, core.SystemTwo, update)
}

func (s *Store) apply(ctx context.Context, system core.SystemTarget, update *core.MemoryUpdate) error {
	if update == nil {
		return fmt.Errorf("update is nil")
	}
	if update.Target == "" {
		return fmt.Errorf("update target is required")
	}

	switch update.Operation {
	case core.OpAdd, core.OpUpdate:
		return s.addDocument(ctx, system, update)
	case core.OpRemove:
		// chromem-go has no delete by ID; local memories age out naturally.
		s.logger.Warn("remove not supported by local store",
			zap.String("system", string(system)),
			zap.String("target", update.Target))
		return nil
	default:
		return fmt.Errorf("unknown operation %q", update.Operation)
	}
}

func (s *Store) addDocument(ctx context.Context, system core.SystemTarget, update *core.MemoryUpdate) error {
	col, err := s.collection(system, update.Target)
	if err != nil {
		return err
	}

	content, err := json.Marshal(update.Data)
	if err != nil {
		return fmt.Errorf("marshal update data: %w", err)
	}

	metadata := map[string]string{
		"type":       update.Type,
		"system":     string(system),
		"target":     update.Target,
		"created_at": time.Now().Format(time.RFC3339Nano),
	}
	for k, v := range update.Metadata {
		if str, ok := v.(string); ok {
			metadata[k] = str
			continue
		}
		if bytes, err := json.Marshal(v); err == nil {
			metadata[k] = string(bytes)
		}
	}

	doc := chromem.Document{
		ID:       fmt.Sprintf("%s/%s/%d", system, update.Target, time.Now().UnixNano()),
		Content:  string(content),
		Metadata: metadata,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Query ranks records in one (system, target) collection by similarity to
// the query text. An empty collection yields no results, no error.
func (s *Store) Query(ctx context.Context, opts memory.QueryOptions) ([]*memory.Record, error) {
	if opts.System == "" || opts.System == core.SystemBoth {
		return nil, fmt.Errorf("query requires a single system target")
	}
	col, err := s.collection(opts.System, opts.Target)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	if count := col.Count(); count < limit {
		limit = count
	}
	if limit == 0 {
		return nil, nil
	}

	results, err := col.Query(ctx, opts.Text, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	records := make([]*memory.Record, 0, len(results))
	for _, result := range results {
		record := &memory.Record{
			ID:     result.ID,
			System: opts.System,
			Target: opts.Target,
		}
		var data interface{}
		if err := json.Unmarshal([]byte(result.Content), &data); err == nil {
			record.Data = data
		} else {
			record.Data = result.Content
		}
		if created, err := time.Parse(time.RFC3339Nano, result.Metadata["created_at"]); err == nil {
			record.CreatedAt = created
		}
		record.Metadata = make(map[string]interface{})
		for k, v := range result.Metadata {
			switch k {
			case "system", "target", "created_at":
			default:
				record.Metadata[k] = v
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// Close releases resources. chromem keeps everything in memory; nothing to
// flush.
func (s *Store) Close() error {
	return nil
}

func (s *Store) collection(system core.SystemTarget, target string) (*chromem.Collection, error) {
	name := fmt.Sprintf("%s_%s", system, target)

	s.mu.RLock()
	col, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[name]; ok {
		return col, nil
	}

	col, err := s.db.CreateCollection(name, nil, s.embed)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}
	s.collections[name] = col
	return col, nil
}
