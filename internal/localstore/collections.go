package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/marcus/imtti/internal/models"
)

// Collections exposes the append-only record collections kept in a Store.
// Appends to the same collection are serialized within the process, and
// across processes when the Store implements Locker.
type Collections struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	locks map[models.Collection]*sync.Mutex
}

// NewCollections wraps store. A nil logger uses slog.Default().
func NewCollections(store Store, logger *slog.Logger) *Collections {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collections{
		store:  store,
		logger: logger,
		locks:  make(map[models.Collection]*sync.Mutex),
	}
}

// Store returns the underlying key-value store.
func (c *Collections) Store() Store {
	return c.store
}

// ReadLocal returns the stored records for name, or an empty slice when
// nothing is stored. A stored value that is not a JSON array of objects is
// logged and read as empty; only store I/O failures are returned as errors.
func (c *Collections) ReadLocal(ctx context.Context, name models.Collection) ([]models.Record, error) {
	raw, ok, err := c.store.GetItem(ctx, string(name))
	if err != nil {
		return []models.Record{}, fmt.Errorf("read %s: %w", name, err)
	}
	if !ok {
		return []models.Record{}, nil
	}
	return c.decode(name, raw), nil
}

// AppendLocal appends record to the collection and returns it.
func (c *Collections) AppendLocal(ctx context.Context, name models.Collection, record models.Record) (models.Record, error) {
	mu := c.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	if locker, ok := c.store.(Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", name, err)
		}
		defer unlock()
	}

	records, err := c.ReadLocal(ctx, name)
	if err != nil {
		return nil, err
	}
	records = append(records, record)

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	if err := c.store.SetItem(ctx, string(name), string(data)); err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	return record, nil
}

// Clear removes every record in the collection.
func (c *Collections) Clear(ctx context.Context, name models.Collection) error {
	mu := c.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	if locker, ok := c.store.(Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			return fmt.Errorf("lock %s: %w", name, err)
		}
		defer unlock()
	}
	return c.store.RemoveItem(ctx, string(name))
}

// Counts returns the number of records held per known collection.
func (c *Collections) Counts(ctx context.Context) (map[models.Collection]int, error) {
	out := make(map[models.Collection]int, len(models.AllCollections))
	for _, name := range models.AllCollections {
		records, err := c.ReadLocal(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = len(records)
	}
	return out, nil
}

func (c *Collections) decode(name models.Collection, raw string) []models.Record {
	var records []models.Record
	if err := models.DecodeJSON([]byte(raw), &records); err != nil {
		c.logger.Warn("corrupt local collection, reading as empty", "collection", string(name), "err", err)
		return []models.Record{}
	}
	if records == nil {
		// stored "null"
		return []models.Record{}
	}
	return records
}

func (c *Collections) lockFor(name models.Collection) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	mu, ok := c.locks[name]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[name] = mu
	}
	return mu
}
