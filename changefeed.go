package satchel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ChangeOp enumerates change feed operations.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent describes one document mutation, with before/after images.
type ChangeEvent struct {
	ID         string   `json:"id"`
	Collection string   `json:"collection"`
	Op         ChangeOp `json:"op"`
	DocID      string   `json:"doc_id"`
	Before     Document `json:"before,omitempty"`
	After      Document `json:"after,omitempty"`
	Rev        uint64   `json:"rev"`
	Timestamp  int64    `json:"timestamp"`
}

// ChangefeedConfig configures the change feed engine.
type ChangefeedConfig struct {
	Enabled            bool          `yaml:"enabled"`
	BufferSize         int           `yaml:"buffer_size"`
	MaxSubscribers     int           `yaml:"max_subscribers"`
	FlushInterval      time.Duration `yaml:"flush_interval"`
	IncludeCollections []string      `yaml:"include_collections"` // empty = all
	ExcludeCollections []string      `yaml:"exclude_collections"`
}

// DefaultChangefeedConfig returns change feed defaults.
func DefaultChangefeedConfig() ChangefeedConfig {
	return ChangefeedConfig{
		Enabled:        true,
		BufferSize:     4096,
		MaxSubscribers: 64,
		FlushInterval:  50 * time.Millisecond,
	}
}

// FeedFilter lets subscribers select a slice of the change feed.
type FeedFilter struct {
	Collections []string   // empty = all
	Ops         []ChangeOp // empty = all
	Rule        Rule       // applied to After (Before for deletes)
}

func (f FeedFilter) matches(e *ChangeEvent) bool {
	if len(f.Collections) > 0 {
		found := false
		for _, c := range f.Collections {
			if c == e.Collection {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.Ops) > 0 {
		found := false
		for _, op := range f.Ops {
			if op == e.Op {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.Rule != nil {
		doc := e.After
		if doc == nil {
			doc = e.Before
		}
		if doc == nil || !f.Rule.Match(doc) {
			return false
		}
	}

	return true
}

// FeedSubscription represents an active change feed subscriber.
type FeedSubscription struct {
	ID     string
	Filter FeedFilter
	Events chan ChangeEvent

	created time.Time
	cancel  context.CancelFunc
	closed  int32
}

// Close terminates the subscription.
func (s *FeedSubscription) Close() {
	if atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		s.cancel()
		close(s.Events)
	}
}

// FeedStats provides runtime statistics for the change feed.
type FeedStats struct {
	TotalEvents       int64   `json:"total_events"`
	EventsPublished   int64   `json:"events_published"`
	EventsDropped     int64   `json:"events_dropped"`
	ActiveSubscribers int     `json:"active_subscribers"`
	BufferUtilization float64 `json:"buffer_utilization"`
}

// Feed buffers change events and fans them out to filtered subscribers on a
// flush interval. Events that would block a full subscriber channel are
// dropped and counted rather than stalling writers.
type Feed struct {
	config ChangefeedConfig

	mu          sync.RWMutex
	subscribers map[string]*FeedSubscription

	bufferMu sync.Mutex
	buffer   []ChangeEvent

	totalEvents     int64
	eventsPublished int64
	eventsDropped   int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFeed creates a change feed engine.
func NewFeed(config ChangefeedConfig) *Feed {
	if config.BufferSize <= 0 {
		config.BufferSize = 4096
	}
	if config.MaxSubscribers <= 0 {
		config.MaxSubscribers = 64
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 50 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Feed{
		config:      config,
		subscribers: make(map[string]*FeedSubscription),
		buffer:      make([]ChangeEvent, 0, config.BufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins the background flush loop.
func (f *Feed) Start() {
	f.wg.Add(1)
	go f.flushLoop()
}

// Stop flushes remaining events and closes all subscriptions.
func (f *Feed) Stop() {
	f.cancel()
	f.wg.Wait()

	f.mu.Lock()
	for _, sub := range f.subscribers {
		sub.Close()
	}
	f.subscribers = make(map[string]*FeedSubscription)
	f.mu.Unlock()
}

// Subscribe creates a subscription with the given filter.
func (f *Feed) Subscribe(filter FeedFilter) (*FeedSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.subscribers) >= f.config.MaxSubscribers {
		return nil, fmt.Errorf("changefeed: max subscribers (%d) reached", f.config.MaxSubscribers)
	}

	id := "feed-" + uuid.NewString()
	ctx, cancel := context.WithCancel(f.ctx)

	sub := &FeedSubscription{
		ID:      id,
		Filter:  filter,
		Events:  make(chan ChangeEvent, f.config.BufferSize),
		created: time.Now(),
		cancel:  cancel,
	}

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subscribers, id)
		f.mu.Unlock()
	}()

	f.subscribers[id] = sub
	return sub, nil
}

// Unsubscribe removes a subscription by id.
func (f *Feed) Unsubscribe(id string) {
	f.mu.Lock()
	sub, ok := f.subscribers[id]
	f.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// Emit buffers a change event for delivery on the next flush.
func (f *Feed) Emit(event ChangeEvent) {
	atomic.AddInt64(&f.totalEvents, 1)

	if !f.matchesGlobalFilter(&event) {
		return
	}
	if event.ID == "" {
		event.ID = "evt-" + uuid.NewString()
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixNano()
	}

	f.bufferMu.Lock()
	f.buffer = append(f.buffer, event)
	shouldFlush := len(f.buffer) >= f.config.BufferSize
	f.bufferMu.Unlock()

	if shouldFlush {
		f.flush()
	}
}

// Stats returns change feed statistics.
func (f *Feed) Stats() FeedStats {
	f.mu.RLock()
	active := len(f.subscribers)
	f.mu.RUnlock()

	f.bufferMu.Lock()
	bufLen := len(f.buffer)
	f.bufferMu.Unlock()

	return FeedStats{
		TotalEvents:       atomic.LoadInt64(&f.totalEvents),
		EventsPublished:   atomic.LoadInt64(&f.eventsPublished),
		EventsDropped:     atomic.LoadInt64(&f.eventsDropped),
		ActiveSubscribers: active,
		BufferUtilization: float64(bufLen) / float64(f.config.BufferSize),
	}
}

func (f *Feed) matchesGlobalFilter(event *ChangeEvent) bool {
	for _, c := range f.config.ExcludeCollections {
		if c == event.Collection {
			return false
		}
	}
	if len(f.config.IncludeCollections) > 0 {
		for _, c := range f.config.IncludeCollections {
			if c == event.Collection {
				return true
			}
		}
		return false
	}
	return true
}

func (f *Feed) flushLoop() {
	defer f.wg.Done()
	ticker := time.NewTicker(f.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			f.flush() // final flush
			return
		case <-ticker.C:
			f.flush()
		}
	}
}

func (f *Feed) flush() {
	f.bufferMu.Lock()
	if len(f.buffer) == 0 {
		f.bufferMu.Unlock()
		return
	}
	events := f.buffer
	f.buffer = make([]ChangeEvent, 0, f.config.BufferSize)
	f.bufferMu.Unlock()

	f.mu.RLock()
	subs := make([]*FeedSubscription, 0, len(f.subscribers))
	for _, sub := range f.subscribers {
		subs = append(subs, sub)
	}
	f.mu.RUnlock()

	for _, event := range events {
		for _, sub := range subs {
			if atomic.LoadInt32(&sub.closed) == 1 {
				continue
			}
			if !sub.Filter.matches(&event) {
				continue
			}
			select {
			case sub.Events <- event:
				atomic.AddInt64(&f.eventsPublished, 1)
			default:
				atomic.AddInt64(&f.eventsDropped, 1)
			}
		}
	}
}
