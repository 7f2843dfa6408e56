package store

import (
	"sync"

	"github.com/Sumatoshi-tech/sprintstats/pkg/model"
)

// defaultBacklog is the number of batches that may wait for the collector.
const defaultBacklog = 4

// Batch is the result of one source fetch for a repository. Exactly one of
// Commits or PullRequests is expected to be set; a nil slice leaves that side untouched.
type Batch struct {
	Repository   model.Repository
	Commits      []model.Commit
	PullRequests []model.PullRequest
}

// Collector owns a Store and applies batches sent by concurrent fetch tasks.
// All writes happen on the collector goroutine, so the Store needs no lock.
type Collector struct {
	batches chan Batch
	done    chan struct{}
	store   *Store
	once    sync.Once
}

// NewCollector starts a collector goroutine over an empty store.
func NewCollector() *Collector {
	c := &Collector{
		batches: make(chan Batch, defaultBacklog),
		done:    make(chan struct{}),
		store:   New(),
	}

	go c.loop()

	return c
}

func (c *Collector) loop() {
	defer close(c.done)

	for batch := range c.batches {
		if batch.Commits != nil {
			c.store.InsertCommits(batch.Repository, batch.Commits)
		}

		if batch.PullRequests != nil {
			c.store.InsertPullRequests(batch.Repository, batch.PullRequests)
		}
	}
}

// Send hands a batch to the collector. It must not be called after Close.
func (c *Collector) Send(batch Batch) {
	c.batches <- batch
}

// Close stops accepting batches, waits for the pending ones and returns the store.
func (c *Collector) Close() *Store {
	c.once.Do(func() { close(c.batches) })
	<-c.done

	return c.store
}
