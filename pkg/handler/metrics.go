package handler

import (
	"sync"
	"sync/atomic"
)

// Metrics holds the cheap, atomic-counter bookkeeping that the handler updates
// while serving requests. A separate adapter (see pkg/prometheuscollector)
// turns these into a prometheus.Collector without coupling this package to
// the Prometheus client library. All fields are pointers so Metrics can be
// passed around by value while every copy observes the same counters.
type Metrics struct {
	requestsTotal     *countersMap[string]
	errorsTotal       *countersMap[ErrorStat]
	bytesReceived     *uint64
	uploadsFinished   *uint64
	uploadsCreated    *uint64
	uploadsTerminated *uint64
}

func newMetrics() Metrics {
	return Metrics{
		requestsTotal:     newCountersMap[string](),
		errorsTotal:       newCountersMap[ErrorStat](),
		bytesReceived:     new(uint64),
		uploadsFinished:   new(uint64),
		uploadsCreated:    new(uint64),
		uploadsTerminated: new(uint64),
	}
}

func (m Metrics) incRequestsTotal(method string) {
	m.requestsTotal.inc(method)
}

// RequestsTotal returns a snapshot of the per-method request counters.
func (m Metrics) RequestsTotal() map[string]uint64 {
	return m.requestsTotal.load()
}

func (m Metrics) incErrorsTotal(err Error) {
	m.errorsTotal.inc(ErrorStat{
		Code:   err.ErrorCode,
		Status: err.HTTPResponse.StatusCode,
	})
}

// ErrorsTotal returns a snapshot of the per-error counters.
func (m Metrics) ErrorsTotal() map[ErrorStat]uint64 {
	return m.errorsTotal.load()
}

func (m Metrics) incBytesReceived(bytes uint64) {
	atomic.AddUint64(m.bytesReceived, bytes)
}

// BytesReceived returns the number of upload body bytes received so far.
func (m Metrics) BytesReceived() uint64 {
	return atomic.LoadUint64(m.bytesReceived)
}

func (m Metrics) incUploadsFinished() {
	atomic.AddUint64(m.uploadsFinished, 1)
}

// UploadsFinished returns the number of completely uploaded files.
func (m Metrics) UploadsFinished() uint64 {
	return atomic.LoadUint64(m.uploadsFinished)
}

func (m Metrics) incUploadsCreated() {
	atomic.AddUint64(m.uploadsCreated, 1)
}

// UploadsCreated returns the number of uploads created.
func (m Metrics) UploadsCreated() uint64 {
	return atomic.LoadUint64(m.uploadsCreated)
}

func (m Metrics) incUploadsTerminated() {
	atomic.AddUint64(m.uploadsTerminated, 1)
}

// UploadsTerminated returns the number of uploads terminated by clients.
func (m Metrics) UploadsTerminated() uint64 {
	return atomic.LoadUint64(m.uploadsTerminated)
}

// ErrorStat is the key used to count errors: the error code together with the
// HTTP status it was mapped to.
type ErrorStat struct {
	Code   string
	Status int
}

// countersMap counts occurrences per key, using double-checked locking to
// avoid a write-lock on the common case of an already-seen key.
type countersMap[K comparable] struct {
	counts map[K]*uint64
	lock   sync.RWMutex
}

func newCountersMap[K comparable]() *countersMap[K] {
	return &countersMap[K]{
		counts: make(map[K]*uint64),
	}
}

func (c *countersMap[K]) inc(key K) {
	c.lock.RLock()
	ptr, ok := c.counts[key]
	c.lock.RUnlock()

	if !ok {
		c.lock.Lock()
		ptr, ok = c.counts[key]
		if !ok {
			ptr = new(uint64)
			c.counts[key] = ptr
		}
		c.lock.Unlock()
	}

	atomic.AddUint64(ptr, 1)
}

func (c *countersMap[K]) load() map[K]uint64 {
	c.lock.RLock()
	defer c.lock.RUnlock()

	result := make(map[K]uint64, len(c.counts))
	for key, ptr := range c.counts {
		result[key] = atomic.LoadUint64(ptr)
	}
	return result
}
