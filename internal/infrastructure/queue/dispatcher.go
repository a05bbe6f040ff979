// Package queue delivers password reset notices off the request path.
package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tlobni/session-core/internal/core/ports"
	"github.com/tlobni/session-core/internal/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher routes reset notices to a fixed set of workers using consistent
// hashing on the recipient address, so notices for one account are sent in
// the order they were requested.
type Dispatcher struct {
	workers []chan ports.ResetNotice
	sender  ports.ResetNoticeSender
	log     zerolog.Logger
	wg      sync.WaitGroup

	// stopped is closed once the workers' context is done.
	stopped  chan struct{}
	stopOnce sync.Once
}

var _ ports.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sender ports.ResetNoticeSender, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.ResetNotice, numWorkers),
		sender:  sender,
		log:     log,
		stopped: make(chan struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.ResetNotice, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		<-ctx.Done()
		d.stopOnce.Do(func() { close(d.stopped) })
	}()
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands a notice to the worker responsible for its address. The call
// only blocks while that worker's buffer is full. Once the dispatcher has
// stopped, notices are dropped and counted.
func (d *Dispatcher) Enqueue(notice ports.ResetNotice) {
	idx := d.shardIndex(notice.Email)
	select {
	case <-d.stopped:
		d.drop(notice, idx)
		return
	default:
	}

	select {
	case d.workers[idx] <- notice:
		metrics.ResetNotificationsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	case <-d.stopped:
		d.drop(notice, idx)
	}
}

func (d *Dispatcher) drop(notice ports.ResetNotice, idx int) {
	metrics.ResetNotificationsDroppedTotal.Inc()
	d.log.Warn().Str("email", notice.Email).Int("worker_id", idx).Msg("dispatcher stopped, reset notice dropped")
}

// shardIndex maps an address deterministically to a worker index.
func (d *Dispatcher) shardIndex(email string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(email)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.ResetNotice) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case notice, ok := <-ch:
			if !ok {
				return
			}
			metrics.ResetNotificationsQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			if err := d.sender.Send(ctx, notice); err != nil {
				d.log.Error().Err(err).
					Str("email", notice.Email).
					Int("worker_id", id).
					Msg("reset notice delivery failed")
			}
		}
	}
}
