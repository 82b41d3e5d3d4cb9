package services

import (
	"context"
	"sync"

	"github.com/CyberwizD/notification-ingest/internal/models"
)

// serialQueue runs submitted tasks on background goroutines, one at a time, in
// submission order. Go never blocks the caller.
type serialQueue struct {
	mu   sync.Mutex
	tail chan struct{}
	wg   sync.WaitGroup
}

func (q *serialQueue) Go(fn func()) {
	q.mu.Lock()
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		fn()
	}()
}

// Wait blocks until every submitted task has run.
func (q *serialQueue) Wait() {
	q.wg.Wait()
}

// orderedInbox applies inbox writes in the order they were issued, so a mark-read
// can never land before the record it marks. Failures go to the reporter.
type orderedInbox struct {
	inner    Inbox
	reporter Reporter
	queue    serialQueue
}

func newOrderedInbox(inner Inbox, reporter Reporter) *orderedInbox {
	if o, ok := inner.(*orderedInbox); ok {
		return o
	}
	return &orderedInbox{inner: inner, reporter: reporter}
}

func (o *orderedInbox) Record(ctx context.Context, n models.IncomingNotification) error {
	ctx = context.WithoutCancel(ctx)
	o.queue.Go(func() {
		if err := o.inner.Record(ctx, n); err != nil {
			o.reporter.Report(ctx, "inbox.record", ErrStorage, err)
		}
	})
	return nil
}

func (o *orderedInbox) MarkRead(ctx context.Context, id string) error {
	ctx = context.WithoutCancel(ctx)
	o.queue.Go(func() {
		if err := o.inner.MarkRead(ctx, id); err != nil {
			o.reporter.Report(ctx, "inbox.mark_read", ErrStorage, err)
		}
	})
	return nil
}

// Wait blocks until queued writes have been applied.
func (o *orderedInbox) Wait() {
	o.queue.Wait()
}
