package consumer

import (
	"context"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/meetingflow/logger"
)

type fakeReader struct {
	msgs      chan kafkago.Message
	errs      []error
	committed []kafkago.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafkago.Message{}, err
	}
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumer_FetchAndCommit(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafkago.Message, 1)}
	r.msgs <- kafkago.Message{Topic: "jobs", Offset: 7, Value: []byte(`{}`)}
	c := NewWithReader(r, "jobs", "g", logger.Nop())

	msg, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if msg.Offset != 7 {
		t.Errorf("offset = %d", msg.Offset)
	}
	if err := c.Commit(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if len(r.committed) != 1 {
		t.Errorf("expected 1 committed message, got %d", len(r.committed))
	}
}

func TestConsumer_FetchHonoursDeadline(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafkago.Message)}
	c := NewWithReader(r, "jobs", "g", logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Fetch(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestConsumer_FetchBacksOffOnReadError(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafkago.Message), errs: []error{fmt.Errorf("broker not available")}}
	c := NewWithReader(r, "jobs", "g", logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Fetch(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("expected deadline during backoff, got %v", err)
	}
	if c.failures != 1 {
		t.Errorf("failures = %d, want 1", c.failures)
	}
}
