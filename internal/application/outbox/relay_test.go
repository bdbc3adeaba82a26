package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/domain/events"
)

// ============================================
// Fakes
// ============================================

type fakeUoW struct {
	executed int
}

func (u *fakeUoW) Execute(ctx context.Context, fn func(context.Context) error) error {
	u.executed++
	return fn(ctx)
}

func (u *fakeUoW) ExecuteWithRetry(ctx context.Context, _ int, fn func(context.Context) error) error {
	return u.Execute(ctx, fn)
}

// fakeRepo mirrors the PostgreSQL outbox: a failed record stays pending with
// a bumped retry count until it reaches maxRetries, then it is abandoned.
type fakeRepo struct {
	mu         sync.Mutex
	pending    []ports.OutboxRecord
	published  []uuid.UUID
	failed     map[uuid.UUID]string
	abandoned  []uuid.UUID
	maxRetries int
	findErr    error
}

func newFakeRepo(records ...ports.OutboxRecord) *fakeRepo {
	return &fakeRepo{pending: records, failed: make(map[uuid.UUID]string), maxRetries: 5}
}

func (r *fakeRepo) Save(_ context.Context, event events.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, ports.OutboxRecord{
		ID:            event.EventID(),
		AggregateType: events.AggregateType(event.EventType()),
		AggregateID:   event.AggregateID(),
		EventType:     event.EventType(),
		Payload:       payload,
		CreatedAt:     event.OccurredAt(),
	})
	return nil
}

func (r *fakeRepo) FindUnpublished(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	n := min(limit, len(r.pending))
	out := append([]ports.OutboxRecord(nil), r.pending[:n]...)
	return out, nil
}

func (r *fakeRepo) MarkPublished(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, id)
	r.remove(id)
	return nil
}

func (r *fakeRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id] = reason
	for i := range r.pending {
		if r.pending[i].ID != id {
			continue
		}
		r.pending[i].RetryCount++
		if r.pending[i].RetryCount >= r.maxRetries {
			r.abandoned = append(r.abandoned, id)
			r.remove(id)
		}
		return nil
	}
	return nil
}

func (r *fakeRepo) remove(id uuid.UUID) {
	for i, rec := range r.pending {
		if rec.ID == id {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return
		}
	}
}

func (r *fakeRepo) counts() (pending, published, abandoned int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending), len(r.published), len(r.abandoned)
}

var _ ports.OutboxRepository = (*fakeRepo)(nil)

type sentMessage struct {
	subject string
	payload []byte
	headers map[string]string
}

type fakePublisher struct {
	PublishFn func(subject string) error
	mu        sync.Mutex
	sent      []sentMessage
	attempts  int
}

func (p *fakePublisher) Publish(_ context.Context, subject string, payload []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.PublishFn != nil {
		if err := p.PublishFn(subject); err != nil {
			return err
		}
	}
	p.sent = append(p.sent, sentMessage{subject: subject, payload: payload, headers: headers})
	return nil
}

func record(eventType string) ports.OutboxRecord {
	return ports.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "Order",
		AggregateID:   uuid.New(),
		EventType:     eventType,
		Payload:       []byte(`{"event_type":"` + eventType + `"}`),
		CreatedAt:     time.Now().UTC(),
	}
}

func prefixed(eventType string) string { return "marketbridge." + eventType }

// ============================================
// Tests
// ============================================

func TestNewRelay_RequiresDependencies(t *testing.T) {
	_, err := NewRelay(nil, newFakeRepo(), &fakePublisher{}, nil, Config{})
	assert.Error(t, err)

	_, err = NewRelay(&fakeUoW{}, nil, &fakePublisher{}, nil, Config{})
	assert.Error(t, err)

	_, err = NewRelay(&fakeUoW{}, newFakeRepo(), nil, nil, Config{})
	assert.Error(t, err)

	relay, err := NewRelay(&fakeUoW{}, newFakeRepo(), &fakePublisher{}, nil, Config{})
	require.NoError(t, err)
	assert.Equal(t, defaultBatchSize, relay.batchSize)
	assert.Equal(t, defaultPollInterval, relay.pollInterval)
	assert.Equal(t, "order.paid", relay.subject("order.paid"))
}

func TestRelay_ProcessBatch_PublishesAndMarks(t *testing.T) {
	created := record("order.created")
	paid := record("order.paid")
	repo := newFakeRepo(created, paid)
	pub := &fakePublisher{}
	uow := &fakeUoW{}

	relay, err := NewRelay(uow, repo, pub, nil, Config{Subject: prefixed})
	require.NoError(t, err)

	n, err := relay.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, uow.executed)
	assert.Equal(t, []uuid.UUID{created.ID, paid.ID}, repo.published)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "marketbridge.order.created", pub.sent[0].subject)
	assert.Equal(t, created.Payload, pub.sent[0].payload)
	assert.Equal(t, created.ID.String(), pub.sent[0].headers[HeaderMessageID])
	assert.Equal(t, "order.created", pub.sent[0].headers[HeaderEventType])
	assert.Equal(t, created.AggregateID.String(), pub.sent[0].headers[HeaderAggregateID])
}

func TestRelay_PublishesSavedEvent(t *testing.T) {
	repo := newFakeRepo()
	orderID := uuid.New()
	event := events.NewOrderCancelled(orderID, "changed my mind", "150.00")
	require.NoError(t, repo.Save(context.Background(), event))

	pub := &fakePublisher{}
	relay, err := NewRelay(&fakeUoW{}, repo, pub, nil, Config{Subject: prefixed})
	require.NoError(t, err)

	n, err := relay.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "marketbridge."+events.EventTypeOrderCancelled, pub.sent[0].subject)
	assert.Equal(t, event.EventID().String(), pub.sent[0].headers[HeaderMessageID])
	assert.Equal(t, orderID.String(), pub.sent[0].headers[HeaderAggregateID])
	assert.Contains(t, string(pub.sent[0].payload), "changed my mind")
}

func TestRelay_ProcessBatch_FailedPublishMarksFailed(t *testing.T) {
	ok := record("order.created")
	bad := record("order.cancelled")
	repo := newFakeRepo(ok, bad)
	pub := &fakePublisher{PublishFn: func(subject string) error {
		if subject == "order.cancelled" {
			return errors.New("nats: no servers available")
		}
		return nil
	}}

	relay, err := NewRelay(&fakeUoW{}, repo, pub, nil, Config{})
	require.NoError(t, err)

	n, err := relay.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []uuid.UUID{ok.ID}, repo.published)
	assert.Equal(t, "nats: no servers available", repo.failed[bad.ID])
	require.Len(t, repo.pending, 1)
	assert.Equal(t, 1, repo.pending[0].RetryCount)
}

func TestRelay_ProcessBatch_RetriesUntilLimit(t *testing.T) {
	bad := record("order.cancelled")
	repo := newFakeRepo(bad)
	repo.maxRetries = 3
	pub := &fakePublisher{PublishFn: func(string) error { return errors.New("nats: timeout") }}

	relay, err := NewRelay(&fakeUoW{}, repo, pub, nil, Config{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		n, err := relay.ProcessBatch(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	pending, published, abandoned := repo.counts()
	assert.Zero(t, pending)
	assert.Zero(t, published)
	assert.Equal(t, 1, abandoned)
}

func TestRelay_ProcessBatch_RespectsBatchSize(t *testing.T) {
	repo := newFakeRepo(record("a"), record("b"), record("c"))

	relay, err := NewRelay(&fakeUoW{}, repo, &fakePublisher{}, nil, Config{BatchSize: 2})
	require.NoError(t, err)

	n, err := relay.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, repo.pending, 1)
}

func TestRelay_ProcessBatch_StoreError(t *testing.T) {
	repo := newFakeRepo()
	repo.findErr = errors.New("connection refused")

	relay, err := NewRelay(&fakeUoW{}, repo, &fakePublisher{}, nil, Config{})
	require.NoError(t, err)

	n, err := relay.ProcessBatch(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRelay_Run_DrainsUntilCancelled(t *testing.T) {
	repo := newFakeRepo(record("a"), record("b"), record("c"))

	relay, err := NewRelay(&fakeUoW{}, repo, &fakePublisher{}, nil, Config{
		BatchSize:    2,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.published) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}

func TestRelay_Run_BacksOffWhilePublisherIsDown(t *testing.T) {
	records := make([]ports.OutboxRecord, 0, 20)
	for i := 0; i < 20; i++ {
		records = append(records, record("order.created"))
	}
	repo := newFakeRepo(records...)
	pub := &fakePublisher{PublishFn: func(string) error { return errors.New("nats: no servers available") }}

	relay, err := NewRelay(&fakeUoW{}, repo, pub, nil, Config{
		BatchSize:    10,
		PollInterval: time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = relay.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pending, published, abandoned := repo.counts()
	assert.Equal(t, 20, pending)
	assert.Zero(t, published)
	assert.Zero(t, abandoned)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, 10, pub.attempts, "only the first batch is attempted before the pause")
}

func TestRelay_Run_RecoversAfterPublisherReturns(t *testing.T) {
	repo := newFakeRepo(record("a"), record("b"))
	var down sync.Mutex
	failing := true
	pub := &fakePublisher{PublishFn: func(string) error {
		down.Lock()
		defer down.Unlock()
		if failing {
			return errors.New("nats: no servers available")
		}
		return nil
	}}

	relay, err := NewRelay(&fakeUoW{}, repo, pub, nil, Config{
		BatchSize:    2,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return pub.attempts >= 2
	}, time.Second, 5*time.Millisecond)

	down.Lock()
	failing = false
	down.Unlock()

	require.Eventually(t, func() bool {
		_, published, _ := repo.counts()
		return published == 2
	}, 2*time.Second, 5*time.Millisecond)

	_, _, abandoned := repo.counts()
	assert.Zero(t, abandoned)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

type cleaningRepo struct {
	*fakeRepo
	olderThan time.Duration
	removed   int64
	err       error
}

func (r *cleaningRepo) CleanupPublished(_ context.Context, olderThan time.Duration) (int64, error) {
	r.olderThan = olderThan
	return r.removed, r.err
}

func TestRelay_Cleanup(t *testing.T) {
	t.Run("removes rows older than retention", func(t *testing.T) {
		repo := &cleaningRepo{fakeRepo: newFakeRepo(), removed: 7}
		relay, err := NewRelay(&fakeUoW{}, repo, &fakePublisher{}, nil, Config{Retention: 48 * time.Hour})
		require.NoError(t, err)

		n, err := relay.Cleanup(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
		assert.Equal(t, 48*time.Hour, repo.olderThan)
	})

	t.Run("zero retention keeps everything", func(t *testing.T) {
		repo := &cleaningRepo{fakeRepo: newFakeRepo(), removed: 7}
		relay, err := NewRelay(&fakeUoW{}, repo, &fakePublisher{}, nil, Config{})
		require.NoError(t, err)

		n, err := relay.Cleanup(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, repo.olderThan)
	})

	t.Run("store without cleanup is skipped", func(t *testing.T) {
		relay, err := NewRelay(&fakeUoW{}, newFakeRepo(), &fakePublisher{}, nil, Config{Retention: time.Hour})
		require.NoError(t, err)

		n, err := relay.Cleanup(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("store error is wrapped", func(t *testing.T) {
		repo := &cleaningRepo{fakeRepo: newFakeRepo(), err: errors.New("disk full")}
		relay, err := NewRelay(&fakeUoW{}, repo, &fakePublisher{}, nil, Config{Retention: time.Hour})
		require.NoError(t, err)

		_, err = relay.Cleanup(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}
