package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/pm25-intent/internal/location"
	"github.com/smukkama/pm25-intent/internal/protocol"
)

type published struct {
	key   string
	value []byte
}

type mockPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (m *mockPublisher) Publish(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, published{key, value})
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequester_RequestDevice(t *testing.T) {
	pub := &mockPublisher{}
	r := NewRequester(pub)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	if err := r.RequestDevice(context.Background(), "phone-1", location.RequestFix); err != nil {
		t.Fatalf("RequestDevice err = %v", err)
	}
	if err := r.RequestDevice(context.Background(), "phone-1", location.RequestFix); err != nil {
		t.Fatalf("RequestDevice err = %v", err)
	}

	if len(pub.msgs) != 2 {
		t.Fatalf("published = %d; want 2", len(pub.msgs))
	}
	if pub.msgs[0].key != "phone-1" {
		t.Errorf("key = %s; want phone-1", pub.msgs[0].key)
	}

	first, err := protocol.DecodeLocationRequest(pub.msgs[0].value)
	if err != nil {
		t.Fatalf("decode err = %v", err)
	}
	second, _ := protocol.DecodeLocationRequest(pub.msgs[1].value)
	if first.Kind != location.RequestFix || !first.RequestedAt.Equal(now) {
		t.Errorf("request = %+v", first)
	}
	if first.RequestID == "" || first.RequestID == second.RequestID {
		t.Errorf("request ids = %q, %q; want unique", first.RequestID, second.RequestID)
	}
}

func TestRequester_PublishError(t *testing.T) {
	boom := errors.New("broker down")
	r := NewRequester(&mockPublisher{err: boom})
	if err := r.RequestDevice(context.Background(), "phone-1", location.RequestAuthorization); !errors.Is(err, boom) {
		t.Errorf("err = %v; want wrapped broker error", err)
	}
}

type mockSource struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (m *mockSource) Consume(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-m.msgs:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (m *mockSource) Commit(_ context.Context, msg kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msg.Offset)
	return nil
}

func (m *mockSource) commits() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.committed...)
}

type mockDeliverer struct {
	mu        sync.Mutex
	delivered []*protocol.LocationRequest
	connected map[string]bool
}

func (m *mockDeliverer) Deliver(_ context.Context, req *protocol.LocationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected[req.DeviceID] {
		return ErrDeviceNotConnected
	}
	m.delivered = append(m.delivered, req)
	return nil
}

func (m *mockDeliverer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivered)
}

func encode(t *testing.T, req *protocol.LocationRequest) []byte {
	t.Helper()
	data, err := protocol.EncodeLocationRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestDispatcher(t *testing.T) {
	now := time.Now()
	src := &mockSource{msgs: make(chan kafka.Message, 10)}
	del := &mockDeliverer{connected: map[string]bool{"phone-1": true}}

	src.msgs <- kafka.Message{Offset: 1, Value: encode(t, &protocol.LocationRequest{RequestID: "a", DeviceID: "phone-1", Kind: location.RequestFix, RequestedAt: now})}
	src.msgs <- kafka.Message{Offset: 2, Value: encode(t, &protocol.LocationRequest{RequestID: "b", DeviceID: "offline", Kind: location.RequestFix, RequestedAt: now})}
	src.msgs <- kafka.Message{Offset: 3, Value: encode(t, &protocol.LocationRequest{RequestID: "c", DeviceID: "phone-1", Kind: location.RequestFix, RequestedAt: now.Add(-time.Hour)})}
	src.msgs <- kafka.Message{Offset: 4, Value: []byte("garbage")}
	src.msgs <- kafka.Message{Offset: 5, Value: encode(t, &protocol.LocationRequest{RequestID: "d", DeviceID: "phone-1", Kind: location.RequestAuthorization, RequestedAt: now})}

	d := NewDispatcher(src, del, time.Minute, quietLogger())
	d.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for len(src.commits()) < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	d.Stop()

	if got := src.commits(); len(got) != 5 {
		t.Fatalf("commits = %v; want all 5 offsets", got)
	}
	if del.count() != 2 {
		t.Fatalf("delivered = %d; want 2", del.count())
	}
	if del.delivered[0].RequestID != "a" || del.delivered[1].RequestID != "d" {
		t.Errorf("delivered = %s, %s; want a, d", del.delivered[0].RequestID, del.delivered[1].RequestID)
	}
}

func TestDispatcher_StopIsIdempotent(t *testing.T) {
	d := NewDispatcher(&mockSource{msgs: make(chan kafka.Message)}, &mockDeliverer{}, 0, quietLogger())
	d.Start(context.Background())
	d.Stop()
	d.Stop()
}
