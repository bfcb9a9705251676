package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmjh/portal-weather/internal/observability"
	"github.com/cmjh/portal-weather/internal/weather"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testSnapshot() weather.Snapshot {
	return weather.Snapshot{
		ID:        "snap-1",
		City:      "臺南市",
		FetchedAt: time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC),
		Sequence:  7,
		Days: []weather.DailySummary{
			{Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Condition: "多雲時晴", MinTemp: 26, MaxTemp: 33},
		},
	}
}

func TestSerializeToMessage(t *testing.T) {
	snap := testSnapshot()

	msg, err := serializeToMessage(snap)
	require.NoError(t, err)

	assert.Equal(t, []byte("臺南市"), msg.Key)
	assert.Contains(t, string(msg.Value), `"id":"snap-1"`)
	assert.NotContains(t, string(msg.Value), "Sequence")
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "snapshot_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("snap-1"), msg.Headers[0].Value)
	assert.Equal(t, "fetched_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-06-01T03:00:00Z"), msg.Headers[1].Value)
}

func TestPublish_Success(t *testing.T) {
	w := &fakeWriter{}
	m := observability.NewMetricsForTesting()
	p := newKafkaPublisher(w, m)

	require.NoError(t, p.Publish(context.Background(), testSnapshot()))

	assert.Len(t, w.msgs, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishedSnapshots.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PublishedSnapshots.WithLabelValues("error")))
}

func TestPublish_WriterError(t *testing.T) {
	boom := errors.New("broker unavailable")
	w := &fakeWriter{err: boom}
	m := observability.NewMetricsForTesting()
	p := newKafkaPublisher(w, m)

	err := p.Publish(context.Background(), testSnapshot())

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishedSnapshots.WithLabelValues("error")))
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, nil)
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
