package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (r *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	r.msgs = append(r.msgs, msgs...)
	return nil
}

func (r *recordingWriter) Close() error {
	r.closed = true
	return nil
}

func TestPublishPurchase(t *testing.T) {
	w := &recordingWriter{}
	b := &Bus{Topic: "myxl.purchases", w: w}

	ev := NewPurchaseEvent("tx-9", "QRIS", "PKG1", 25000, "", 6281234567890)
	require.NoError(t, b.PublishPurchase(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "tx-9", string(w.msgs[0].Key))

	var got PurchaseEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, ev.EventID, got.EventID)
	assert.Equal(t, int64(6281234567890), got.Subscriber)
	assert.NotEmpty(t, got.EventID)

	require.NoError(t, b.Close())
	assert.True(t, w.closed)
}

func TestNewPurchaseEventIDsDiffer(t *testing.T) {
	a := NewPurchaseEvent("tx", "DANA", "P", 1, "0812", 1)
	b := NewPurchaseEvent("tx", "DANA", "P", 1, "0812", 1)
	assert.NotEqual(t, a.EventID, b.EventID)
}
