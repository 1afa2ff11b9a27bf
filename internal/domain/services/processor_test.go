package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lrx-radar/pkg/logger"
)

// fakeQueue drains a fixed message list, then reports empty polls
type fakeQueue struct {
	messages [][]byte
}

func (q *fakeQueue) Pop(context.Context) ([]byte, error) {
	if len(q.messages) == 0 {
		return nil, nil
	}
	msg := q.messages[0]
	q.messages = q.messages[1:]
	return msg, nil
}

func TestProcessorRoutesByType(t *testing.T) {
	n, threats, _, atos, dmarcs := newTestNormalizer()
	q := &fakeQueue{}
	q.messages = append(q.messages,
		[]byte(`{"type": "threat_event", "indicator_value": "paypa1-login.com", "brand_target": "Paypal", "confidence": 80}`),
		[]byte(`{"type": "ato_event", "user_email": "j.doe@paypal.com", "risk_score": 90}`),
		[]byte(`{"type": "dmarc_report", "domain": "paypal.com", "disposition": "reject", "msg_count": 12}`),
	)
	p := NewProcessor(q, n, logger.NewDevelopment())

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Run(context.Background(), true))
	}

	assert.Len(t, threats.byHash, 1)
	assert.Len(t, atos.events, 1)
	assert.Len(t, dmarcs.reports, 1)
}

func TestProcessorDropsMalformedMessages(t *testing.T) {
	n, threats, _, _, _ := newTestNormalizer()
	q := &fakeQueue{messages: [][]byte{
		[]byte("not json"),
		[]byte(`{"type": "mystery_event"}`),
		[]byte(`{"type": "threat_event", "confidence": 150}`),
		[]byte(`{"type": "threat_event", "indicator_value": "ok.com"}`),
	}}
	p := NewProcessor(q, n, logger.NewDevelopment())

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Run(context.Background(), true))
	}

	assert.Len(t, threats.byHash, 1, "only the valid message is stored")
}

func TestProcessorIngestsSparseMessages(t *testing.T) {
	n, threats, _, _, _ := newTestNormalizer()
	q := &fakeQueue{messages: [][]byte{
		[]byte(`{"type": "threat_event", "source": "seed"}`),
	}}
	p := NewProcessor(q, n, logger.NewDevelopment())

	require.NoError(t, p.Run(context.Background(), true))

	require.Len(t, threats.byHash, 1, "missing fields default, the message is not dropped")
	for _, event := range threats.byHash {
		assert.Equal(t, "unknown", event.IndicatorValue)
		assert.Equal(t, 50, event.Confidence)
	}
}

func TestProcessorOnceReturnsOnEmptyPoll(t *testing.T) {
	n, _, _, _, _ := newTestNormalizer()
	p := NewProcessor(&fakeQueue{}, n, logger.NewDevelopment())

	assert.NoError(t, p.Run(context.Background(), true))
}

func TestProcessorStopsOnCancel(t *testing.T) {
	n, _, _, _, _ := newTestNormalizer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewProcessor(&fakeQueue{}, n, logger.NewDevelopment())

	err := p.Run(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
}
