package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.Init("test")
}

func TestProducer_Publish(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Type != TypeRiskAssessed || e.Key != "fp-1" {
			return errors.New("unexpected event")
		}
		return nil
	})

	p := NewProducerWith(sp, "payment-risk-events")
	defer p.Close()

	err := p.Publish(context.Background(), NewEvent(TypeRiskAssessed, "fp-1", map[string]any{"score": 12}))
	require.NoError(t, err)
}

func TestProducer_PublishFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(errors.New("broker down"))

	p := NewProducerWith(sp, "payment-risk-events")
	defer p.Close()

	err := p.Publish(context.Background(), NewEvent(TypeRefundCompleted, "ch_1", nil))
	assert.ErrorContains(t, err, "broker down")
}

func TestProducer_MockMode(t *testing.T) {
	p, err := NewProducer(nil, "payment-risk-events", true)
	require.NoError(t, err)

	assert.NoError(t, p.Publish(context.Background(), NewEvent(TypeAuthorizationCompleted, "auth", nil)))
	assert.NoError(t, p.Close())
}

func TestProducer_CancelledContext(t *testing.T) {
	p, _ := NewProducer(nil, "t", true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Publish(ctx, NewEvent(TypeRiskAssessed, "k", nil)), context.Canceled)
}
