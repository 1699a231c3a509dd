package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

func TestPublisher_Enqueue(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "")
	msg := invitation()

	require.NoError(t, p.Enqueue(context.Background(), msg))

	pub := ch.publishedCopy()
	require.Len(t, pub, 1)
	assert.Equal(t, amqp.Persistent, pub[0].DeliveryMode)
	assert.Equal(t, "application/json", pub[0].ContentType)
	assert.Equal(t, msg.ID.String(), pub[0].MessageId)
	assert.Equal(t, "invitation", pub[0].Type)

	var got core.Message
	require.NoError(t, json.Unmarshal(pub[0].Body, &got))
	assert.Equal(t, msg.InvitationToken, got.InvitationToken)
	assert.Equal(t, msg.To, got.To)
}

func TestPublisher_EnqueueError(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("connection closed")}
	err := NewPublisher(ch, "q").Enqueue(context.Background(), invitation())
	assert.ErrorContains(t, err, "publish invitation to q")
}
