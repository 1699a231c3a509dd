package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

func TestInlineDispatcher_DeliversPendingOnClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sender := &fakeSender{}
	d := NewInlineDispatcher(newRenderer(t), sender, 4, nil)

	bad := invitation()
	bad.Kind = core.MessageKind("unknown")

	require.NoError(t, d.Enqueue(context.Background(), invitation()))
	require.NoError(t, d.Enqueue(context.Background(), bad))
	require.NoError(t, d.Enqueue(context.Background(), invitation()))
	d.Close()

	assert.Len(t, sender.sent, 2, "the unrenderable message is dropped")
	assert.ErrorIs(t, d.Enqueue(context.Background(), invitation()), ErrDispatcherClosed)

	d.Close()
}

func TestInlineDispatcher_SendFailureDoesNotStopDelivery(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewInlineDispatcher(newRenderer(t), &fakeSender{err: errors.New("smtp down")}, 1, nil)
	require.NoError(t, d.Enqueue(context.Background(), invitation()))
	require.NoError(t, d.Enqueue(context.Background(), invitation()))
	d.Close()
}
