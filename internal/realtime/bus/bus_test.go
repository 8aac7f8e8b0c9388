package bus

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime"
)

func TestLocalBusFansOutToForwarders(t *testing.T) {
	b := NewLocalBus()
	ctx := context.Background()

	var first, second []realtime.Event
	require.NoError(t, b.StartForwarder(ctx, func(ev realtime.Event) { first = append(first, ev) }))
	require.NoError(t, b.StartForwarder(ctx, func(ev realtime.Event) { second = append(second, ev) }))
	require.Error(t, b.StartForwarder(ctx, nil))

	ev := realtime.NewConversationEvent(uuid.New(), realtime.EventConversationTurn, map[string]any{"phase": "greeting"})
	require.NoError(t, b.Publish(ctx, ev))

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, ev.Channel, first[0].Channel)
	assert.Equal(t, "greeting", second[0].Data["phase"])
	assert.NoError(t, b.Close())
}

func TestNewRedisBusRequiresClient(t *testing.T) {
	_, err := NewRedisBus(nil, "", nil)
	assert.Error(t, err)
}
