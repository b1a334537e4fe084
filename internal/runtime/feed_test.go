package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nft-stake-vault/internal/domain"
)

func TestFeed_SubscribePublishCancel(t *testing.T) {
	f := NewFeed()
	a, cancelA := f.Subscribe()
	b, cancelB := f.Subscribe()
	assert.Equal(t, 2, f.Len())

	ev := domain.StakeEvent{TxID: "tx", Kind: domain.StakeEventUnstake, Reward: 5}
	assert.Zero(t, f.Publish(ev))
	assert.Equal(t, ev, <-a)
	assert.Equal(t, ev, <-b)

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open, "cancelled channel is closed")
	assert.Equal(t, 1, f.Len())
	cancelB()
	assert.Zero(t, f.Len())
}

func TestFeed_DropsWhenFull(t *testing.T) {
	f := NewFeed()
	_, cancel := f.Subscribe()
	defer cancel()

	for i := 0; i < feedBuffer; i++ {
		assert.Zero(t, f.Publish(domain.StakeEvent{EventIndex: i}))
	}
	assert.Equal(t, 1, f.Publish(domain.StakeEvent{}))
}
