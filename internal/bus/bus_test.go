package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishInvokesInSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		b.Subscribe(TopicMarketData, func(any) { order = append(order, i) })
	}
	b.Publish(TopicMarketData, nil)
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPublishPassesPayloadPointer(t *testing.T) {
	b := New()
	payload := &struct{ v int }{v: 7}
	var got any
	b.Subscribe(TopicKline, func(p any) { got = p })
	b.Publish(TopicKline, payload)
	require.Same(t, payload, got)
}

func TestPublishUnsubscribedTopicIsNoop(t *testing.T) {
	b := New()
	b.Publish(TopicSignal, nil)
}

func TestClearDropsAllHandlers(t *testing.T) {
	b := New()
	calls := 0
	for topic := _topicBeg + 1; topic < _topicEnd; topic++ {
		b.Subscribe(topic, func(any) { calls++ })
	}
	b.Clear()
	for topic := _topicBeg + 1; topic < _topicEnd; topic++ {
		b.Publish(topic, nil)
	}
	require.Zero(t, calls, "publish after clear must invoke zero handlers")
}

func TestSubscribeDuringDispatchDoesNotAffectCurrentPublish(t *testing.T) {
	b := New()
	calls := 0
	b.Subscribe(TopicMarketData, func(any) {
		calls++
		if calls == 1 {
			b.Subscribe(TopicMarketData, func(any) { calls += 100 })
		}
	})
	b.Publish(TopicMarketData, nil)
	require.Equal(t, 1, calls, "handlers added mid-dispatch join the next publish")

	b.Publish(TopicMarketData, nil)
	require.Equal(t, 102, calls)
}

func TestTopicNames(t *testing.T) {
	require.Equal(t, "MARKET_DATA", TopicMarketData.String())
	require.Equal(t, "RTN_RAW_TRADE", TopicRtnRawTrade.String())
	require.False(t, Topic(0).IsAvailable())
	require.False(t, _topicEnd.IsAvailable())
}
