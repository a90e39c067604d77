package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
)

func TestFeed_SingleSubscription(t *testing.T) {
	feed := NewFeed()

	unsubscribe, err := feed.Subscribe(func(Sample) {})
	require.NoError(t, err)
	assert.True(t, feed.Subscribed())

	_, err = feed.Subscribe(func(Sample) {})
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	unsubscribe()
	assert.False(t, feed.Subscribed())

	_, err = feed.Subscribe(func(Sample) {})
	assert.NoError(t, err, "a new subscription is allowed after unsubscribe")
}

func TestFeed_PublishInOrder(t *testing.T) {
	feed := NewFeed()
	assert.False(t, feed.Publish(Sample{}), "no subscriber")

	var got []Sample
	unsubscribe, err := feed.Subscribe(func(s Sample) { got = append(got, s) })
	require.NoError(t, err)

	now := time.Now()
	for i := 0; i < 3; i++ {
		assert.True(t, feed.Publish(Sample{
			Coordinate:     geo.Coordinate{Lon: float64(i), Lat: 1},
			AccuracyMeters: Accuracy(5),
			Timestamp:      now.Add(time.Duration(i) * time.Second),
		}))
	}

	require.Len(t, got, 3)
	for i, s := range got {
		assert.Equal(t, float64(i), s.Coordinate.Lon)
		assert.Equal(t, 5.0, *s.AccuracyMeters)
	}

	unsubscribe()
	assert.False(t, feed.Publish(Sample{}))
	assert.Len(t, got, 3)
}

func TestFeed_StaleUnsubscribeIsNoop(t *testing.T) {
	feed := NewFeed()

	first, err := feed.Subscribe(func(Sample) {})
	require.NoError(t, err)
	first()

	_, err = feed.Subscribe(func(Sample) {})
	require.NoError(t, err)

	// Calling the old unsubscribe again must not detach the new subscriber
	first()
	assert.True(t, feed.Subscribed())
}
