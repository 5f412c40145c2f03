package mqtt

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timfel/ha-display/internal/config"
)

func TestClientIDDefaultsToUnique(t *testing.T) {
	a := NewClient(config.MQTTConfig{Broker: "localhost", Port: 1883, Topic: "p"}, zerolog.Nop())
	b := NewClient(config.MQTTConfig{Broker: "localhost", Port: 1883, Topic: "p"}, zerolog.Nop())
	assert.True(t, strings.HasPrefix(a.cfg.ClientID, "ha-display-"))
	assert.NotEqual(t, a.cfg.ClientID, b.cfg.ClientID)

	c := NewClient(config.MQTTConfig{ClientID: "kitchen-panel"}, zerolog.Nop())
	assert.Equal(t, "kitchen-panel", c.cfg.ClientID)
}

func TestPublishQueuesMessages(t *testing.T) {
	c := NewClient(config.MQTTConfig{Broker: "localhost", Port: 1883, Topic: "ha-display"}, zerolog.Nop())

	c.PublishPage("AIRPLAY")
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.PublishAction(Event{Page: "AIRPLAY", Action: "activate", Scene: "turn_on_airplay_2", Success: true, Timestamp: ts})

	m := <-c.queue
	assert.Equal(t, "ha-display/page", m.topic)
	assert.Equal(t, "AIRPLAY", string(m.payload))
	assert.True(t, m.retained)

	m = <-c.queue
	assert.Equal(t, "ha-display/action", m.topic)
	assert.False(t, m.retained)
	var got Event
	require.NoError(t, json.Unmarshal(m.payload, &got))
	assert.Equal(t, "turn_on_airplay_2", got.Scene)
	assert.True(t, got.Success)
}

func TestFullQueueDrops(t *testing.T) {
	c := NewClient(config.MQTTConfig{Topic: "t"}, zerolog.Nop())
	for i := 0; i < cap(c.queue)+10; i++ {
		c.PublishPage("MOVIE_ON")
	}
	assert.Len(t, c.queue, cap(c.queue))
}
