package rabbitmq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestMessage(t *testing.T) {
	ts := time.Date(2025, time.August, 1, 12, 0, 0, 0, time.UTC)
	m := domain.Manifest{
		RunID:        "0b7c1a52-5d7e-4a4c-9a57-1f0f4b1c2d3e",
		RunTimestamp: ts,
		Source:       "generator",
		Shape:        domain.Shape{Rows: 200, Columns: len(domain.Columns)},
		Summary:      domain.Summary{Rows: 200, OnTime: 150, Delayed: 50},
	}

	msg, err := manifestMessage(m)
	require.NoError(t, err)

	assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, m.RunID, msg.MessageId)
	assert.Equal(t, ts, msg.Timestamp)
	assert.Equal(t, int64(200), msg.Headers["rows"])
	assert.Equal(t, int64(50), msg.Headers["delayed"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, m.RunID, decoded["run_id"])
	assert.Equal(t, "generator", decoded["source"])
}

func TestDial_InvalidURL(t *testing.T) {
	_, err := Dial("not-a-url", "courier.etl", nil)
	assert.Error(t, err)
}
