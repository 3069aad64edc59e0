package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agribusiness-pro/apiserver/config"
)

func TestMQ_PublishJSONThenSubscribe(t *testing.T) {
	backend := NewMemoryBackend()
	queue := New(backend)

	_, err := queue.PublishJSON(context.Background(), ChannelVerification, map[string]string{"email": "test@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.Pending(ChannelVerification))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	received := make(chan Message, 1)
	go func() {
		_ = queue.Subscribe(ctx, ChannelVerification, func(ctx context.Context, msg Message) error {
			received <- msg
			return nil
		})
	}()

	select {
	case msg := <-received:
		assert.Equal(t, "application/json", msg.Attributes["content-type"])
		var body map[string]string
		require.NoError(t, json.Unmarshal(msg.Data, &body))
		assert.Equal(t, "test@example.com", body["email"])
	case <-ctx.Done():
		t.Fatal("message was not delivered")
	}
}

func TestMemoryBackend_RedeliversOnHandlerError(t *testing.T) {
	backend := NewMemoryBackend()
	_, err := backend.Publish(context.Background(), "c", []byte("x"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	attempts := 0
	done := make(chan struct{})
	go func() {
		_ = backend.Subscribe(ctx, "c", func(ctx context.Context, msg Message) error {
			attempts++
			if attempts < 2 {
				return errors.New("try again")
			}
			close(done)
			return nil
		})
	}()

	select {
	case <-done:
		assert.Equal(t, 2, attempts)
	case <-ctx.Done():
		t.Fatal("message was not redelivered")
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.ErrorContains(t, err, "unknown mq backend")
}

func TestHeadersToAttributes(t *testing.T) {
	attrs := headersToAttributes(amqp091.Table{"a": "x", "b": []byte("y"), "c": int32(3)})
	assert.Equal(t, map[string]string{"a": "x", "b": "y", "c": "3"}, attrs)
	assert.Nil(t, headersToAttributes(nil))
}
