package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getAlby/lnledger/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ziflex/lecho/v3"
)

func TestNewNotifier(t *testing.T) {
	logger := lecho.New(io.Discard)

	n, err := NewNotifier(&Config{}, logger, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	_, err = NewNotifier(&Config{Notifier: "webhook"}, logger, nil)
	assert.Error(t, err)
	_, err = NewNotifier(&Config{Notifier: "rabbitmq"}, logger, nil)
	assert.Error(t, err)
	_, err = NewNotifier(&Config{Notifier: "kafka"}, logger, nil)
	assert.Error(t, err)
	_, err = NewNotifier(&Config{Notifier: "pigeon"}, logger, nil)
	assert.Error(t, err)

	n, err = NewNotifier(&Config{Notifier: "kafka", KafkaBrokers: "localhost:9092, localhost:9093", KafkaTopic: "events"}, logger, nil)
	require.NoError(t, err)
	assert.IsType(t, &KafkaNotifier{}, n)
}

func TestWebhookNotifier(t *testing.T) {
	received := make(chan Notification, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var notification Notification
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&notification))
		received <- notification
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n, err := NewNotifier(&Config{Notifier: "webhook", WebhookUrl: server.URL}, lecho.New(io.Discard), nil)
	require.NoError(t, err)
	require.NoError(t, n.Notify(context.Background(), 42, common.NotificationInvoicePaid, map[string]interface{}{"amount": 1000}))

	notification := <-received
	assert.Equal(t, int64(42), notification.UserID)
	assert.Equal(t, common.NotificationInvoicePaid, notification.Kind)
	assert.NotEmpty(t, notification.ID)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	assert.Error(t, NewWebhookNotifier(failing.URL).Notify(context.Background(), 1, "x", nil))
}
