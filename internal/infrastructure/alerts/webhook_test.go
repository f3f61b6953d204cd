package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketdata-service/internal/application"
	"marketdata-service/internal/domain"
	"marketdata-service/internal/infrastructure/httpx"
)

func TestNotify_PostsPayload(t *testing.T) {
	t.Parallel()
	var got message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := &WebhookNotifier{URL: srv.URL, Client: &httpx.Client{HTTP: srv.Client()}}
	err := n.Notify(context.Background(), application.Alert{
		Symbol:   "AAPL",
		DataType: domain.DataTypeUSStock,
		Reason:   "no valid price",
		At:       time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Contains(t, got.Text, "AAPL")
	require.Len(t, got.Attachments, 1)
	require.Equal(t, "danger", got.Attachments[0].Color)
	require.Equal(t, "no valid price", got.Attachments[0].Fields[2].Value)
}

func TestNotify_NoURLIsNoop(t *testing.T) {
	t.Parallel()
	n := &WebhookNotifier{}
	require.NoError(t, n.Notify(context.Background(), application.Alert{Symbol: "X"}))
}
