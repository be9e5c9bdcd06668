package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tryon-chat-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPredictRequest() services.PredictRequest {
	return services.PredictRequest{
		PersonImage:        []byte("person"),
		GarmentImage:       []byte("garment"),
		GarmentDescription: "desc",
		UseAutoMask:        true,
		UseCrop:            false,
		DenoiseSteps:       30,
		Seed:               42,
	}
}

func TestGradioClient_PredictWithFileResult(t *testing.T) {
	var gotPayload map[string]any

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/run/tryon", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []any{map[string]string{"url": server.URL + "/result.png"}},
		})
	})
	mux.HandleFunc("/result.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("result-bytes"))
	})

	client := NewGradioClient(server.URL)
	result, err := client.Predict(context.Background(), testPredictRequest())
	require.NoError(t, err)
	assert.Equal(t, []byte("result-bytes"), result)

	// The request carries the fixed parameter tuple in call order.
	data, ok := gotPayload["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 7)
	assert.Equal(t, "desc", data[2])
	assert.Equal(t, true, data[3])
	assert.Equal(t, false, data[4])
	assert.Equal(t, float64(30), data[5])
	assert.Equal(t, float64(42), data[6])
}

func TestGradioClient_PredictWithInlineResult(t *testing.T) {
	inline := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("inline-bytes"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{inline}})
	}))
	defer server.Close()

	client := NewGradioClient(server.URL)
	result, err := client.Predict(context.Background(), testPredictRequest())
	require.NoError(t, err)
	assert.Equal(t, []byte("inline-bytes"), result)
}

func TestGradioClient_EmptyResultIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer server.Close()

	client := NewGradioClient(server.URL)
	_, err := client.Predict(context.Background(), testPredictRequest())
	assert.Error(t, err)
}

func TestGradioClient_ServerErrorIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewGradioClient(server.URL)
	_, err := client.Predict(context.Background(), testPredictRequest())
	assert.Error(t, err)
}
