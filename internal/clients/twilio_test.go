package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tryon-chat-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTwilioClient(apiBase string) *TwilioClient {
	client := NewTwilioClient(config.TwilioConfig{
		AccountSID:   "ACxxx",
		AuthToken:    "token",
		WhatsAppFrom: "whatsapp:+14155238886",
	})
	client.apiBase = apiBase
	return client
}

func TestTwilioClient_FetchUsesBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "ACxxx", user)
		assert.Equal(t, "token", pass)
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	client := newTestTwilioClient(server.URL)
	data, err := client.Fetch(context.Background(), server.URL+"/media/ME123")
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
}

func TestTwilioClient_FetchNon200IsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestTwilioClient(server.URL)
	_, err := client.Fetch(context.Background(), server.URL+"/media/ME123")
	assert.Error(t, err)
}

func TestTwilioClient_SendMedia(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/2010-04-01/Accounts/ACxxx/Messages.json", r.URL.Path)
		assert.Equal(t, "whatsapp:+14155238886", r.PostForm.Get("From"))
		assert.Equal(t, "whatsapp:+111", r.PostForm.Get("To"))
		assert.Equal(t, "Here is your virtual try-on result:", r.PostForm.Get("Body"))
		assert.Equal(t, "https://host/static/r.png", r.PostForm.Get("MediaUrl"))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"sid": "SM123"})
	}))
	defer server.Close()

	client := newTestTwilioClient(server.URL)
	err := client.SendMedia(context.Background(), "whatsapp:+111", "https://host/static/r.png", "Here is your virtual try-on result:")
	assert.NoError(t, err)
}

func TestTwilioClient_SendMediaFailureIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"unreachable"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestTwilioClient(server.URL)
	err := client.SendMedia(context.Background(), "whatsapp:+111", "https://host/x.png", "caption")
	assert.Error(t, err)
}
