package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseIncomingMessageText(t *testing.T) {
	form := url.Values{}
	form.Set("MessageSid", "SM001")
	form.Set("From", "whatsapp:+255700000001")
	form.Set("To", "whatsapp:+14155238886")
	form.Set("Body", "sprayed BioGuard on tomatoes")
	form.Set("NumMedia", "0")
	form.Set("ProfileName", "Amina")

	msg := ParseIncomingMessage(form)
	assert.Equal(t, "SM001", msg.MessageSID)
	assert.Equal(t, "whatsapp:+255700000001", msg.From)
	assert.Equal(t, "sprayed BioGuard on tomatoes", msg.Body)
	assert.Equal(t, "Amina", msg.ProfileName)
	assert.False(t, msg.IsVoice())
	assert.Empty(t, msg.MediaURL)
}

func TestParseIncomingMessageVoice(t *testing.T) {
	form := url.Values{}
	form.Set("MessageSid", "SM002")
	form.Set("From", "whatsapp:+255700000001")
	form.Set("NumMedia", "1")
	form.Set("MediaUrl0", "https://api.twilio.com/media/ME001")
	form.Set("MediaContentType0", "audio/ogg")

	msg := ParseIncomingMessage(form)
	assert.True(t, msg.IsVoice())
	assert.Equal(t, "https://api.twilio.com/media/ME001", msg.MediaURL)
}

func TestSendReplyPostsForm(t *testing.T) {
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sid": "SM100"}`))
	}))
	defer server.Close()

	client := NewTwilioClient(server.URL, "AC123", "token", "whatsapp:+14155238886", zap.NewNop())
	err := client.SendReply(context.Background(), "whatsapp:+255700000001", "Thank you Amina")
	require.NoError(t, err)

	assert.Equal(t, "whatsapp:+14155238886", gotForm.Get("From"))
	assert.Equal(t, "whatsapp:+255700000001", gotForm.Get("To"))
	assert.Equal(t, "Thank you Amina", gotForm.Get("Body"))
}

func TestSendReplyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "invalid number", "code": 21211}`))
	}))
	defer server.Close()

	client := NewTwilioClient(server.URL, "AC123", "token", "whatsapp:+14155238886", zap.NewNop())
	err := client.SendReply(context.Background(), "bad", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid number")
}

func TestDownloadMedia(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ogg-bytes"))
	}))
	defer server.Close()

	client := NewTwilioClient("https://unused.example.com", "AC123", "token", "whatsapp:+14155238886", zap.NewNop())
	data, err := client.DownloadMedia(context.Background(), server.URL+"/media/ME001")
	require.NoError(t, err)
	assert.Equal(t, []byte("ogg-bytes"), data)
}
