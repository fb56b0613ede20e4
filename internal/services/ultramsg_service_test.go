package services

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUltraMsgSendText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inst1/messages/chat", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok", r.PostForm.Get("token"))
		assert.Equal(t, "+919588423093", r.PostForm.Get("to"))
		assert.Equal(t, "hello", r.PostForm.Get("body"))
		assert.Equal(t, "10", r.PostForm.Get("priority"))
		_, _ = w.Write([]byte(`{"sent":"true","message":"ok","id":7}`))
	}))
	defer ts.Close()

	svc := NewUltraMsgService(UltraMsgConfig{Instance: "inst1", Token: "tok", BaseURL: ts.URL})
	ack, err := svc.SendText(t.Context(), "+919588423093", "hello", WithPriority("10"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, ack.StatusCode)
}

func TestUltraMsgErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Error":"wrong token"}`))
	}))
	defer ts.Close()

	svc := NewUltraMsgService(UltraMsgConfig{Instance: "inst1", Token: "bad", BaseURL: ts.URL})
	_, err := svc.SendText(t.Context(), "+919588423093", "hello")
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusOK, terr.StatusCode)
}

func TestUltraMsgNon2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	svc := NewUltraMsgService(UltraMsgConfig{Instance: "inst1", Token: "tok", BaseURL: ts.URL})
	_, err := svc.SendDocument(t.Context(), "+919588423093", "https://files/x.pdf", "invoice_1.pdf", "Invoice #1")
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusBadGateway, terr.StatusCode)
}

func TestUltraMsgTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	svc := NewUltraMsgService(UltraMsgConfig{Instance: "inst1", Token: "tok", BaseURL: ts.URL})
	_, err := svc.SendText(t.Context(), "+919588423093", "hello")
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Error(t, terr.Err)
}
