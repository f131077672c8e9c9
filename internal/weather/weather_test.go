package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Buenos Aires", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"main": {"temp": 23.5, "humidity": 60},
			"weather": [{"description": "cielo claro"}]
		}`))
	}))
	defer srv.Close()

	c := New("test-key")
	c.base = srv.URL

	got, err := c.Current(context.Background(), "Buenos Aires")
	require.NoError(t, err)

	assert.Equal(t, Report{
		Location:    "Buenos Aires",
		Temperature: "23.5°C",
		Description: "cielo claro",
		Humidity:    "60%",
	}, got)
}

func TestCurrentMissingKey(t *testing.T) {
	c := New("")

	_, err := c.Current(context.Background(), "Buenos Aires")

	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCurrentUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"cod":"404","message":"city not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := New("test-key")
	c.base = srv.URL

	_, err := c.Current(context.Background(), "Nowhereville")
	assert.ErrorContains(t, err, "unexpected status 404")
}

func TestCurrentEmptyWeatherList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"main": {"temp": 10, "humidity": 80}, "weather": []}`))
	}))
	defer srv.Close()

	c := New("test-key")
	c.base = srv.URL

	got, err := c.Current(context.Background(), "Ushuaia")
	require.NoError(t, err)
	assert.Equal(t, "10°C", got.Temperature)
	assert.Empty(t, got.Description)
}
