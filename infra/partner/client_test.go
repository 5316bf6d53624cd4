package partner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNearbyPartners(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/stations/ST001/offers", r.URL.Path)
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"offers":[
			{"partner_id":"cafe-1","name":"Corner Cafe","type":"cafe","distance_m":120,"avg_duration_min":25},
			{"partner_id":"gym-1","name":"FlexGym","type":"gym","distance_m":300,"avg_duration_min":45}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key"})
	offers, err := c.NearbyPartners(context.Background(), "ST001")
	require.NoError(t, err)
	require.Len(t, offers, 2)
	require.Equal(t, "cafe-1", offers[0].PartnerID)
	require.Equal(t, 25.0, offers[0].DurationMin)
}

func TestNearbyPartnersCapsOffers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"offers":[{"partner_id":"a"},{"partner_id":"b"},{"partner_id":"c"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, MaxOffers: 2})
	offers, err := c.NearbyPartners(context.Background(), "ST001")
	require.NoError(t, err)
	require.Len(t, offers, 2)
}

func TestNearbyPartnersErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.NearbyPartners(context.Background(), "ST001")
	require.Error(t, err)
}

func TestNearbyPartnersRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"offers":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.NearbyPartners(ctx, "ST001")
	require.Error(t, err)
}
