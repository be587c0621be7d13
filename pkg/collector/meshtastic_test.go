package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/lease"
	"github.com/meshforge/meshforge-maps/pkg/model"
	"github.com/meshforge/meshforge-maps/pkg/nodestore"
)

func TestMeshtasticPollPrefersStore(t *testing.T) {
	store := nodestore.New(nodestore.Config{})
	store.Upsert(model.Feature{
		ID: "deadbeef",
		Properties: map[string]interface{}{
			model.PropNetwork: string(model.NetworkMeshtastic),
		},
	})

	// The endpoint must never be contacted when the store has nodes.
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := NewMeshtasticCollector(store, srv.URL, nil, 10*time.Second)
	result, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(result.Features) != 1 || result.Features[0].ID != "deadbeef" {
		t.Fatalf("unexpected result %+v", result)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatal("HTTP fallback was contacted despite populated store")
	}
}

func TestMeshtasticPollHTTPFallback(t *testing.T) {
	store := nodestore.New(nodestore.Config{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"!deadbeef","longname":"Base","shortname":"BS","latitude_i":476000000,"longitude_i":-1223000000,"battery_level":85,"snr":7.5,"last_heard":1700000000}]`))
	}))
	defer srv.Close()

	c := NewMeshtasticCollector(store, srv.URL, lease.New(10*time.Second), 10*time.Second)
	result, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(result.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(result.Features))
	}
	f := result.Features[0]
	if f.ID != "deadbeef" {
		t.Fatalf("expected canonicalized id, got %q", f.ID)
	}
	if f.Geometry == nil || f.Geometry.Lat != 47.6 {
		t.Fatalf("expected scaled integer coordinates, got %+v", f.Geometry)
	}
	if v, ok := f.GetFloat(model.PropBattery); !ok || v != 85 {
		t.Fatalf("expected battery 85, got %v (%v)", v, ok)
	}
}

func TestMeshtasticPollRetriesTransportOnce(t *testing.T) {
	store := nodestore.New(nodestore.Config{})
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"id":"!cafe0001","last_heard":1700000000}]`))
	}))
	defer srv.Close()

	c := NewMeshtasticCollector(store, srv.URL, nil, 10*time.Second)
	result, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if len(result.Features) != 1 || result.Features[0].ID != "cafe0001" {
		t.Fatalf("unexpected result %+v", result)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected exactly 2 fetch attempts, got %d", calls)
	}
}

func TestMeshtasticPollDoesNotRetryParseErrors(t *testing.T) {
	store := nodestore.New(nodestore.Config{})
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := NewMeshtasticCollector(store, srv.URL, nil, 10*time.Second)
	if _, err := c.Poll(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("parse errors must not be retried, got %d attempts", calls)
	}
}

func TestMeshtasticPollLeaseHeldFails(t *testing.T) {
	store := nodestore.New(nodestore.Config{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	leases := lease.New(time.Minute)
	key, err := leaseKey(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := leases.Acquire(key, "someone-else"); err != nil {
		t.Fatal(err)
	}

	c := NewMeshtasticCollector(store, srv.URL, leases, 10*time.Second)
	if _, err := c.Poll(context.Background()); err == nil {
		t.Fatal("expected lease contention error")
	}
}
