package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/geo"
	"github.com/meshforge/meshforge-maps/pkg/lease"
	"github.com/meshforge/meshforge-maps/pkg/model"
	"github.com/meshforge/meshforge-maps/pkg/nodestore"
)

// meshtasticNode mirrors the subset of a Meshtastic device's local HTTP
// node-list entry this collector needs.
type meshtasticNode struct {
	ID         string   `json:"id"`
	LongName   string   `json:"longname"`
	ShortName  string   `json:"shortname"`
	Hardware   string   `json:"hardware"`
	Role       string   `json:"role"`
	LatitudeI  *int64   `json:"latitude_i"`
	LongitudeI *int64   `json:"longitude_i"`
	Altitude   *float64 `json:"altitude"`
	Battery    *float64 `json:"battery_level"`
	SNR        *float64 `json:"snr"`
	HopsAway   *int     `json:"hops_away"`
	LastHeard  int64    `json:"last_heard"`
	ViaMQTT    bool     `json:"via_mqtt"`
}

// MeshtasticCollector surfaces the Meshtastic view of the mesh. Live
// data normally arrives over the MQTT uplink straight into the shared
// node store (pkg/broker), so Poll reads the store first; only when the
// store has no Meshtastic nodes at all does it fall back to a local
// device's HTTP API, guarded by the per-host lease so overlapping poll
// cycles never hit the same radio concurrently.
type MeshtasticCollector struct {
	store    *nodestore.Store
	endpoint string
	leases   *lease.Manager
	leaseTTL time.Duration
	client   *http.Client
}

// NewMeshtasticCollector creates the collector. endpoint may be empty
// to disable the HTTP fallback entirely (store-only operation); leases
// may be nil, in which case fallback requests run unserialized.
func NewMeshtasticCollector(store *nodestore.Store, endpoint string, leases *lease.Manager, leaseTTL time.Duration) *MeshtasticCollector {
	if leaseTTL <= 0 {
		leaseTTL = 30 * time.Second
	}
	// The request deadline stays one second inside the lease TTL so the
	// lease can never expire while its HTTP call is still in flight.
	timeout := leaseTTL - time.Second
	if timeout <= 0 {
		timeout = time.Second
	}
	return &MeshtasticCollector{
		store:    store,
		endpoint: endpoint,
		leases:   leases,
		leaseTTL: leaseTTL,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *MeshtasticCollector) Name() string           { return "meshtastic" }
func (c *MeshtasticCollector) Network() model.Network { return model.NetworkMeshtastic }

// Poll returns the store's current Meshtastic nodes, falling back to
// the configured device HTTP endpoint only when the store is empty.
func (c *MeshtasticCollector) Poll(ctx context.Context) (Result, error) {
	features := c.store.ByNetwork(model.NetworkMeshtastic)
	if len(features) > 0 {
		return Result{Features: features}, nil
	}
	if c.endpoint == "" {
		return Result{}, nil
	}
	return c.pollHTTP(ctx)
}

// pollHTTP fetches the device node list under the per-host lease. A
// transient transport error is retried once; a parse error is not (the
// same document would fail again).
func (c *MeshtasticCollector) pollHTTP(ctx context.Context) (Result, error) {
	if c.leases != nil {
		key, err := leaseKey(c.endpoint)
		if err != nil {
			return Result{}, fmt.Errorf("meshtastic: %w", err)
		}
		if err := c.leases.Acquire(key, c.Name()); err != nil {
			return Result{}, fmt.Errorf("meshtastic: lease %s: %w", key, err)
		}
		defer c.leases.Release(key, c.Name())
	}

	body, err := c.fetch(ctx)
	if err != nil {
		// One retry for transport-level failures only.
		body, err = c.fetch(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("meshtastic: fetch %s: %w", c.endpoint, err)
		}
	}

	var nodes []meshtasticNode
	if err := json.Unmarshal(body, &nodes); err != nil {
		return Result{}, fmt.Errorf("meshtastic: decode node list: %w", err)
	}
	return parseMeshtasticNodes(nodes), nil
}

func (c *MeshtasticCollector) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// leaseKey derives the host:port lease name from the endpoint URL.
func leaseKey(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Host == "" {
		return "", errors.New("endpoint has no host")
	}
	return u.Host, nil
}

// parseMeshtasticNodes is the pure transform from the decoded device
// node list to Features, dropping entries with unusable IDs rather than
// failing the poll. An entry with missing or invalid coordinates is kept
// with a nil geometry.
func parseMeshtasticNodes(nodes []meshtasticNode) Result {
	var result Result
	for _, n := range nodes {
		nodeID, err := geo.ValidateNodeID(n.ID)
		if err != nil {
			continue
		}

		props := map[string]interface{}{
			model.PropNetwork:  string(model.NetworkMeshtastic),
			model.PropIsOnline: true,
		}
		if n.LongName != "" {
			props[model.PropName] = n.LongName
		}
		if n.ShortName != "" {
			props[model.PropShortName] = n.ShortName
		}
		if n.Hardware != "" {
			props[model.PropHardware] = n.Hardware
		}
		if n.Role != "" {
			props[model.PropRole] = n.Role
		}
		if n.Battery != nil {
			props[model.PropBattery] = *n.Battery
		}
		if n.SNR != nil {
			props[model.PropSNR] = *n.SNR
		}
		if n.HopsAway != nil {
			props[model.PropHopsAway] = float64(*n.HopsAway)
		}
		if n.Altitude != nil {
			props[model.PropAltitude] = *n.Altitude
		}
		if n.LastHeard > 0 {
			props[model.PropLastSeen] = n.LastHeard
		} else {
			props[model.PropLastSeen] = time.Now().Unix()
		}
		if n.ViaMQTT {
			props[model.PropViaMQTT] = true
		}

		var geom *model.Point
		if n.LatitudeI != nil && n.LongitudeI != nil {
			if lat, lon, err := geo.ValidateCoordinates(float64(*n.LatitudeI), float64(*n.LongitudeI), true); err == nil {
				geom = &model.Point{Lat: lat, Lon: lon}
			}
		}

		result.Features = append(result.Features, model.Feature{
			ID:         nodeID,
			Geometry:   geom,
			Properties: props,
		})
	}
	return result
}
