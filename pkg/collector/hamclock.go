package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/hamclock"
	"github.com/meshforge/meshforge-maps/pkg/model"
)

// HamclockCollector polls a HamClock-compatible propagation feed
// (current solar indices + GOES X-ray flux) and surfaces it as a
// synthetic, non-geolocated Feature carrying band-condition properties
// for the overlay rather than a mesh node.
type HamclockCollector struct {
	id         string
	indicesURL string
	xrayURL    string
	client     *http.Client
}

// NewHamclockCollector polls indicesURL (an "SFI,A,K" line) and xrayURL
// (the whitespace-separated epoch/flux feed) on each cycle, publishing a
// single Feature identified by id.
func NewHamclockCollector(id, indicesURL, xrayURL string, timeout time.Duration) *HamclockCollector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HamclockCollector{
		id:         id,
		indicesURL: indicesURL,
		xrayURL:    xrayURL,
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *HamclockCollector) Name() string           { return "hamclock:" + c.id }
func (c *HamclockCollector) Network() model.Network { return model.NetworkHamclock }

// Poll fetches the current solar indices and the most recent X-ray
// reading, classifies them, and returns a single propagation Feature.
func (c *HamclockCollector) Poll(ctx context.Context) (Result, error) {
	indicesLine, err := c.fetch(ctx, c.indicesURL)
	if err != nil {
		return Result{}, fmt.Errorf("hamclock: fetch indices: %w", err)
	}
	indices, err := hamclock.ParseSolarIndices(string(indicesLine))
	if err != nil {
		return Result{}, fmt.Errorf("hamclock: parse indices: %w", err)
	}

	xrayBody, err := c.fetch(ctx, c.xrayURL)
	if err != nil {
		return Result{}, fmt.Errorf("hamclock: fetch xray: %w", err)
	}
	readings, err := hamclock.ParseXRayFeed(xrayBody)
	if err != nil {
		return Result{}, fmt.Errorf("hamclock: parse xray: %w", err)
	}

	var flareClass hamclock.FlareClass = hamclock.FlareA
	if len(readings) > 0 {
		flareClass = hamclock.ClassifyXRayFlux(readings[len(readings)-1].FluxWm2)
	}
	condition := hamclock.ClassifyBandCondition(indices)

	feature := model.Feature{
		ID: c.id,
		Properties: map[string]interface{}{
			model.PropNetwork:     string(model.NetworkHamclock),
			model.PropName:        "HF propagation",
			model.PropDescription: string(condition),
			model.PropIsOnline:    true,
			model.PropLastSeen:    time.Now().Unix(),
			model.PropOverlayData: map[string]interface{}{
				"sfi":         indices.SFI,
				"a_index":     indices.A,
				"k_index":     indices.K,
				"flare_class": string(flareClass),
				"condition":   string(condition),
			},
		},
	}

	return Result{Features: []model.Feature{feature}}, nil
}

func (c *HamclockCollector) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}
