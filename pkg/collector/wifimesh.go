package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/geo"
	"github.com/meshforge/meshforge-maps/pkg/model"
)

// arednSysinfo mirrors the subset of AREDN's sysinfo.json response this
// collector needs (node identity, location, and the neighbor/link table).
type arednSysinfo struct {
	Node     string `json:"node"`
	Lat      string `json:"lat"`
	Lon      string `json:"lon"`
	Model    string `json:"model"`
	Firmware struct {
		Version string `json:"version"`
	} `json:"firmware_version"`
	LinkInfo map[string]arednLink `json:"link_info"`
}

type arednLink struct {
	LinkType  string  `json:"linkType"`
	Hostname  string  `json:"hostname"`
	SignalDBM float64 `json:"signal"`
	NoiseDBM  float64 `json:"noise"`
	Quality   int     `json:"quality"`
}

// WiFiMeshCollector polls an AREDN node's sysinfo.json HTTP API.
type WiFiMeshCollector struct {
	endpoint string
	client   *http.Client
}

// NewWiFiMeshCollector creates a collector polling endpoint (a node's
// sysinfo.json URL, typically "http://<node>.local.mesh/cgi-bin/sysinfo.json?link_info=1").
func NewWiFiMeshCollector(endpoint string, timeout time.Duration) *WiFiMeshCollector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WiFiMeshCollector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *WiFiMeshCollector) Name() string           { return "aredn:" + c.endpoint }
func (c *WiFiMeshCollector) Network() model.Network { return model.NetworkAREDN }

// Poll fetches and decodes sysinfo.json into a Feature for the node plus
// a TopologyLink for each neighbor in its link table.
func (c *WiFiMeshCollector) Poll(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("aredn: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("aredn: fetch sysinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("aredn: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("aredn: read body: %w", err)
	}

	var info arednSysinfo
	if err := json.Unmarshal(body, &info); err != nil {
		return Result{}, fmt.Errorf("aredn: decode sysinfo: %w", err)
	}

	return parseAREDNSysinfo(info), nil
}

// parseAREDNSysinfo is the pure transform from decoded JSON to
// Features/Links.
func parseAREDNSysinfo(info arednSysinfo) Result {
	var result Result
	if info.Node == "" {
		return result
	}

	props := map[string]interface{}{
		model.PropNetwork:  string(model.NetworkAREDN),
		model.PropName:     info.Node,
		model.PropHardware: info.Model,
		model.PropFirmware: info.Firmware.Version,
		model.PropIsOnline: true,
		model.PropLastSeen: time.Now().Unix(),
	}

	var geom *model.Point
	if lat, err := strconv.ParseFloat(info.Lat, 64); err == nil {
		if lon, err := strconv.ParseFloat(info.Lon, 64); err == nil {
			if vlat, vlon, err := geo.ValidateCoordinates(lat, lon, false); err == nil {
				geom = &model.Point{Lat: vlat, Lon: vlon}
			}
		}
	}

	result.Features = append(result.Features, model.Feature{
		ID:         info.Node,
		Geometry:   geom,
		Properties: props,
	})

	for _, link := range info.LinkInfo {
		if link.Hostname == "" {
			continue
		}
		snr := link.SignalDBM - link.NoiseDBM
		linkType := classifyAREDNLinkType(link.LinkType)
		result.Links = append(result.Links, model.NewTopologyLink(info.Node, link.Hostname, &snr, model.NetworkAREDN, linkType))
	}

	return result
}

// classifyAREDNLinkType maps AREDN's link_info "linkType" field to the
// model's LinkType enum, defaulting to RF for anything unrecognized (RF
// is the overwhelmingly common case on AREDN nodes).
func classifyAREDNLinkType(raw string) model.LinkType {
	switch raw {
	case "DTD":
		return model.LinkTypeDTD
	case "TUN":
		return model.LinkTypeTUN
	case "XLINK":
		return model.LinkTypeXLINK
	default:
		return model.LinkTypeRF
	}
}
