package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/geo"
	"github.com/meshforge/meshforge-maps/pkg/model"
)

// reticulumInterface mirrors the subset of an rnsd status-report
// interface entry this collector needs.
type reticulumInterface struct {
	Name      string   `json:"name"`
	Hash      string   `json:"hash"`
	Type      string   `json:"type"`
	RSSI      *float64 `json:"rssi"`
	SNR       *float64 `json:"snr"`
	Bitrate   float64  `json:"bitrate"`
	ClockSkew float64  `json:"clock_skew"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Online    bool     `json:"online"`
	TXBytes   int64    `json:"tx_bytes"`
	RXBytes   int64    `json:"rx_bytes"`
	PeerHash  string   `json:"peer_hash,omitempty"`
}

type reticulumStatus struct {
	Interfaces []reticulumInterface `json:"interfaces"`
}

// ReticulumCollector invokes a local rnsd diagnostic command that emits
// the path table as JSON on stdout, and turns its interface table into
// Features/TopologyLinks. The command is run as a plain argument vector
// (never through a shell) with a hard deadline. On command failure the
// collector falls back to its own disk cache, then to a shared cache
// path if one is configured.
type ReticulumCollector struct {
	command     []string
	timeout     time.Duration
	cachePath   string
	sharedCache string
}

// NewReticulumCollector creates a collector running command (argv form,
// command[0] is the binary) with the given deadline. cachePath is where
// the last good output is kept; sharedCache may be empty.
func NewReticulumCollector(command []string, timeout time.Duration, cachePath, sharedCache string) *ReticulumCollector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ReticulumCollector{
		command:     command,
		timeout:     timeout,
		cachePath:   cachePath,
		sharedCache: sharedCache,
	}
}

func (c *ReticulumCollector) Name() string           { return "reticulum" }
func (c *ReticulumCollector) Network() model.Network { return model.NetworkReticulum }

// Poll runs the diagnostic command and decodes its JSON output into
// Features. When the command fails or emits garbage, the most recent
// cached output is used instead; only when no cache exists either does
// Poll fail.
func (c *ReticulumCollector) Poll(ctx context.Context) (Result, error) {
	if len(c.command) == 0 {
		return Result{}, fmt.Errorf("reticulum: no diagnostic command configured")
	}

	output, runErr := c.run(ctx)
	if runErr == nil {
		var status reticulumStatus
		if err := json.Unmarshal(output, &status); err != nil {
			runErr = fmt.Errorf("reticulum: decode status: %w", err)
		} else {
			c.writeCache(output)
			return parseReticulumStatus(status), nil
		}
	}

	status, cacheErr := c.readCache()
	if cacheErr != nil {
		return Result{}, fmt.Errorf("reticulum: %v (cache fallback: %v)", runErr, cacheErr)
	}
	return parseReticulumStatus(status), nil
}

// run executes the diagnostic command with the collector's deadline,
// returning its stdout.
func (c *ReticulumCollector) run(ctx context.Context) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.command[0], c.command[1:]...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w", c.command[0], err)
	}
	return stdout.Bytes(), nil
}

// writeCache persists the last good output, best effort: a cache write
// failure never fails the poll that produced fresh data.
func (c *ReticulumCollector) writeCache(output []byte) {
	if c.cachePath == "" {
		return
	}
	_ = os.WriteFile(c.cachePath, output, 0o644)
}

// readCache loads the collector's own cache first, then the shared one.
func (c *ReticulumCollector) readCache() (reticulumStatus, error) {
	var lastErr error
	for _, path := range []string{c.cachePath, c.sharedCache} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		var status reticulumStatus
		if err := json.Unmarshal(data, &status); err != nil {
			lastErr = fmt.Errorf("decode cache %s: %w", path, err)
			continue
		}
		return status, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no cache configured")
	}
	return reticulumStatus{}, lastErr
}

// parseReticulumStatus is the pure transform from decoded JSON to
// Features/Links, kept separate from Poll so it's testable without
// running the diagnostic command.
func parseReticulumStatus(status reticulumStatus) Result {
	var result Result

	for _, iface := range status.Interfaces {
		if iface.Hash == "" {
			continue
		}
		nodeID, err := geo.ValidateNodeID(iface.Hash)
		if err != nil {
			nodeID = iface.Hash
		}

		props := map[string]interface{}{
			model.PropNetwork:  string(model.NetworkReticulum),
			model.PropName:     iface.Name,
			model.PropIsOnline: iface.Online,
			model.PropLastSeen: time.Now().Unix(),
		}
		if iface.SNR != nil {
			props[model.PropSNR] = *iface.SNR
		}
		if iface.RSSI != nil {
			props[model.PropRSSI] = *iface.RSSI
		}

		var geom *model.Point
		if iface.Lat != nil && iface.Lon != nil {
			if lat, lon, err := geo.ValidateCoordinates(*iface.Lat, *iface.Lon, false); err == nil {
				geom = &model.Point{Lat: lat, Lon: lon}
			}
		}

		result.Features = append(result.Features, model.Feature{
			ID:         nodeID,
			Geometry:   geom,
			Properties: props,
		})

		if iface.PeerHash != "" {
			peerID, err := geo.ValidateNodeID(iface.PeerHash)
			if err != nil {
				peerID = iface.PeerHash
			}
			result.Links = append(result.Links, model.NewTopologyLink(nodeID, peerID, iface.SNR, model.NetworkReticulum, ""))
		}
	}

	return result
}
