// Package broker subscribes to the Meshtastic MQTT JSON uplink
// ("msh/.../2/json/#") and decodes each envelope into the shared node
// store, the push-driven counterpart to pkg/collector's poll-based
// sources.
package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/events"
	"github.com/meshforge/meshforge-maps/pkg/geo"
	"github.com/meshforge/meshforge-maps/pkg/logx"
	"github.com/meshforge/meshforge-maps/pkg/model"
	"github.com/meshforge/meshforge-maps/pkg/mqttclient"
	"github.com/meshforge/meshforge-maps/pkg/nodestore"
)

// envelopeType is the Meshtastic MQTT JSON "type" discriminator.
type envelopeType string

const (
	typePosition     envelopeType = "position"
	typeNodeInfo     envelopeType = "nodeinfo"
	typeTelemetry    envelopeType = "telemetry"
	typeNeighborInfo envelopeType = "neighborinfo"
	typeText         envelopeType = "text"
	typeMapReport    envelopeType = "mapreport"
)

// envelope is the top-level Meshtastic MQTT JSON message shape (as
// published by firmware with "json_enabled" set on the MQTT module).
type envelope struct {
	From      uint32          `json:"from"`
	Sender    string          `json:"sender"`
	Type      envelopeType    `json:"type"`
	Timestamp int64           `json:"timestamp"`
	HopsAway  *int            `json:"hopsAway"`
	RSSI      *float64        `json:"rssi"`
	SNR       *float64        `json:"snr"`
	ChannelID string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
}

type positionPayload struct {
	LatitudeI  int64   `json:"latitude_i"`
	LongitudeI int64   `json:"longitude_i"`
	Altitude   float64 `json:"altitude"`
}

type nodeInfoPayload struct {
	LongName   string `json:"longname"`
	ShortName  string `json:"shortname"`
	Hardware   string `json:"hardware"`
	Role       string `json:"role"`
	IsLicensed bool   `json:"is_licensed"`
}

type telemetryPayload struct {
	BatteryLevel   *float64 `json:"battery_level"`
	Voltage        *float64 `json:"voltage"`
	ChannelUtil    *float64 `json:"channel_utilization"`
	AirUtilTx      *float64 `json:"air_util_tx"`
	Temperature    *float64 `json:"temperature"`
	RelHumidity    *float64 `json:"relative_humidity"`
	BarometricPres *float64 `json:"barometric_pressure"`
	IAQ            *float64 `json:"iaq"`
}

type neighborInfoPayload struct {
	NodeID    uint32 `json:"node_id"`
	Neighbors []struct {
		NeighborID uint32  `json:"neighbor_id"`
		SNR        float64 `json:"snr"`
	} `json:"neighbors"`
}

// Subscriber wires an mqttclient.Client to a nodestore.Store, decoding
// each Meshtastic JSON envelope it receives into a Feature upsert on the
// store. A neighborinfo envelope adds at most one link: only the first
// listed neighbor becomes a link, and the other neighbors are ignored.
type Subscriber struct {
	mqtt  *mqttclient.Client
	store *nodestore.Store
	bus   *events.Bus
	log   *logx.Logger
	topic string
}

// New creates a Subscriber that will listen on topic (e.g.
// "msh/US/2/json/#") once Start is called. bus may be nil to disable
// TopicFeatureUpdated notifications.
func New(mqtt *mqttclient.Client, store *nodestore.Store, bus *events.Bus, log *logx.Logger, topic string) *Subscriber {
	if topic == "" {
		topic = "msh/+/2/json/#"
	}
	return &Subscriber{mqtt: mqtt, store: store, bus: bus, log: log, topic: topic}
}

// Start subscribes to the Meshtastic JSON topic tree. Each message is
// decoded and applied to the store on the MQTT client's delivery
// goroutine; malformed messages are logged and dropped rather than
// disrupting the subscription.
func (s *Subscriber) Start() error {
	return s.mqtt.Subscribe(s.topic, s.handleMessage)
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	f, link, err := decodeEnvelope(payload)
	if err != nil {
		if s.log != nil {
			s.log.Debug("meshtastic envelope decode failed", "topic", topic, "error", err.Error())
		}
		return
	}
	if f != nil {
		s.store.Upsert(*f)
		if s.bus != nil {
			s.bus.Publish(events.Event{
				Topic:     events.TopicFeatureUpdated,
				NodeID:    f.ID,
				Timestamp: time.Now(),
				Payload:   *f,
			})
		}
	}
	if link != nil {
		s.store.UpsertLink(*link)
	}
}

// decodeEnvelope is the pure decode path, split out from handleMessage
// so it can be tested without a live MQTT connection. It returns a nil
// Feature for envelope types that don't carry node state (e.g. text
// messages) without that being an error.
func decodeEnvelope(raw []byte) (*model.Feature, *model.TopologyLink, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}

	nodeID, err := senderNodeID(env)
	if err != nil {
		return nil, nil, err
	}

	props := map[string]interface{}{
		model.PropNetwork:  string(model.NetworkMeshtastic),
		model.PropLastSeen: envelopeTimestamp(env),
		model.PropIsOnline: true,
	}
	if env.HopsAway != nil {
		props[model.PropHopsAway] = float64(*env.HopsAway)
	}
	if env.SNR != nil {
		props[model.PropSNR] = *env.SNR
	}
	if env.RSSI != nil {
		props[model.PropRSSI] = *env.RSSI
	}
	if env.ChannelID != "" {
		props[model.PropChannelName] = env.ChannelID
	}

	var geom *model.Point

	switch env.Type {
	case typePosition:
		var p positionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, nil, fmt.Errorf("decode position payload: %w", err)
		}
		lat, lon, err := geo.ValidateCoordinates(float64(p.LatitudeI), float64(p.LongitudeI), true)
		if err == nil {
			geom = &model.Point{Lat: lat, Lon: lon}
		}
		props[model.PropAltitude] = p.Altitude

	case typeNodeInfo:
		var ni nodeInfoPayload
		if err := json.Unmarshal(env.Payload, &ni); err != nil {
			return nil, nil, fmt.Errorf("decode nodeinfo payload: %w", err)
		}
		props[model.PropName] = ni.LongName
		props[model.PropShortName] = ni.ShortName
		props[model.PropHardware] = ni.Hardware
		props[model.PropRole] = ni.Role

	case typeTelemetry:
		var tel telemetryPayload
		if err := json.Unmarshal(env.Payload, &tel); err != nil {
			return nil, nil, fmt.Errorf("decode telemetry payload: %w", err)
		}
		if tel.BatteryLevel != nil {
			props[model.PropBattery] = *tel.BatteryLevel
		}
		if tel.Voltage != nil {
			props[model.PropVoltage] = *tel.Voltage
		}
		if tel.ChannelUtil != nil {
			props[model.PropChannelUtil] = *tel.ChannelUtil
		}
		if tel.AirUtilTx != nil {
			props[model.PropAirUtilTx] = *tel.AirUtilTx
		}
		if tel.Temperature != nil {
			props[model.PropTemperature] = *tel.Temperature
		}
		if tel.RelHumidity != nil {
			props[model.PropHumidity] = *tel.RelHumidity
		}
		if tel.BarometricPres != nil {
			props[model.PropPressure] = *tel.BarometricPres
		}
		if tel.IAQ != nil {
			props[model.PropIAQ] = *tel.IAQ
		}

	case typeNeighborInfo:
		var ninfo neighborInfoPayload
		if err := json.Unmarshal(env.Payload, &ninfo); err != nil {
			return nil, nil, fmt.Errorf("decode neighborinfo payload: %w", err)
		}
		if len(ninfo.Neighbors) > 0 {
			neighbor := ninfo.Neighbors[0]
			peerID, err := geo.ValidateNodeID(fmt.Sprintf("%08x", neighbor.NeighborID))
			if err == nil {
				snr := neighbor.SNR
				link := model.NewTopologyLink(nodeID, peerID, &snr, model.NetworkMeshtastic, "")
				return &model.Feature{ID: nodeID, Properties: props}, &link, nil
			}
		}
		return &model.Feature{ID: nodeID, Properties: props}, nil, nil

	case typeText, typeMapReport:
		return nil, nil, nil

	default:
		return nil, nil, fmt.Errorf("unrecognized envelope type %q", env.Type)
	}

	return &model.Feature{ID: nodeID, Geometry: geom, Properties: props}, nil, nil
}

func senderNodeID(env envelope) (string, error) {
	if env.Sender != "" {
		return geo.ValidateNodeID(env.Sender)
	}
	return geo.ValidateNodeID(fmt.Sprintf("%08x", env.From))
}

func envelopeTimestamp(env envelope) int64 {
	if env.Timestamp > 0 {
		return env.Timestamp
	}
	return time.Now().Unix()
}
