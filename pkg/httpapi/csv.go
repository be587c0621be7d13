package httpapi

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/meshforge/meshforge-maps/pkg/model"
)

func writeNodesCSV(w http.ResponseWriter, features []model.Feature) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="nodes.csv"`)
	cw := csv.NewWriter(w)
	defer cw.Flush()

	cw.Write([]string{"id", "network", "name", "lat", "lon", "battery", "snr", "last_seen"})
	for _, f := range features {
		lat, lon := "", ""
		if f.Geometry != nil {
			lat = strconv.FormatFloat(f.Geometry.Lat, 'f', -1, 64)
			lon = strconv.FormatFloat(f.Geometry.Lon, 'f', -1, 64)
		}
		network, _ := f.GetString(model.PropNetwork)
		name, _ := f.GetString(model.PropName)
		battery := numericProp(f, model.PropBattery)
		snr := numericProp(f, model.PropSNR)
		lastSeen := numericProp(f, model.PropLastSeen)
		cw.Write([]string{f.ID, network, name, lat, lon, battery, snr, lastSeen})
	}
}

func writeAlertsCSV(w http.ResponseWriter, alerts []model.Alert) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="alerts.csv"`)
	cw := csv.NewWriter(w)
	defer cw.Flush()

	cw.Write([]string{"alert_id", "rule_id", "node_id", "metric", "value", "threshold", "severity", "message", "timestamp", "acknowledged"})
	for _, a := range alerts {
		cw.Write([]string{
			strconv.FormatInt(a.AlertID, 10),
			a.RuleID,
			a.NodeID,
			a.Metric,
			strconv.FormatFloat(a.Value, 'f', -1, 64),
			strconv.FormatFloat(a.Threshold, 'f', -1, 64),
			string(a.Severity),
			a.Message,
			a.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			strconv.FormatBool(a.Acknowledged),
		})
	}
}

func numericProp(f model.Feature, key string) string {
	v, ok := f.GetFloat(key)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
