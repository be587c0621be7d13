package model

import "encoding/json"

// GeoJSONGeometry is a minimal GeoJSON geometry object (Point or LineString).
type GeoJSONGeometry struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}

// GeoJSONFeature is a GeoJSON Feature wrapping a Feature's id/geometry/props.
type GeoJSONFeature struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	Geometry   *GeoJSONGeometry       `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// GeoJSONFeatureCollection wraps a list of GeoJSON features.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
}

// ToGeoJSON converts a Feature into its GeoJSON representation. Features
// without geometry are represented with a nil geometry field.
func (f *Feature) ToGeoJSON() GeoJSONFeature {
	gf := GeoJSONFeature{
		Type:       "Feature",
		ID:         f.ID,
		Properties: f.Properties,
	}
	if f.Geometry != nil {
		gf.Geometry = &GeoJSONGeometry{
			Type:        "Point",
			Coordinates: []float64{f.Geometry.Lon, f.Geometry.Lat},
		}
	}
	return gf
}

// FeatureCollectionToGeoJSON renders a slice of Features, skipping
// non-geolocated nodes, per spec §3.
func FeatureCollectionToGeoJSON(features []Feature) GeoJSONFeatureCollection {
	fc := GeoJSONFeatureCollection{Type: "FeatureCollection", Features: make([]GeoJSONFeature, 0, len(features))}
	for _, f := range features {
		if f.Geometry == nil {
			continue
		}
		fc.Features = append(fc.Features, f.ToGeoJSON())
	}
	return fc
}

// FeatureFromGeoJSON parses a GeoJSON Feature back into a Feature.
func FeatureFromGeoJSON(data []byte) (Feature, error) {
	var gf GeoJSONFeature
	if err := json.Unmarshal(data, &gf); err != nil {
		return Feature{}, err
	}
	f := Feature{ID: gf.ID, Properties: gf.Properties}
	if f.Properties == nil {
		f.Properties = make(map[string]interface{})
	}
	if gf.Geometry != nil && gf.Geometry.Type == "Point" {
		if coords, ok := gf.Geometry.Coordinates.([]interface{}); ok && len(coords) == 2 {
			lon, _ := coords[0].(float64)
			lat, _ := coords[1].(float64)
			f.Geometry = &Point{Lat: lat, Lon: lon}
		}
	}
	return f, nil
}

// TrajectoryToGeoJSON renders an ordered set of observations as a GeoJSON
// LineString.
func TrajectoryToGeoJSON(nodeID string, obs []Observation) GeoJSONFeature {
	coords := make([][]float64, 0, len(obs))
	for _, o := range obs {
		coords = append(coords, []float64{o.Lon, o.Lat})
	}
	return GeoJSONFeature{
		Type: "Feature",
		ID:   nodeID,
		Geometry: &GeoJSONGeometry{
			Type:        "LineString",
			Coordinates: coords,
		},
		Properties: map[string]interface{}{"node_id": nodeID},
	}
}
