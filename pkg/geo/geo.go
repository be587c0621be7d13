// Package geo validates the coordinate and node-ID shapes shared by every
// mesh-network upstream before they are allowed into a Feature.
package geo

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// nodeIDPattern matches a meshtastic-style node ID, with or without the
// leading "!": up to 16 hex digits.
var nodeIDPattern = regexp.MustCompile(`^!?[0-9a-fA-F]{1,16}$`)

// ErrInvalidCoordinates is returned by ValidateCoordinates for any
// out-of-range, non-finite, or Null Island input.
var ErrInvalidCoordinates = fmt.Errorf("invalid coordinates")

// ErrInvalidNodeID is returned by ValidateNodeID when the input does not
// match the node-ID pattern.
var ErrInvalidNodeID = fmt.Errorf("invalid node id")

// ValidateCoordinates canonicalizes a (lat, lon) pair in WGS84 decimal
// degrees. When convertInt is true the inputs are first scaled by 1e-7,
// the upstream Meshtastic convention for integer-encoded coordinates.
//
// It rejects NaN, ±Inf, |lat| > 90, |lon| > 180, and Null Island (0, 0).
func ValidateCoordinates(lat, lon float64, convertInt bool) (float64, float64, error) {
	if convertInt {
		lat /= 1e7
		lon /= 1e7
	}

	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return 0, 0, fmt.Errorf("%w: non-finite value", ErrInvalidCoordinates)
	}
	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinates, lat)
	}
	if lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinates, lon)
	}
	if lat == 0 && lon == 0 {
		return 0, 0, fmt.Errorf("%w: null island", ErrInvalidCoordinates)
	}

	return lat, lon, nil
}

// ValidateNodeID returns the canonical form of a node ID — lowercased, with
// any leading "!" stripped — or fails when it does not match
// ^!?[0-9a-fA-F]{1,16}$.
func ValidateNodeID(id string) (string, error) {
	if !nodeIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidNodeID, id)
	}
	canonical := strings.ToLower(strings.TrimPrefix(id, "!"))
	return canonical, nil
}
