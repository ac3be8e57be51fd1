package geo

import "math"

// earthRadius is the mean earth radius in meters.
const earthRadius = 6371000.0

// Distance returns the great-circle distance in meters between two
// coordinates, computed with the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// ETASeconds converts a distance in meters and a speed in km/h into an
// estimated travel time in seconds. The second return value is false when
// no estimate can be made, i.e. the speed is zero or negative.
func ETASeconds(distanceMeters, speedKmh float64) (int64, bool) {
	if speedKmh <= 0 {
		return 0, false
	}

	speedMs := speedKmh / 3.6

	return int64(math.Round(distanceMeters / speedMs)), true
}
