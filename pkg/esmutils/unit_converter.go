package esmutils

import "math"

// No negative values
func KwToW(kw float64) uint32 {
	if kw < 0 {
		return 0
	}
	return uint32(math.Round(kw * 1000))
}

func WToKw(w uint32) float64 {
	return float64(w) / 1000
}

// Convert A to mA for storage - No negative values
func AmpsToMilliamps(a float64) uint32 {
	if a < 0 {
		return 0
	}
	return uint32(math.Round(a * 1000))
}

func MilliampsToAmps(ma uint32) float64 {
	return float64(ma) / 1000
}
