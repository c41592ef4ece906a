package exif

import "math"

// DegreesToDMS encodes an absolute decimal degree value as the GPS
// degrees/minutes/seconds rational triple. Degrees and minutes are
// truncated integers with denominator 1; seconds carry two decimal
// places as a rational with denominator 100, giving sub-meter
// resolution at the equator.
func DegreesToDMS(value float64) [3]Rational {
	value = math.Abs(value)

	deg := math.Trunc(value)
	minFloat := (value - deg) * 60
	min := math.Trunc(minFloat)
	sec := math.Trunc((minFloat - min) * 60 * 100)

	return [3]Rational{
		{Num: uint32(deg), Den: 1},
		{Num: uint32(min), Den: 1},
		{Num: uint32(sec), Den: 100},
	}
}

// DMSToDegrees is the inverse of DegreesToDMS, used for verification
// and by readers of injected files.
func DMSToDegrees(dms [3]Rational) float64 {
	var out float64
	if dms[0].Den != 0 {
		out += float64(dms[0].Num) / float64(dms[0].Den)
	}
	if dms[1].Den != 0 {
		out += float64(dms[1].Num) / float64(dms[1].Den) / 60
	}
	if dms[2].Den != 0 {
		out += float64(dms[2].Num) / float64(dms[2].Den) / 3600
	}
	return out
}
