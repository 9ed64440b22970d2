package layout

import (
	"math"
	"time"
)

const (
	MinZoom     Zoom = 0.5
	MaxZoom     Zoom = 3
	ZoomStep    Zoom = 0.25
	DefaultZoom Zoom = 1
)

// Zoom scales the whole-day hour height. Values stay within
// [MinZoom, MaxZoom].
type Zoom float64

// ClampZoom snaps z to the nearest ZoomStep and bounds it. Non-finite
// values fall back to DefaultZoom.
func ClampZoom(z float64) Zoom {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return DefaultZoom
	}
	z = math.Round(z/float64(ZoomStep)) * float64(ZoomStep)
	return Zoom(math.Min(float64(MaxZoom), math.Max(float64(MinZoom), z)))
}

func (z Zoom) In() Zoom {
	return Zoom(math.Min(float64(z+ZoomStep), float64(MaxZoom)))
}

func (z Zoom) Out() Zoom {
	return Zoom(math.Max(float64(z-ZoomStep), float64(MinZoom)))
}

// HourHeight is the pixel height of one hour in whole-day layout.
func (z Zoom) HourHeight() float64 {
	return BaseHourHeight * float64(z)
}

// ScrollOffset is the whole-day pixel offset of the given clock time,
// used to open the day column scrolled to a sensible hour.
func (z Zoom) ScrollOffset(t time.Time) float64 {
	return float64(minuteOfDay(t)) / 60 * z.HourHeight()
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
