// Package gesture builds multi-touch gesture descriptors for the test server.
//
// Construction is pure: a descriptor carries coordinates, optional offset and
// duration, and is bound to an element query only at dispatch time via
// WithParameters, so the same descriptor can be replayed against different
// targets.
package gesture

import "time"

// Descriptor kinds as understood by the test server. A long press has no kind
// of its own: it is a tap with a populated duration. A flick is a swipe with
// the flick flag set.
const (
	KindTap       = "tap"
	KindDoubleTap = "double_tap"
	KindSwipe     = "swipe"
)

// Point is an absolute screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Offset shifts a gesture's anchor relative to the resolved element.
type Offset struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

// Descriptor is the serializable representation of one gesture. Immutable
// once built; WithParameters returns a finalized copy.
type Descriptor struct {
	Kind   string  `json:"kind"`
	From   Point   `json:"from"`
	To     *Point  `json:"to,omitempty"`
	Offset *Offset `json:"offset,omitempty"`
	Time   int64   `json:"time,omitempty"` // milliseconds
	Flick  bool    `json:"flick,omitempty"`

	// Attached at dispatch time, never by the builder.
	Query   string `json:"query_string,omitempty"`
	Timeout int64  `json:"timeout,omitempty"` // milliseconds
}

// Tap builds a single tap at (x, y).
func Tap(x, y int, offset *Offset) Descriptor {
	return Descriptor{
		Kind:   KindTap,
		From:   Point{X: x, Y: y},
		Offset: offset,
	}
}

// DoubleTap builds a double tap at (x, y).
func DoubleTap(x, y int, offset *Offset) Descriptor {
	return Descriptor{
		Kind:   KindDoubleTap,
		From:   Point{X: x, Y: y},
		Offset: offset,
	}
}

// LongPress builds a press held for duration. Shares the tap representation,
// differing only by the populated duration.
func LongPress(x, y int, offset *Offset, duration time.Duration) Descriptor {
	d := Tap(x, y, offset)
	d.Time = duration.Milliseconds()
	return d
}

// Swipe builds a swipe from one point to another over duration.
func Swipe(from, to Point, duration time.Duration) Descriptor {
	return Descriptor{
		Kind: KindSwipe,
		From: from,
		To:   &to,
		Time: duration.Milliseconds(),
	}
}

// Flick builds a flick: same wire shape as a swipe, flick flag set.
func Flick(from, to Point, duration time.Duration) Descriptor {
	d := Swipe(from, to, duration)
	d.Flick = true
	return d
}

// WithParameters finalizes the descriptor with the element query it targets
// and the wait timeout, returning a copy.
func (d Descriptor) WithParameters(query string, timeout time.Duration) Descriptor {
	d.Query = query
	d.Timeout = timeout.Milliseconds()
	return d
}

// Duration returns the descriptor's own duration.
func (d Descriptor) Duration() time.Duration {
	return time.Duration(d.Time) * time.Millisecond
}
