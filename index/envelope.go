package index

import "math"

func NewEnvelope(minX, maxX, minY, maxY float64) Envelope {
	return Envelope{MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY}
}

func (e Envelope) Area() float64 {
	return (e.MaxX - e.MinX) * (e.MaxY - e.MinY)
}

func (e Envelope) Intersects(other Envelope) bool {
	return e.MinX <= other.MaxX && e.MaxX >= other.MinX &&
		e.MinY <= other.MaxY && e.MaxY >= other.MinY
}

func (e Envelope) Contains(other Envelope) bool {
	return e.MinX <= other.MinX && e.MaxX >= other.MaxX &&
		e.MinY <= other.MinY && e.MaxY >= other.MaxY
}

func (e Envelope) Union(other Envelope) Envelope {
	return Envelope{
		MinX: math.Min(e.MinX, other.MinX),
		MaxX: math.Max(e.MaxX, other.MaxX),
		MinY: math.Min(e.MinY, other.MinY),
		MaxY: math.Max(e.MaxY, other.MaxY),
	}
}

// Envelope is an axis aligned bounding box. It is stored on disk in the
// order MinX, MaxX, MinY, MaxY.
type Envelope struct {
	MinX float64
	MaxX float64
	MinY float64
	MaxY float64
}
