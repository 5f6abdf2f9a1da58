package pipeline

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMalformedPayload indicates a command payload failed validation and
	// was rejected before touching any state.
	ErrMalformedPayload = errors.New("pipeline: malformed payload")
	// ErrMissingPayload indicates a command arrived without the payload its
	// kind requires.
	ErrMissingPayload = errors.New("pipeline: missing payload")
)

// Validate checks the command payload for its kind. It returns nil for
// well-formed commands and an error wrapping ErrMalformedPayload or
// ErrMissingPayload otherwise. Validation never mutates state; the processor
// calls it before applying anything.
func (c Command) Validate() error {
	switch c.Kind {
	case KindEntityCreate:
		if c.Entity == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, c.Kind)
		}
		return c.Entity.validate()
	case KindEntityUpdate:
		if c.EntityUpdate == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, c.Kind)
		}
		return c.EntityUpdate.validate()
	case KindCameraCreate:
		if c.Camera == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, c.Kind)
		}
		return c.Camera.validate()
	case KindCameraUpdate:
		if c.CameraUpdate == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, c.Kind)
		}
		return c.CameraUpdate.validate()
	case KindAudioCreate:
		if c.Audio == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, c.Kind)
		}
		return c.Audio.validate()
	case KindAudioUpdate:
		if c.AudioUpdate == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, c.Kind)
		}
		return c.AudioUpdate.validate()
	case KindDebugCreate:
		if c.Debug == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, c.Kind)
		}
		return c.Debug.validate()
	case KindDebugUpdate:
		if c.DebugUpdate == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, c.Kind)
		}
		return c.DebugUpdate.validate()
	default:
		return nil
	}
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func finiteVec(v Vec3) bool {
	return finite(v.X, v.Y, v.Z)
}

func validColor(c Color) bool {
	for _, ch := range [4]float64{c.R, c.G, c.B, c.A} {
		if !finite(ch) || ch < 0 || ch > 1 {
			return false
		}
	}
	return true
}

func (p *EntityPayload) validate() error {
	if !finiteVec(p.Position) || !finiteVec(p.Rotation) || !finiteVec(p.Scale) {
		return fmt.Errorf("%w: entity transform not finite", ErrMalformedPayload)
	}
	if !validColor(p.Tint) {
		return fmt.Errorf("%w: entity tint out of range", ErrMalformedPayload)
	}
	return nil
}

func (p *EntityUpdatePayload) validate() error {
	for _, v := range []*Vec3{p.Position, p.Rotation, p.Scale} {
		if v != nil && !finiteVec(*v) {
			return fmt.Errorf("%w: entity transform not finite", ErrMalformedPayload)
		}
	}
	if p.Tint != nil && !validColor(*p.Tint) {
		return fmt.Errorf("%w: entity tint out of range", ErrMalformedPayload)
	}
	return nil
}

func (p *CameraPayload) validate() error {
	if !finiteVec(p.Position) || !finiteVec(p.Target) || !finiteVec(p.Up) {
		return fmt.Errorf("%w: camera vectors not finite", ErrMalformedPayload)
	}
	return validateCameraPlanes(p.FOV, p.Near, p.Far)
}

func (p *CameraUpdatePayload) validate() error {
	for _, v := range []*Vec3{p.Position, p.Target, p.Up} {
		if v != nil && !finiteVec(*v) {
			return fmt.Errorf("%w: camera vectors not finite", ErrMalformedPayload)
		}
	}
	if p.FOV != nil {
		if !finite(*p.FOV) || *p.FOV <= 0 || *p.FOV >= 180 {
			return fmt.Errorf("%w: camera fov %v out of range", ErrMalformedPayload, *p.FOV)
		}
	}
	for _, plane := range []*float64{p.Near, p.Far} {
		if plane != nil && (!finite(*plane) || *plane < 0) {
			return fmt.Errorf("%w: camera plane negative", ErrMalformedPayload)
		}
	}
	return nil
}

func validateCameraPlanes(fov, near, far float64) error {
	if !finite(fov) || fov <= 0 || fov >= 180 {
		return fmt.Errorf("%w: camera fov %v out of range", ErrMalformedPayload, fov)
	}
	if !finite(near) || !finite(far) || near < 0 || far < 0 {
		return fmt.Errorf("%w: camera plane negative", ErrMalformedPayload)
	}
	if far > 0 && near >= far {
		return fmt.Errorf("%w: camera near %v not before far %v", ErrMalformedPayload, near, far)
	}
	return nil
}

func (p *AudioPayload) validate() error {
	if !finite(p.Frequency) || p.Frequency < 0 {
		return fmt.Errorf("%w: audio frequency %v out of range", ErrMalformedPayload, p.Frequency)
	}
	if !finite(p.Gain) || p.Gain < 0 || p.Gain > 1 {
		return fmt.Errorf("%w: audio gain %v out of range", ErrMalformedPayload, p.Gain)
	}
	return nil
}

func (p *AudioUpdatePayload) validate() error {
	if p.Frequency != nil && (!finite(*p.Frequency) || *p.Frequency < 0) {
		return fmt.Errorf("%w: audio frequency %v out of range", ErrMalformedPayload, *p.Frequency)
	}
	if p.Gain != nil && (!finite(*p.Gain) || *p.Gain < 0 || *p.Gain > 1) {
		return fmt.Errorf("%w: audio gain %v out of range", ErrMalformedPayload, *p.Gain)
	}
	return nil
}

func (p *DebugPayload) validate() error {
	if !knownDebugShape(p.Shape) {
		return fmt.Errorf("%w: unknown debug shape %q", ErrMalformedPayload, p.Shape)
	}
	if !finiteVec(p.From) || !finiteVec(p.To) {
		return fmt.Errorf("%w: debug endpoints not finite", ErrMalformedPayload)
	}
	if !validColor(p.Stroke) {
		return fmt.Errorf("%w: debug stroke out of range", ErrMalformedPayload)
	}
	if p.TTLFrames < 0 {
		return fmt.Errorf("%w: debug ttl negative", ErrMalformedPayload)
	}
	return nil
}

func (p *DebugUpdatePayload) validate() error {
	for _, v := range []*Vec3{p.From, p.To} {
		if v != nil && !finiteVec(*v) {
			return fmt.Errorf("%w: debug endpoints not finite", ErrMalformedPayload)
		}
	}
	if p.Stroke != nil && !validColor(*p.Stroke) {
		return fmt.Errorf("%w: debug stroke out of range", ErrMalformedPayload)
	}
	return nil
}
