// Package script holds the built-in demo worker: a scripted scene that
// orbits a handful of entities around the origin. It doubles as a reference
// for how game logic binds to the pipeline.
package script

import (
	"math"
	"time"

	"starhollow/engine/internal/pipeline"
	"starhollow/engine/internal/telemetry"
)

type OrbiterConfig struct {
	Entities int
	Radius   float64
	// Speed is the orbit rate in radians per second.
	Speed  float64
	Logger telemetry.Logger
}

func DefaultOrbiterConfig() OrbiterConfig {
	return OrbiterConfig{
		Entities: 12,
		Radius:   6,
		Speed:    math.Pi / 4,
	}
}

type callbackPurpose uint8

const (
	purposeEntity callbackPurpose = iota
	purposeCamera
	purposeAudio
	purposeDebug
)

// Orbiter is a self-contained worker: on its first frame it builds the
// scene, afterwards it advances every entity along its orbit. Identifiers
// arrive through callbacks one frame after the creating submission, so the
// worker tracks what each pending callback was for.
type Orbiter struct {
	cfg    OrbiterConfig
	submit pipeline.Submitter
	logger telemetry.Logger

	built    bool
	angle    float64
	entities []pipeline.ID
	camera   pipeline.ID
	chime    pipeline.ID
	ring     pipeline.ID
	pending  map[pipeline.ID]callbackPurpose

	lastChime time.Duration
	elapsed   time.Duration
}

func NewOrbiter(cfg OrbiterConfig) *Orbiter {
	if cfg.Entities <= 0 {
		cfg.Entities = DefaultOrbiterConfig().Entities
	}
	if cfg.Radius <= 0 {
		cfg.Radius = DefaultOrbiterConfig().Radius
	}
	if cfg.Speed == 0 {
		cfg.Speed = DefaultOrbiterConfig().Speed
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	return &Orbiter{
		cfg:     cfg,
		logger:  logger,
		pending: make(map[pipeline.ID]callbackPurpose),
	}
}

// Bind attaches the worker to its submission surface. Must happen before the
// first frame runs.
func (o *Orbiter) Bind(submit pipeline.Submitter) {
	o.submit = submit
}

// RunFrame implements pipeline.Worker.
func (o *Orbiter) RunFrame(in pipeline.FrameInput) {
	if o.submit == nil {
		return
	}
	o.collectResults(in.Callbacks)
	o.elapsed += in.Delta

	if !o.built {
		o.buildScene()
		o.built = true
		return
	}
	o.advance(in)
}

func (o *Orbiter) collectResults(results []pipeline.CallbackResult) {
	for _, res := range results {
		purpose, ok := o.pending[res.Callback]
		if !ok {
			continue
		}
		delete(o.pending, res.Callback)
		if res.Err != "" {
			o.logger.Printf("orbiter: creation failed: %s", res.Err)
			continue
		}
		switch purpose {
		case purposeEntity:
			o.entities = append(o.entities, res.Result)
		case purposeCamera:
			o.camera = res.Result
			o.submit.Submit(pipeline.Command{
				Kind:   pipeline.KindCameraActivate,
				Target: res.Result,
			})
		case purposeAudio:
			o.chime = res.Result
		case purposeDebug:
			o.ring = res.Result
		}
	}
}

func (o *Orbiter) stage(cmd pipeline.Command, purpose callbackPurpose) {
	cb := o.submit.RegisterCallback()
	cmd.Callback = cb
	o.pending[cb] = purpose
	if ok, reason := o.submit.Submit(cmd); !ok {
		o.logger.Printf("orbiter: submission rejected: %s", reason)
	}
}

func (o *Orbiter) buildScene() {
	for i := 0; i < o.cfg.Entities; i++ {
		phase := float64(i) / float64(o.cfg.Entities)
		o.stage(pipeline.Command{
			Kind: pipeline.KindEntityCreate,
			Entity: &pipeline.EntityPayload{
				Archetype: "orb",
				Position:  o.orbitPosition(phase),
				Scale:     pipeline.Vec3{X: 1, Y: 1, Z: 1},
				Tint: pipeline.Color{
					R: phase,
					G: 1 - phase,
					B: 0.5,
					A: 1,
				},
			},
		}, purposeEntity)
	}

	o.stage(pipeline.Command{
		Kind: pipeline.KindCameraCreate,
		Camera: &pipeline.CameraPayload{
			Position: pipeline.Vec3{Y: 10, Z: -18},
			Up:       pipeline.Vec3{Y: 1},
			FOV:      70,
			Near:     0.1,
			Far:      500,
		},
	}, purposeCamera)

	o.stage(pipeline.Command{
		Kind: pipeline.KindAudioCreate,
		Audio: &pipeline.AudioPayload{
			Sample:    "chime",
			Frequency: 440,
			Gain:      0.4,
		},
	}, purposeAudio)

	o.stage(pipeline.Command{
		Kind: pipeline.KindDebugCreate,
		Debug: &pipeline.DebugPayload{
			Shape:  pipeline.DebugShapeSphere,
			To:     pipeline.Vec3{X: o.cfg.Radius},
			Stroke: pipeline.Color{G: 1, A: 1},
		},
	}, purposeDebug)
}

func (o *Orbiter) advance(in pipeline.FrameInput) {
	o.angle += o.cfg.Speed * in.Delta.Seconds()
	for i, id := range o.entities {
		phase := float64(i) / float64(o.cfg.Entities)
		pos := o.orbitPosition(phase)
		o.submit.Submit(pipeline.Command{
			Kind:   pipeline.KindEntityUpdate,
			Target: id,
			EntityUpdate: &pipeline.EntityUpdatePayload{
				Position: &pos,
			},
		})
	}

	// Ring a chime once per full orbit.
	if o.chime != 0 && o.elapsed-o.lastChime >= o.orbitPeriod() {
		o.lastChime = o.elapsed
		o.submit.Submit(pipeline.Command{
			Kind:   pipeline.KindAudioPlay,
			Target: o.chime,
		})
	}
}

func (o *Orbiter) orbitPosition(phase float64) pipeline.Vec3 {
	theta := o.angle + phase*2*math.Pi
	return pipeline.Vec3{
		X: o.cfg.Radius * math.Cos(theta),
		Z: o.cfg.Radius * math.Sin(theta),
	}
}

func (o *Orbiter) orbitPeriod() time.Duration {
	speed := math.Abs(o.cfg.Speed)
	if speed == 0 {
		return time.Hour
	}
	return time.Duration(2 * math.Pi / speed * float64(time.Second))
}
