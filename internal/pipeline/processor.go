package pipeline

import (
	"context"
	"strconv"
	"sync/atomic"

	"starhollow/engine/logging"
	"starhollow/engine/logging/commands"
	"starhollow/engine/logging/frames"
)

// Reject reasons reported through callbacks, log events, and metrics. These
// strings are part of the inspector wire format; do not rename casually.
const (
	ReasonQueueFull        = "queue_full"
	ReasonRateLimited      = "rate_limited"
	ReasonUnknownKind      = "unknown_kind"
	ReasonShuttingDown     = "shutting_down"
	ReasonTargetNotFound   = "target_not_found"
	ReasonMalformedPayload = "malformed_payload"
)

const (
	metricCommandsApplied  = "pipeline_commands_applied_total"
	metricCommandsRejected = "pipeline_commands_rejected_total"
	metricSweepReclaimed   = "pipeline_sweep_reclaimed_total"
)

// Stores groups the four double-buffered domains plus the active-camera
// selection. The consumer reads fronts; the processor writes backs.
type Stores struct {
	Entities *Store[EntityState]
	Cameras  *Store[CameraState]
	Audio    *Store[AudioState]
	Debug    *Store[DebugState]

	activeCamera atomic.Uint64
}

func NewStores(policy SwapPolicy) *Stores {
	return &Stores{
		Entities: NewStore[EntityState](DomainEntity, policy),
		Cameras:  NewStore[CameraState](DomainCamera, policy),
		Audio:    NewStore[AudioState](DomainAudio, policy),
		Debug:    NewStore[DebugState](DomainDebug, policy),
	}
}

// ActiveCamera reports the camera the renderer should use, or zero when none
// has been activated.
func (s *Stores) ActiveCamera() ID {
	if s == nil {
		return 0
	}
	return ID(s.activeCamera.Load())
}

// SwapAll reconciles and flips every store, returning the total number of
// keys synced. Called only at a frame boundary with no producer running.
func (s *Stores) SwapAll() int {
	if s == nil {
		return 0
	}
	synced := s.Entities.Swap()
	synced += s.Cameras.Swap()
	synced += s.Audio.Swap()
	synced += s.Debug.Swap()
	return synced
}

// Processor applies staged commands to the back buffers. It runs on the
// coordinator's thread at frame boundaries; nothing here is safe for
// concurrent use.
type Processor struct {
	stores    *Stores
	alloc     *Allocator
	callbacks *CallbackChannel
	deps      Deps
}

func NewProcessor(stores *Stores, alloc *Allocator, callbacks *CallbackChannel, deps Deps) *Processor {
	return &Processor{
		stores:    stores,
		alloc:     alloc,
		callbacks: callbacks,
		deps:      deps.normalized(),
	}
}

// Apply validates and applies one command against the back buffers, resolving
// the command's callback if it carries one. Returns false when the command
// was rejected.
func (p *Processor) Apply(cmd Command, frame uint64) bool {
	if p == nil {
		return false
	}
	if err := cmd.Validate(); err != nil {
		p.reject(cmd, frame, ReasonMalformedPayload, err.Error())
		return false
	}

	switch cmd.Kind {
	case KindEntityCreate:
		id := p.alloc.Next(DomainEntity)
		pay := cmd.Entity
		p.stores.Entities.Put(id, EntityState{
			ID:        id,
			Archetype: pay.Archetype,
			Position:  pay.Position,
			Rotation:  pay.Rotation,
			Scale:     pay.Scale,
			Tint:      pay.Tint,
			Active:    true,
		})
		p.resolve(cmd, id)
	case KindEntityUpdate:
		cur, ok := p.stores.Entities.Get(cmd.Target)
		if !ok || !cur.Active {
			p.reject(cmd, frame, ReasonTargetNotFound, "")
			return false
		}
		pay := cmd.EntityUpdate
		if pay.Position != nil {
			cur.Position = *pay.Position
		}
		if pay.Rotation != nil {
			cur.Rotation = *pay.Rotation
		}
		if pay.Scale != nil {
			cur.Scale = *pay.Scale
		}
		if pay.Tint != nil {
			cur.Tint = *pay.Tint
		}
		p.stores.Entities.Put(cmd.Target, cur)
		p.resolve(cmd, cmd.Target)
	case KindEntityDestroy:
		cur, ok := p.stores.Entities.Get(cmd.Target)
		if !ok || !cur.Active {
			p.reject(cmd, frame, ReasonTargetNotFound, "")
			return false
		}
		cur.Active = false
		cur.RetiredFrame = frame
		p.stores.Entities.Put(cmd.Target, cur)
		p.resolve(cmd, cmd.Target)

	case KindCameraCreate:
		id := p.alloc.Next(DomainCamera)
		pay := cmd.Camera
		p.stores.Cameras.Put(id, CameraState{
			ID:       id,
			Position: pay.Position,
			Target:   pay.Target,
			Up:       pay.Up,
			FOV:      pay.FOV,
			Near:     pay.Near,
			Far:      pay.Far,
			Active:   true,
		})
		p.resolve(cmd, id)
	case KindCameraUpdate:
		cur, ok := p.stores.Cameras.Get(cmd.Target)
		if !ok || !cur.Active {
			p.reject(cmd, frame, ReasonTargetNotFound, "")
			return false
		}
		pay := cmd.CameraUpdate
		if pay.Position != nil {
			cur.Position = *pay.Position
		}
		if pay.Target != nil {
			cur.Target = *pay.Target
		}
		if pay.Up != nil {
			cur.Up = *pay.Up
		}
		if pay.FOV != nil {
			cur.FOV = *pay.FOV
		}
		if pay.Near != nil {
			cur.Near = *pay.Near
		}
		if pay.Far != nil {
			cur.Far = *pay.Far
		}
		p.stores.Cameras.Put(cmd.Target, cur)
		p.resolve(cmd, cmd.Target)
	case KindCameraDestroy:
		cur, ok := p.stores.Cameras.Get(cmd.Target)
		if !ok || !cur.Active {
			p.reject(cmd, frame, ReasonTargetNotFound, "")
			return false
		}
		cur.Active = false
		cur.RetiredFrame = frame
		p.stores.Cameras.Put(cmd.Target, cur)
		p.stores.activeCamera.CompareAndSwap(uint64(cmd.Target), 0)
		p.resolve(cmd, cmd.Target)
	case KindCameraActivate:
		cur, ok := p.stores.Cameras.Get(cmd.Target)
		if !ok || !cur.Active {
			p.reject(cmd, frame, ReasonTargetNotFound, "")
			return false
		}
		p.stores.activeCamera.Store(uint64(cmd.Target))
		p.resolve(cmd, cmd.Target)

	case KindAudioCreate:
		id := p.alloc.Next(DomainAudio)
		pay := cmd.Audio
		p.stores.Audio.Put(id, AudioState{
			ID:        id,
			Sample:    pay.Sample,
			Frequency: pay.Frequency,
			Gain:      pay.Gain,
			Loop:      pay.Loop,
			Active:    true,
		})
		p.resolve(cmd, id)
	case KindAudioUpdate:
		cur, ok := p.stores.Audio.Get(cmd.Target)
		if !ok || !cur.Active {
			p.reject(cmd, frame, ReasonTargetNotFound, "")
			return false
		}
		pay := cmd.AudioUpdate
		if pay.Frequency != nil {
			cur.Frequency = *pay.Frequency
		}
		if pay.Gain != nil {
			cur.Gain = *pay.Gain
		}
		if pay.Loop != nil {
			cur.Loop = *pay.Loop
		}
		p.stores.Audio.Put(cmd.Target, cur)
		p.resolve(cmd, cmd.Target)
	case KindAudioPlay:
		cur, ok := p.stores.Audio.Get(cmd.Target)
		if !ok || !cur.Active {
			p.reject(cmd, frame, ReasonTargetNotFound, "")
			return false
		}
		cur.Playing = true
		cur.Cue++
		p.stores.Audio.Put(cmd.Target, cur)
		p.resolve(cmd, cmd.Target)
	case KindAudioStop:
		cur, ok := p.stores.Audio.Get(cmd.Target)
		if !ok || !cur.Active {
			p.reject(cmd, frame, ReasonTargetNotFound, "")
			return false
		}
		cur.Playing = false
		p.stores.Audio.Put(cmd.Target, cur)
		p.resolve(cmd, cmd.Target)
	case KindAudioDestroy:
		cur, ok := p.stores.Audio.Get(cmd.Target)
		if !ok || !cur.Active {
			p.reject(cmd, frame, ReasonTargetNotFound, "")
			return false
		}
		cur.Active = false
		cur.Playing = false
		cur.RetiredFrame = frame
		p.stores.Audio.Put(cmd.Target, cur)
		p.resolve(cmd, cmd.Target)

	case KindDebugCreate:
		id := p.alloc.Next(DomainDebug)
		pay := cmd.Debug
		state := DebugState{
			ID:     id,
			Shape:  pay.Shape,
			From:   pay.From,
			To:     pay.To,
			Stroke: pay.Stroke,
			Text:   pay.Text,
			Active: true,
		}
		if pay.TTLFrames > 0 {
			state.ExpiresFrame = frame + uint64(pay.TTLFrames)
		}
		p.stores.Debug.Put(id, state)
		p.resolve(cmd, id)
	case KindDebugUpdate:
		cur, ok := p.stores.Debug.Get(cmd.Target)
		if !ok || !cur.Active {
			p.reject(cmd, frame, ReasonTargetNotFound, "")
			return false
		}
		pay := cmd.DebugUpdate
		if pay.From != nil {
			cur.From = *pay.From
		}
		if pay.To != nil {
			cur.To = *pay.To
		}
		if pay.Stroke != nil {
			cur.Stroke = *pay.Stroke
		}
		if pay.Text != nil {
			cur.Text = *pay.Text
		}
		p.stores.Debug.Put(cmd.Target, cur)
		p.resolve(cmd, cmd.Target)
	case KindDebugDestroy:
		cur, ok := p.stores.Debug.Get(cmd.Target)
		if !ok || !cur.Active {
			p.reject(cmd, frame, ReasonTargetNotFound, "")
			return false
		}
		cur.Active = false
		cur.RetiredFrame = frame
		p.stores.Debug.Put(cmd.Target, cur)
		p.resolve(cmd, cmd.Target)

	default:
		p.reject(cmd, frame, ReasonUnknownKind, "")
		return false
	}

	p.deps.Metrics.Add(metricCommandsApplied, 1)
	return true
}

// Sweep reclaims state that retired before the previous frame and retires
// expired debug primitives. Retired entries linger one full frame so the
// consumer can observe the transition before the key disappears.
func (p *Processor) Sweep(frame uint64) int {
	if p == nil {
		return 0
	}
	reclaimed := 0
	reclaimed += sweepStore(p.stores.Entities, frame)
	reclaimed += sweepStore(p.stores.Cameras, frame)
	reclaimed += sweepStore(p.stores.Audio, frame)

	var expired []ID
	p.stores.Debug.BackEach(func(id ID, d DebugState) {
		if d.Active && d.ExpiresFrame > 0 && frame >= d.ExpiresFrame {
			expired = append(expired, id)
		}
	})
	for _, id := range expired {
		if d, ok := p.stores.Debug.Get(id); ok {
			d.Active = false
			d.RetiredFrame = frame
			p.stores.Debug.Put(id, d)
		}
	}
	reclaimed += sweepStore(p.stores.Debug, frame)

	if reclaimed > 0 {
		p.deps.Metrics.Add(metricSweepReclaimed, uint64(reclaimed))
		frames.StateSwept(context.Background(), p.deps.Publisher, frame, reclaimed)
	}
	return reclaimed
}

func sweepStore[T any](s *Store[T], frame uint64) int {
	var stale []ID
	s.BackEach(func(id ID, v T) {
		active, retired := retirement(any(v))
		if !active && retired+1 < frame {
			stale = append(stale, id)
		}
	})
	for _, id := range stale {
		s.Delete(id)
	}
	return len(stale)
}

func retirement(v any) (active bool, retired uint64) {
	switch s := v.(type) {
	case EntityState:
		return s.Active, s.RetiredFrame
	case CameraState:
		return s.Active, s.RetiredFrame
	case AudioState:
		return s.Active, s.RetiredFrame
	case DebugState:
		return s.Active, s.RetiredFrame
	default:
		return true, 0
	}
}

func (p *Processor) resolve(cmd Command, result ID) {
	if cmd.Callback != 0 {
		p.callbacks.Resolve(cmd.Callback, result)
	}
}

func (p *Processor) reject(cmd Command, frame uint64, reason, detail string) {
	if cmd.Callback != 0 {
		p.callbacks.Fail(cmd.Callback, reason)
	}
	p.deps.Metrics.Add(metricCommandsRejected, 1)
	p.deps.Metrics.Add(metricCommandsRejected+"_"+reason, 1)

	var targets []logging.EntityRef
	if cmd.Target != 0 {
		kind := logging.EntityKindUnknown
		if domain, ok := cmd.Kind.StateDomain(); ok {
			kind = domainEntityKind(domain)
		}
		targets = []logging.EntityRef{{
			ID:   strconv.FormatUint(uint64(cmd.Target), 10),
			Kind: kind,
		}}
	}
	commands.Rejected(context.Background(), p.deps.Publisher, frame, cmd.Agent, targets, commands.RejectedPayload{
		Kind:   cmd.Kind.String(),
		Reason: reason,
		Detail: detail,
	})
}

func domainEntityKind(d Domain) logging.EntityKind {
	switch d {
	case DomainEntity:
		return logging.EntityKindEntity
	case DomainCamera:
		return logging.EntityKindCamera
	case DomainAudio:
		return logging.EntityKindAudio
	case DomainDebug:
		return logging.EntityKindDebug
	default:
		return logging.EntityKindUnknown
	}
}
