package pipeline

// CommandKind enumerates every mutation the worker may request. The set is
// closed: the processor switches over it exhaustively and treats anything
// else as an ignorable no-op rather than an error.
type CommandKind uint8

const (
	KindNone CommandKind = iota

	KindEntityCreate
	KindEntityUpdate
	KindEntityDestroy

	KindCameraCreate
	KindCameraUpdate
	KindCameraDestroy
	KindCameraActivate

	KindAudioCreate
	KindAudioUpdate
	KindAudioPlay
	KindAudioStop
	KindAudioDestroy

	KindDebugCreate
	KindDebugUpdate
	KindDebugDestroy
)

// String returns the stable name used in log events and reject reasons.
func (k CommandKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindEntityCreate:
		return "entity_create"
	case KindEntityUpdate:
		return "entity_update"
	case KindEntityDestroy:
		return "entity_destroy"
	case KindCameraCreate:
		return "camera_create"
	case KindCameraUpdate:
		return "camera_update"
	case KindCameraDestroy:
		return "camera_destroy"
	case KindCameraActivate:
		return "camera_activate"
	case KindAudioCreate:
		return "audio_create"
	case KindAudioUpdate:
		return "audio_update"
	case KindAudioPlay:
		return "audio_play"
	case KindAudioStop:
		return "audio_stop"
	case KindAudioDestroy:
		return "audio_destroy"
	case KindDebugCreate:
		return "debug_create"
	case KindDebugUpdate:
		return "debug_update"
	case KindDebugDestroy:
		return "debug_destroy"
	default:
		return "unknown"
	}
}

// StateDomain reports which state store the kind mutates. The second return
// is false for KindNone and unrecognized kinds.
func (k CommandKind) StateDomain() (Domain, bool) {
	switch k {
	case KindEntityCreate, KindEntityUpdate, KindEntityDestroy:
		return DomainEntity, true
	case KindCameraCreate, KindCameraUpdate, KindCameraDestroy, KindCameraActivate:
		return DomainCamera, true
	case KindAudioCreate, KindAudioUpdate, KindAudioPlay, KindAudioStop, KindAudioDestroy:
		return DomainAudio, true
	case KindDebugCreate, KindDebugUpdate, KindDebugDestroy:
		return DomainDebug, true
	default:
		return 0, false
	}
}

// IsCreate reports whether the kind allocates a fresh identifier.
func (k CommandKind) IsCreate() bool {
	switch k {
	case KindEntityCreate, KindCameraCreate, KindAudioCreate, KindDebugCreate:
		return true
	default:
		return false
	}
}

// Vec3 is a three-component vector in world units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Color carries normalized RGBA channels in [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// DebugShape enumerates the debug primitives the renderer understands.
type DebugShape string

const (
	DebugShapeLine   DebugShape = "line"
	DebugShapeBox    DebugShape = "box"
	DebugShapeSphere DebugShape = "sphere"
	DebugShapeText   DebugShape = "text"
)

func knownDebugShape(shape DebugShape) bool {
	switch shape {
	case DebugShapeLine, DebugShapeBox, DebugShapeSphere, DebugShapeText:
		return true
	default:
		return false
	}
}

// EntityPayload carries the full initial state for an entity creation.
type EntityPayload struct {
	Archetype string `json:"archetype"`
	Position  Vec3   `json:"position"`
	Rotation  Vec3   `json:"rotation"`
	Scale     Vec3   `json:"scale"`
	Tint      Color  `json:"tint"`
}

// EntityUpdatePayload carries a partial entity update. Nil fields leave the
// corresponding snapshot fields untouched.
type EntityUpdatePayload struct {
	Position *Vec3  `json:"position,omitempty"`
	Rotation *Vec3  `json:"rotation,omitempty"`
	Scale    *Vec3  `json:"scale,omitempty"`
	Tint     *Color `json:"tint,omitempty"`
}

// CameraPayload carries the full initial state for a camera creation.
type CameraPayload struct {
	Position Vec3    `json:"position"`
	Target   Vec3    `json:"target"`
	Up       Vec3    `json:"up"`
	FOV      float64 `json:"fov"`
	Near     float64 `json:"near"`
	Far      float64 `json:"far"`
}

// CameraUpdatePayload carries a partial camera update.
type CameraUpdatePayload struct {
	Position *Vec3    `json:"position,omitempty"`
	Target   *Vec3    `json:"target,omitempty"`
	Up       *Vec3    `json:"up,omitempty"`
	FOV      *float64 `json:"fov,omitempty"`
	Near     *float64 `json:"near,omitempty"`
	Far      *float64 `json:"far,omitempty"`
}

// AudioPayload carries the full initial state for an audio source creation.
type AudioPayload struct {
	Sample    string  `json:"sample"`
	Frequency float64 `json:"frequency"`
	Gain      float64 `json:"gain"`
	Loop      bool    `json:"loop"`
}

// AudioUpdatePayload carries a partial audio source update.
type AudioUpdatePayload struct {
	Frequency *float64 `json:"frequency,omitempty"`
	Gain      *float64 `json:"gain,omitempty"`
	Loop      *bool    `json:"loop,omitempty"`
}

// DebugPayload carries the full initial state for a debug primitive.
// TTLFrames of zero keeps the primitive alive until destroyed explicitly.
type DebugPayload struct {
	Shape     DebugShape `json:"shape"`
	From      Vec3       `json:"from"`
	To        Vec3       `json:"to"`
	Stroke    Color      `json:"stroke"`
	Text      string     `json:"text,omitempty"`
	TTLFrames int        `json:"ttlFrames,omitempty"`
}

// DebugUpdatePayload carries a partial debug primitive update.
type DebugUpdatePayload struct {
	From   *Vec3   `json:"from,omitempty"`
	To     *Vec3   `json:"to,omitempty"`
	Stroke *Color  `json:"stroke,omitempty"`
	Text   *string `json:"text,omitempty"`
}

// Command represents one requested mutation captured for processing at the
// next frame boundary. Commands are immutable once enqueued; payloads are
// optional pointers so partial updates never clobber untouched fields.
type Command struct {
	Kind   CommandKind `json:"kind"`
	Target ID          `json:"targetId,omitempty"`
	Agent  string      `json:"agent,omitempty"`

	// Callback is the pending-callback identifier the submitter registered
	// before enqueueing, or zero when no result delivery is expected.
	Callback ID `json:"callbackId,omitempty"`

	Entity       *EntityPayload       `json:"entity,omitempty"`
	EntityUpdate *EntityUpdatePayload `json:"entityUpdate,omitempty"`
	Camera       *CameraPayload       `json:"camera,omitempty"`
	CameraUpdate *CameraUpdatePayload `json:"cameraUpdate,omitempty"`
	Audio        *AudioPayload        `json:"audio,omitempty"`
	AudioUpdate  *AudioUpdatePayload  `json:"audioUpdate,omitempty"`
	Debug        *DebugPayload        `json:"debug,omitempty"`
	DebugUpdate  *DebugUpdatePayload  `json:"debugUpdate,omitempty"`
}
