package pipeline

// State snapshots are plain value types: every field is copyable by
// assignment, so buffer copies during a swap and snapshot exports for the
// inspector never share memory with live state.

// EntityState is the renderable snapshot of one entity.
type EntityState struct {
	ID        ID     `json:"id"`
	Archetype string `json:"archetype"`
	Position  Vec3   `json:"position"`
	Rotation  Vec3   `json:"rotation"`
	Scale     Vec3   `json:"scale"`
	Tint      Color  `json:"tint"`
	Active    bool   `json:"active"`

	// RetiredFrame is the frame on which the entity was soft-deleted; zero
	// while the entity is live. Consumers may render a retired entity for
	// one more frame before the sweep reclaims it.
	RetiredFrame uint64 `json:"retiredFrame,omitempty"`
}

// CameraState is the snapshot of one camera.
type CameraState struct {
	ID           ID      `json:"id"`
	Position     Vec3    `json:"position"`
	Target       Vec3    `json:"target"`
	Up           Vec3    `json:"up"`
	FOV          float64 `json:"fov"`
	Near         float64 `json:"near"`
	Far          float64 `json:"far"`
	Active       bool    `json:"active"`
	RetiredFrame uint64  `json:"retiredFrame,omitempty"`
}

// AudioState is the snapshot of one audio source.
type AudioState struct {
	ID           ID      `json:"id"`
	Sample       string  `json:"sample"`
	Frequency    float64 `json:"frequency"`
	Gain         float64 `json:"gain"`
	Loop         bool    `json:"loop"`
	Playing      bool    `json:"playing"`
	Active       bool    `json:"active"`
	RetiredFrame uint64  `json:"retiredFrame,omitempty"`

	// Cue increments every time playback is (re)triggered so backends can
	// distinguish a retrigger from an unchanged playing source.
	Cue uint64 `json:"cue,omitempty"`
}

// DebugState is the snapshot of one debug primitive.
type DebugState struct {
	ID           ID         `json:"id"`
	Shape        DebugShape `json:"shape"`
	From         Vec3       `json:"from"`
	To           Vec3       `json:"to"`
	Stroke       Color      `json:"stroke"`
	Text         string     `json:"text,omitempty"`
	Active       bool       `json:"active"`
	RetiredFrame uint64     `json:"retiredFrame,omitempty"`

	// ExpiresFrame is the frame at which a TTL-limited primitive retires
	// itself; zero means no expiry.
	ExpiresFrame uint64 `json:"expiresFrame,omitempty"`
}
