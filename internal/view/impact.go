package view

import (
	"math"

	"physworld/internal/physics"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Listener represents the audio listener position and orientation
type Listener struct {
	Position rl.Vector3
	Forward  rl.Vector3
	Right    rl.Vector3
}

// NewListener builds a listener from a camera position and view direction.
func NewListener(pos, forward, up rl.Vector3) Listener {
	l := Listener{Position: pos}

	// Normalize forward, default to -Z if zero
	if fwdLen := rl.Vector3Length(forward); fwdLen > 0.001 {
		l.Forward = rl.Vector3Scale(forward, 1.0/fwdLen)
	} else {
		l.Forward = rl.Vector3{X: 0, Y: 0, Z: -1}
	}

	// Right vector (forward x up)
	right := rl.Vector3CrossProduct(l.Forward, up)
	if rightLen := rl.Vector3Length(right); rightLen > 0.001 {
		l.Right = rl.Vector3Scale(right, 1.0/rightLen)
	} else {
		l.Right = rl.Vector3{X: 1, Y: 0, Z: 0}
	}
	return l
}

// Spatialize returns the volume and pan (0 left, 0.5 center, 1 right) of a
// sound at pos with linear falloff to maxDistance.
func (l Listener) Spatialize(pos rl.Vector3, volume, maxDistance float32) (float32, float32) {
	toSource := rl.Vector3Subtract(pos, l.Position)
	distance := rl.Vector3Length(toSource)

	if distance >= maxDistance {
		return 0, 0.5
	}
	volume *= 1.0 - distance/maxDistance

	var pan float32 = 0.5
	if distance > 0.001 {
		direction := rl.Vector3Scale(toSource, 1.0/distance)
		pan = 0.5 + rl.Vector3DotProduct(direction, l.Right)*0.5
		pan = rl.Clamp(pan, 0, 1)

		// Sounds behind are slightly quieter
		frontDot := rl.Vector3DotProduct(direction, l.Forward)
		if frontDot < 0 {
			volume *= 0.7 + 0.3*float32(math.Abs(float64(frontDot)))
		}
	}
	return volume, pan
}

// Impacts plays a sound when colliders start touching, louder for deeper
// contacts.
type Impacts struct {
	sound       rl.Sound
	loaded      bool
	listener    Listener
	pending     []physics.Contact
	MaxDistance float32
	// FullDepth is the penetration that plays at full volume.
	FullDepth float32
}

// NewImpacts loads the impact sound and subscribes to w's contact events.
// Without a sound file it only tracks contacts. Call rl.InitAudioDevice first.
func NewImpacts(w *physics.World, path string) *Impacts {
	im := &Impacts{MaxDistance: 50, FullDepth: 0.05}
	if path != "" {
		im.sound = rl.LoadSound(path)
		im.loaded = rl.IsSoundValid(im.sound)
	}
	im.Attach(w)
	return im
}

// Attach subscribes to another world, for example after a reload.
func (im *Impacts) Attach(w *physics.World) {
	im.pending = im.pending[:0]
	w.OnContactEnter.AddListener(func(ct physics.Contact) {
		im.pending = append(im.pending, ct)
	})
}

func (im *Impacts) SetListener(l Listener) { im.listener = l }

// Loudness is the base volume of a contact before spatialization.
func (im *Impacts) Loudness(ct physics.Contact) float32 {
	if ct.A.Sensor() || ct.B.Sensor() {
		return 0
	}
	if im.FullDepth <= 0 {
		return 1
	}
	return rl.Clamp(ct.Depth/im.FullDepth, 0.1, 1)
}

// Update plays the loudest contact that started since the last call.
func (im *Impacts) Update() {
	defer func() { im.pending = im.pending[:0] }()
	if !im.loaded {
		return
	}
	_, volume, pan, ok := im.loudest()
	if !ok {
		return
	}
	rl.SetSoundVolume(im.sound, volume)
	rl.SetSoundPan(im.sound, pan)
	rl.PlaySound(im.sound)
}

// loudest picks the queued contact with the highest spatialized volume.
// Contacts whose colliders were destroyed after they were queued are skipped.
func (im *Impacts) loudest() (physics.Contact, float32, float32, bool) {
	var best physics.Contact
	var bestVolume, bestPan float32
	for _, ct := range im.pending {
		if ct.A.IsDestroyed() || ct.B.IsDestroyed() {
			continue
		}
		at := ct.A.Position()
		if len(ct.Points) > 0 {
			at = ct.Points[0]
		}
		v, pan := im.listener.Spatialize(at, im.Loudness(ct), im.MaxDistance)
		if v > bestVolume {
			best, bestVolume, bestPan = ct, v, pan
		}
	}
	return best, bestVolume, bestPan, best.A != nil && bestVolume > 0
}

func (im *Impacts) Unload() {
	if im.loaded {
		rl.UnloadSound(im.sound)
		im.loaded = false
	}
}
