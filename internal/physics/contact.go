package physics

import (
	"slices"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Contact is a touching pair of colliders found by the last Step.
// Normal points from A to B.
type Contact struct {
	A, B   *Collider
	Normal rl.Vector3
	Points []rl.Vector3
	Depth  float32
}

// Other returns the collider in the contact that is not c.
func (ct Contact) Other(c *Collider) *Collider {
	if ct.A == c {
		return ct.B
	}
	return ct.A
}

// contactKey identifies a collider pair regardless of order (smaller id first).
type contactKey struct {
	lo, hi uint64
}

func makeContactKey(a, b *Collider) contactKey {
	if a.id < b.id {
		return contactKey{a.id, b.id}
	}
	return contactKey{b.id, a.id}
}

// Contacts returns a copy of the contacts of the last step. The result stays
// valid across later steps.
func (w *World) Contacts() []Contact {
	if len(w.contacts) == 0 {
		return nil
	}
	out := make([]Contact, len(w.contacts))
	for i, ct := range w.contacts {
		ct.Points = slices.Clone(ct.Points)
		out[i] = ct
	}
	return out
}

// collectContacts resolves the backend's contact list to colliders and
// sorts pairs into entered and exited since the previous step.
func (w *World) collectContacts() {
	w.contacts = w.contacts[:0]
	w.pendingEnter = w.pendingEnter[:0]
	w.pendingExit = w.pendingExit[:0]
	clear(w.currentContactSet)

	for _, cp := range w.backend.Contacts() {
		a, b := w.colliderOf(cp.A), w.colliderOf(cp.B)
		if a == nil || b == nil {
			continue
		}
		ct := Contact{A: a, B: b, Normal: cp.Normal, Points: cp.Points, Depth: cp.Depth}
		key := makeContactKey(a, b)
		if _, seen := w.currentContactSet[key]; seen {
			continue
		}
		w.currentContactSet[key] = ct
		w.contacts = append(w.contacts, ct)
		if _, active := w.activeContacts[key]; !active {
			w.pendingEnter = append(w.pendingEnter, ct)
		}
	}

	for key, ct := range w.activeContacts {
		if _, still := w.currentContactSet[key]; still {
			continue
		}
		// Pairs that lost a collider end silently
		if ct.A.destroyed || ct.B.destroyed {
			continue
		}
		w.pendingExit = append(w.pendingExit, ct)
	}

	// Swap so the current set becomes active for the next step
	w.activeContacts, w.currentContactSet = w.currentContactSet, w.activeContacts
}

// dispatchContacts fires enter, stay and exit events. Listeners may destroy
// colliders; contacts whose colliders are gone by the time they are reached
// are skipped.
func (w *World) dispatchContacts() {
	live := func(ct Contact) bool { return !ct.A.destroyed && !ct.B.destroyed }
	for _, ct := range w.pendingEnter {
		if live(ct) {
			w.OnContactEnter.Invoke(ct)
		}
	}
	for _, ct := range w.contacts {
		if live(ct) {
			w.OnContact.Invoke(ct)
		}
	}
	for _, ct := range w.pendingExit {
		if live(ct) {
			w.OnContactExit.Invoke(ct)
		}
	}
}
