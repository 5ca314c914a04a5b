package view

import (
	"fmt"
	"log"

	"physworld/internal/physics"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// Theme colors - indigo dark theme
var (
	colorBgDark    = rl.NewColor(10, 10, 15, 255)
	colorBgPanel   = rl.NewColor(18, 18, 24, 245)
	colorBgElement = rl.NewColor(28, 28, 38, 255)
	colorBgHover   = rl.NewColor(38, 38, 52, 255)

	colorAccent        = rl.NewColor(108, 99, 255, 255)
	colorTextPrimary   = rl.NewColor(255, 255, 255, 255)
	colorTextSecondary = rl.NewColor(200, 200, 208, 255)
	colorTextMuted     = rl.NewColor(119, 119, 119, 255)
)

const (
	panelWidth  = 260
	panelMargin = 10
	rowHeight   = 22
)

var uiFont rl.Font

// InitStyle applies the panel theme. fontPath may be empty to keep the
// default raylib font.
func InitStyle(fontPath string) {
	if fontPath != "" {
		uiFont = rl.LoadFontEx(fontPath, 48, nil)
		if uiFont.Texture.ID > 0 {
			rl.SetTextureFilter(uiFont.Texture, rl.FilterBilinear)
			gui.SetFont(uiFont)
		} else {
			log.Printf("View: failed to load font %s", fontPath)
		}
	}

	gui.SetStyle(gui.DEFAULT, gui.BACKGROUND_COLOR, gui.NewColorPropertyValue(colorBgDark))
	gui.SetStyle(gui.DEFAULT, gui.BASE_COLOR_NORMAL, gui.NewColorPropertyValue(colorBgElement))
	gui.SetStyle(gui.DEFAULT, gui.BASE_COLOR_FOCUSED, gui.NewColorPropertyValue(colorBgHover))
	gui.SetStyle(gui.DEFAULT, gui.BASE_COLOR_PRESSED, gui.NewColorPropertyValue(colorAccent))

	gui.SetStyle(gui.DEFAULT, gui.TEXT_COLOR_NORMAL, gui.NewColorPropertyValue(colorTextSecondary))
	gui.SetStyle(gui.DEFAULT, gui.TEXT_COLOR_FOCUSED, gui.NewColorPropertyValue(colorTextPrimary))
	gui.SetStyle(gui.DEFAULT, gui.TEXT_COLOR_PRESSED, gui.NewColorPropertyValue(colorTextPrimary))

	gui.SetStyle(gui.DEFAULT, gui.BORDER_COLOR_NORMAL, gui.NewColorPropertyValue(rl.NewColor(50, 50, 65, 255)))
	gui.SetStyle(gui.DEFAULT, gui.BORDER_COLOR_FOCUSED, gui.NewColorPropertyValue(colorAccent))
	gui.SetStyle(gui.DEFAULT, gui.LINE_COLOR, gui.NewColorPropertyValue(rl.NewColor(40, 40, 55, 255)))
	gui.SetStyle(gui.DEFAULT, gui.TEXT_SIZE, 15)
}

// UnloadStyle frees the font loaded by InitStyle.
func UnloadStyle() {
	if uiFont.Texture.ID > 0 {
		rl.UnloadFont(uiFont)
		uiFont = rl.Font{}
	}
}

// Panel holds the simulation controls shown in the side panel.
type Panel struct {
	Paused    bool
	StepOnce  bool
	Reload    bool
	TimeScale float32
	Draw      Options
}

func NewPanel() *Panel {
	return &Panel{
		TimeScale: 1,
		Draw:      Options{Contacts: true, Joints: true},
	}
}

// Info is the read-only text shown in the panel.
type Info struct {
	Backend string
	Scene   string
	Script  string
	Stats   Stats
	FPS     int32
	Status  string
}

type layout struct {
	x, y float32
}

func (l *layout) row(h float32) rl.Rectangle {
	r := rl.Rectangle{X: l.x, Y: l.y, Width: panelWidth - 2*panelMargin, Height: h}
	l.y += h + 4
	return r
}

func (l *layout) label(text string, col rl.Color) {
	r := l.row(rowHeight - 6)
	rl.DrawText(text, int32(r.X), int32(r.Y), 14, col)
}

// Update draws the panel and applies its controls to the world and the
// selected collider. Reload and StepOnce are set for one frame when clicked.
func (p *Panel) Update(w *physics.World, info Info) {
	p.StepOnce, p.Reload = false, false
	height := float32(rl.GetScreenHeight())
	rl.DrawRectangle(0, 0, panelWidth, int32(height), colorBgPanel)

	l := &layout{x: panelMargin, y: panelMargin}
	l.label(fmt.Sprintf("%s | %d fps", info.Backend, info.FPS), colorTextPrimary)
	l.label(info.Scene, colorTextSecondary)
	if info.Script != "" {
		l.label(info.Script, colorTextSecondary)
	}
	l.label(fmt.Sprintf("colliders %d  joints %d", w.ColliderCount(), w.JointCount()), colorTextMuted)
	l.label(fmt.Sprintf("drawn %d  culled %d  contacts %d", info.Stats.Drawn, info.Stats.Culled, len(w.Contacts())), colorTextMuted)

	buttons := l.row(rowHeight)
	third := (buttons.Width - 8) / 3
	pauseLabel := "Pause"
	if p.Paused {
		pauseLabel = "Play"
	}
	if gui.Button(rl.Rectangle{X: buttons.X, Y: buttons.Y, Width: third, Height: rowHeight}, pauseLabel) {
		p.Paused = !p.Paused
	}
	if gui.Button(rl.Rectangle{X: buttons.X + third + 4, Y: buttons.Y, Width: third, Height: rowHeight}, "Step") {
		p.StepOnce = true
	}
	if gui.Button(rl.Rectangle{X: buttons.X + 2*(third+4), Y: buttons.Y, Width: third, Height: rowHeight}, "Reload") {
		p.Reload = true
	}

	p.TimeScale = gui.Slider(l.row(rowHeight), "", fmt.Sprintf("x%.2f", p.TimeScale), p.TimeScale, 0.05, 2)
	p.Draw.Contacts = gui.CheckBox(l.row(rowHeight-6), "Contacts", p.Draw.Contacts)
	p.Draw.Joints = gui.CheckBox(l.row(rowHeight-6), "Joints", p.Draw.Joints)
	p.Draw.Bounds = gui.CheckBox(l.row(rowHeight-6), "Bounds", p.Draw.Bounds)

	allowSleep := gui.CheckBox(l.row(rowHeight-6), "Sleeping", w.SleepingAllowed())
	if allowSleep != w.SleepingAllowed() {
		w.SetSleepingAllowed(allowSleep)
	}

	if c := p.Draw.Selected; c != nil && !c.IsDestroyed() {
		p.inspect(l, c)
	} else {
		p.Draw.Selected = nil
	}

	if info.Status != "" {
		rl.DrawText(info.Status, panelMargin, int32(height)-24, 14, colorAccent)
	}
}

// inspect shows the selected collider.
func (p *Panel) inspect(l *layout, c *physics.Collider) {
	l.y += 8
	l.label(c.String(), colorTextPrimary)
	if tag := c.Tag(); tag != "" {
		l.label("tag "+tag, colorTextSecondary)
	}
	pos := c.Position()
	l.label(fmt.Sprintf("pos %.2f %.2f %.2f", pos.X, pos.Y, pos.Z), colorTextMuted)
	vel := c.LinearVelocity()
	l.label(fmt.Sprintf("vel %.2f %.2f %.2f", vel.X, vel.Y, vel.Z), colorTextMuted)
	l.label(fmt.Sprintf("mass %.2f  awake %v", c.Mass(), c.Awake()), colorTextMuted)

	kinematic := gui.CheckBox(l.row(rowHeight-6), "Kinematic", c.Kinematic())
	if kinematic != c.Kinematic() {
		c.SetKinematic(kinematic)
	}
	enabled := gui.CheckBox(l.row(rowHeight-6), "Enabled", c.Enabled())
	if enabled != c.Enabled() {
		c.SetEnabled(enabled)
	}
	friction := gui.Slider(l.row(rowHeight), "", fmt.Sprintf("friction %.2f", c.Friction()), c.Friction(), 0, 2)
	if friction != c.Friction() {
		c.SetFriction(friction)
	}
	restitution := gui.Slider(l.row(rowHeight), "", fmt.Sprintf("bounce %.2f", c.Restitution()), c.Restitution(), 0, 1)
	if restitution != c.Restitution() {
		c.SetRestitution(restitution)
	}
	gravity := gui.Slider(l.row(rowHeight), "", fmt.Sprintf("gravity x%.2f", c.GravityScale()), c.GravityScale(), -1, 2)
	if gravity != c.GravityScale() {
		c.SetGravityScale(gravity)
	}
}

// OverPanel reports whether the mouse is over the side panel.
func OverPanel() bool {
	return rl.GetMousePosition().X < panelWidth
}

// Pick returns the closest collider under the mouse, ignoring clicks on the panel.
func Pick(w *physics.World, cam rl.Camera3D, reach float32) (*physics.Collider, rl.Vector3, bool) {
	if OverPanel() {
		return nil, rl.Vector3{}, false
	}
	ray := rl.GetScreenToWorldRay(rl.GetMousePosition(), cam)
	hit, ok := w.RaycastClosest(ray.Position, rl.Vector3Scale(ray.Direction, reach), physics.AllTags)
	if !ok {
		return nil, rl.Vector3{}, false
	}
	return hit.Collider, hit.Position, true
}
