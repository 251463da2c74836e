// Package host shows a bridge session in an ebiten window with oto audio.
//
// The emulation goroutine owns the session: it runs frames, applies reset
// requests and finally unloads and deinitializes the core. Ebiten's
// goroutine polls input, which it writes straight into the session's
// atomic input table, and draws whatever frame arrived last.
package host

import (
	"fmt"
	"log"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/user-none/retrobridge/bridge"
	"github.com/user-none/retrobridge/config"
	"github.com/user-none/retrobridge/retro"
)

var (
	_ bridge.BatchHost = (*Runner)(nil)
	_ ebiten.Game      = (*Runner)(nil)
)

// Runner is both the session's Host and the ebiten.Game.
type Runner struct {
	cfg      *config.Config
	title    string
	session  *bridge.Session
	frame    *sharedFrame
	bindings bindings
	control  *control
	audio    *audioPlayer
	pacer    pacer
	aspect   float64

	// emulation goroutine only
	samples []int16

	// ebiten goroutine only
	pads      []ebiten.GamepadID
	offscreen *ebiten.Image
	drawOpts  ebiten.DrawImageOptions
	drawn     uint64

	done chan struct{}
	err  error // written before done is closed
}

// NewRunner creates a runner sized by cfg.Video. Pass it to
// Session.Initialize before loading a game.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{
		cfg:      cfg,
		frame:    newSharedFrame(cfg.Video.MaxWidth, cfg.Video.MaxHeight),
		bindings: newBindings(cfg.Input),
		control:  newControl(),
		done:     make(chan struct{}),
	}
}

// OnVideoFrame converts the frame immediately; pixels is not kept.
func (r *Runner) OnVideoFrame(pixels []uint16, width, height int) {
	if !r.frame.Update(pixels, width, height) {
		log.Printf("Warning: dropped %dx%d frame larger than %dx%d",
			width, height, r.cfg.Video.MaxWidth, r.cfg.Video.MaxHeight)
	}
}

func (r *Runner) OnAudioSample(left, right int16) {
	r.samples = append(r.samples, left, right)
}

func (r *Runner) OnAudioBatch(samples []int16) {
	r.samples = append(r.samples, samples...)
}

// Run drives s until the window closes or a session call fails. s must be
// initialized with r as its host and have a game loaded. The game is
// unloaded and the session deinitialized before Run returns.
func (r *Runner) Run(s *bridge.Session, title string, av retro.AVInfo) error {
	r.session = s
	r.title = title
	r.pacer = newPacer(av.Timing.FPS, av.Timing.SampleRate)
	r.aspect = av.Geometry.AspectRatio

	w, h := windowSize(av.Geometry, r.cfg.Video.Scale)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(w, h)
	ebiten.SetTPS(60)

	rate := int(av.Timing.SampleRate)
	if rate <= 0 {
		rate = defaultSampleRate
	}
	volume := r.cfg.Audio.Volume
	if !r.cfg.Audio.Enabled {
		// Keep the player so it still paces emulation.
		volume = 0
	}
	player, err := newAudioPlayer(rate, volume)
	if err != nil {
		log.Printf("Warning: audio initialization failed: %v", err)
	} else {
		r.audio = player
	}

	go r.emulationLoop()

	err = ebiten.RunGame(r)

	r.control.Stop()
	<-r.done
	if r.audio != nil {
		r.audio.Close()
	}
	if err != nil {
		return err
	}
	return r.err
}

func (r *Runner) emulationLoop() {
	defer close(r.done)
	defer r.shutdown()

	last := time.Now()
	for {
		run, reset := r.control.next()
		if !run {
			return
		}
		if reset {
			if err := r.session.Reset(); err != nil {
				r.err = fmt.Errorf("reset: %w", err)
				return
			}
		}
		if err := r.session.RunFrame(); err != nil {
			r.err = fmt.Errorf("run frame: %w", err)
			return
		}

		buffered := -1
		if r.audio != nil {
			r.audio.Queue(r.samples)
			buffered = r.audio.Buffered()
		}
		r.samples = r.samples[:0]

		if d := r.pacer.sleep(time.Since(last), buffered); d > 0 {
			time.Sleep(d)
		}
		last = time.Now()
	}
}

func (r *Runner) shutdown() {
	if err := r.session.UnloadGame(); err != nil {
		log.Printf("Warning: unload: %v", err)
	}
	if err := r.session.Deinit(); err != nil {
		log.Printf("Warning: deinit: %v", err)
	}
}

// Update implements ebiten.Game.
func (r *Runner) Update() error {
	select {
	case <-r.done:
		return ebiten.Termination
	default:
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	r.pads = ebiten.AppendGamepadIDs(r.pads[:0])
	applyMasks(r.session, r.bindings.poll(r.pads))

	if inpututil.IsKeyJustPressed(ebiten.KeyF1) {
		r.control.RequestReset()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		r.togglePause()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		if err := r.screenshot(); err != nil {
			log.Printf("Warning: screenshot: %v", err)
		}
	}
	return nil
}

func (r *Runner) togglePause() {
	if r.control.TogglePause() {
		if r.audio != nil {
			r.audio.Clear()
		}
		ebiten.SetWindowTitle(r.title + " (paused)")
		return
	}
	ebiten.SetWindowTitle(r.title)
}

// Draw implements ebiten.Game.
func (r *Runner) Draw(screen *ebiten.Image) {
	pixels, w, h, serial := r.frame.Read()
	if w == 0 || h == 0 {
		return
	}

	if r.offscreen == nil || r.offscreen.Bounds().Dx() != w || r.offscreen.Bounds().Dy() != h {
		r.offscreen = ebiten.NewImage(w, h)
		r.drawn = 0
	}
	if serial != r.drawn {
		r.offscreen.WritePixels(pixels)
		r.drawn = serial
	}

	sb := screen.Bounds()
	sx, sy, ox, oy := fitFrame(sb.Dx(), sb.Dy(), w, h, r.aspect)
	r.drawOpts = ebiten.DrawImageOptions{}
	r.drawOpts.GeoM.Scale(sx, sy)
	r.drawOpts.GeoM.Translate(ox, oy)
	r.drawOpts.Filter = ebiten.FilterNearest
	screen.DrawImage(r.offscreen, &r.drawOpts)
}

// Layout implements ebiten.Game.
func (r *Runner) Layout(outsideWidth, outsideHeight int) (int, int) {
	s := 1.0
	if m := ebiten.Monitor(); m != nil {
		s = m.DeviceScaleFactor()
	}
	return int(float64(outsideWidth) * s), int(float64(outsideHeight) * s)
}

func (r *Runner) screenshot() error {
	img := r.frame.Snapshot()
	if img == nil {
		return nil
	}
	data, err := encodePNG(scaleImage(img, r.cfg.Video.Scale))
	if err != nil {
		return err
	}
	dir, err := r.cfg.ScreenshotPath()
	if err != nil {
		return err
	}
	path, err := saveScreenshot(dir, r.title, data, time.Now())
	if err != nil {
		return err
	}
	log.Printf("Screenshot saved to %s", path)

	if err := copyImageToClipboard(data); err != nil {
		log.Printf("Warning: %v", err)
	}
	return nil
}

// windowSize returns the initial window size for a core's geometry.
func windowSize(g retro.Geometry, scale int) (int, int) {
	w, h := g.BaseWidth, g.BaseHeight
	if w <= 0 || h <= 0 {
		w, h = bridge.DefaultMaxWidth, bridge.DefaultMaxHeight
	}
	if scale < 1 {
		scale = 1
	}
	height := h * scale
	width := w * scale
	if g.AspectRatio > 0 {
		width = int(float64(height)*g.AspectRatio + 0.5)
	}
	return width, height
}

// fitFrame scales a w×h frame to fill a screen while keeping the display
// aspect ratio (w/h when aspect is not positive) and centres it.
func fitFrame(screenW, screenH, w, h int, aspect float64) (sx, sy, ox, oy float64) {
	if aspect <= 0 {
		aspect = float64(w) / float64(h)
	}
	dispW := float64(screenW)
	dispH := dispW / aspect
	if dispH > float64(screenH) {
		dispH = float64(screenH)
		dispW = dispH * aspect
	}
	sx = dispW / float64(w)
	sy = dispH / float64(h)
	ox = (float64(screenW) - dispW) / 2
	oy = (float64(screenH) - dispH) / 2
	return sx, sy, ox, oy
}
