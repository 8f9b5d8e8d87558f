package renderer

import (
	"errors"
	"fmt"
	"image"
	"slices"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f32"

	"github.com/df07/go-stochastic-viz/pkg/camera"
	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/engine"
	"github.com/df07/go-stochastic-viz/pkg/gpu"
	"github.com/df07/go-stochastic-viz/pkg/object"
)

// ErrNothingDrawn reports a frame in which no registered engine could draw
var ErrNothingDrawn = errors.New("no engine drew the image")

// Config contains compositor settings
type Config struct {
	RepetitionLevel int      // Repetitions per converged image
	Refinement      bool     // Draw one repetition per frame instead of all
	TileSize        int      // Accumulation tile size
	NumWorkers      int      // Accumulation workers (0 = use CPU count)
	Background      f32.Vec3 // Framebuffer clear color
}

// DefaultConfig returns sensible default values
func DefaultConfig() Config {
	return Config{
		RepetitionLevel: 1,
		TileSize:        64,
		NumWorkers:      0,
	}
}

// entry is a registered engine and the object it draws
type entry struct {
	engine   engine.Engine
	object   object.Object
	disabled bool   // allocation failed; never drawn again
	skipped  bool   // configuration error; excluded until Create or Setup succeeds
	reason   string // last logged skip error
}

// Compositor drives registered engines through repeated stochastic
// repetitions and averages the framebuffer into a converged image.
// It is not safe for concurrent use; the goroutine calling Frame owns the
// graphics context.
type Compositor struct {
	config  Config
	ctx     *gpu.Context
	entries []*entry
	logger  core.Logger

	fb            *gpu.Framebuffer
	width, height int // framebuffer size
	windowWidth   int
	windowHeight  int
	accum         *Accumulator
	tiles         []*Tile
	pool          *WorkerPool

	camera *camera.Camera
	light  camera.Light
}

// NewCompositor creates a compositor with its own graphics context
func NewCompositor(config Config, logger core.Logger) *Compositor {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	if config.TileSize <= 0 {
		config.TileSize = DefaultConfig().TileSize
	}
	config.RepetitionLevel = max(config.RepetitionLevel, 1)
	return &Compositor{config: config, ctx: gpu.NewContext(), logger: logger}
}

// Context returns the graphics context engines are bound to
func (c *Compositor) Context() *gpu.Context { return c.ctx }

// Framebuffer returns the framebuffer engines draw into
func (c *Compositor) Framebuffer() *gpu.Framebuffer { return c.fb }

// Register binds eng to the compositor and attaches obj to it. The returned
// id addresses the pair in Replace.
func (c *Compositor) Register(obj object.Object, eng engine.Engine) (int, error) {
	if obj == nil || eng == nil {
		return 0, fmt.Errorf("register needs an object and an engine: %w", core.ErrConfiguration)
	}
	if !eng.Accepts(obj.Kind()) {
		return 0, fmt.Errorf("%s cannot draw a %s object: %w", eng.Name(), obj.Kind(), core.ErrInputMismatch)
	}
	eng.Bind(c.ctx)
	eng.SetRepetitionLevel(c.config.RepetitionLevel)
	c.entries = append(c.entries, &entry{engine: eng, object: obj})
	return len(c.entries) - 1, nil
}

// Replace swaps the object of a registered pair. A nil eng keeps the
// current engine, which is recreated on the next frame because its object
// changed.
func (c *Compositor) Replace(id int, obj object.Object, eng engine.Engine) error {
	if id < 0 || id >= len(c.entries) {
		return fmt.Errorf("no engine with id %d: %w", id, core.ErrConfiguration)
	}
	e := c.entries[id]
	if eng == nil {
		eng = e.engine
	}
	if obj == nil || !eng.Accepts(obj.Kind()) {
		return fmt.Errorf("%s cannot draw the replacement object: %w", eng.Name(), core.ErrInputMismatch)
	}
	if eng != e.engine {
		e.engine.Release()
		eng.Bind(c.ctx)
		eng.SetRepetitionLevel(c.config.RepetitionLevel)
		e.engine = eng
		e.disabled = false
		e.skipped = false
		e.reason = ""
	}
	e.object = obj
	return nil
}

// Engines returns the registered engines in registration order
func (c *Compositor) Engines() []engine.Engine {
	engines := make([]engine.Engine, len(c.entries))
	for i, e := range c.entries {
		engines[i] = e.engine
	}
	return engines
}

// RepetitionLevel returns the repetitions per converged image
func (c *Compositor) RepetitionLevel() int { return c.config.RepetitionLevel }

// SetRepetitionLevel changes the repetitions per converged image on every
// engine and restarts accumulation
func (c *Compositor) SetRepetitionLevel(level int) {
	c.config.RepetitionLevel = max(level, 1)
	for _, e := range c.entries {
		e.engine.SetRepetitionLevel(c.config.RepetitionLevel)
	}
	c.reset()
}

// EnableRefinement draws a single repetition per frame so the image
// refines over successive frames
func (c *Compositor) EnableRefinement()  { c.config.Refinement = true }
func (c *Compositor) DisableRefinement() { c.config.Refinement = false }

// IsRefinementEnabled reports whether frames draw one repetition each
func (c *Compositor) IsRefinementEnabled() bool { return c.config.Refinement }

// IsWindowCreated reports whether the framebuffer exists
func (c *Compositor) IsWindowCreated() bool { return c.fb.IsValid() }

// IsWindowResized reports whether the framebuffer size differs from
// width x height
func (c *Compositor) IsWindowResized(width, height int) bool {
	return width != c.width || height != c.height
}

// IsObjectChanged reports whether eng is attached to a different object
// than obj
func (c *Compositor) IsObjectChanged(eng engine.Engine, obj object.Object) bool {
	return eng.Object() != obj
}

// bounds returns the union of all registered objects' bounds
func (c *Compositor) bounds() core.AABB {
	var box core.AABB
	for i, e := range c.entries {
		if i == 0 {
			box = e.object.MinMaxCoords()
		} else {
			box = box.Union(e.object.MinMaxCoords())
		}
	}
	return box
}

// ordered returns entries with volume engines last so that they see the
// depth of the opaque geometry
func (c *Compositor) ordered() []*entry {
	out := slices.Clone(c.entries)
	slices.SortStableFunc(out, func(a, b *entry) int {
		av, bv := a.engine.Accepts(object.VolumeKind), b.engine.Accepts(object.VolumeKind)
		switch {
		case av == bv:
			return 0
		case av:
			return 1
		default:
			return -1
		}
	})
	return out
}

func (c *Compositor) active(e *entry) bool {
	return !e.disabled && !e.skipped && e.engine.State() != engine.Released
}

// createWindow allocates the framebuffer, accumulation buffer and tile grid
func (c *Compositor) createWindow(width, height int) error {
	c.releaseWindow()
	fb, err := c.ctx.CreateFramebuffer(width, height)
	if err != nil {
		return fmt.Errorf("creating %dx%d framebuffer: %w", width, height, err)
	}
	c.fb = fb
	c.ctx.BindFramebuffer(fb)
	c.width, c.height = width, height
	c.accum = NewAccumulator(width, height)
	c.tiles = NewTileGrid(width, height, c.config.TileSize)
	c.pool = NewWorkerPool(c.config.NumWorkers, len(c.tiles))
	c.pool.Start()
	return nil
}

func (c *Compositor) releaseWindow() {
	if c.pool != nil {
		c.pool.Stop()
		c.pool = nil
	}
	c.fb.Release()
	c.fb = nil
	c.ctx.BindFramebuffer(nil)
	c.width, c.height = 0, 0
}

// create runs Create on an engine. An allocation failure disables the
// engine; other errors skip it for this frame.
func (c *Compositor) create(e *entry, cam *camera.Camera, light camera.Light) bool {
	err := e.engine.Create(e.object, cam, light)
	switch {
	case err == nil:
		return true
	case errors.Is(err, core.ErrResourceAllocation):
		e.engine.Release()
		e.disabled = true
		c.logger.Printf("%s disabled: %v\n", e.engine.Name(), err)
	default:
		c.skip(e, err)
	}
	return false
}

// skip excludes an engine until it recovers. Repeated failures with the
// same error are logged once.
func (c *Compositor) skip(e *entry, err error) {
	e.skipped = true
	if msg := err.Error(); msg != e.reason {
		e.reason = msg
		c.logger.Printf("%s skipped: %v\n", e.engine.Name(), err)
	}
}

// setup runs Setup on an engine and skips it on failure
func (c *Compositor) setup(e *entry, cam *camera.Camera, light camera.Light) bool {
	if err := e.engine.Setup(e.object, cam, light); err != nil {
		c.skip(e, err)
		return false
	}
	return true
}

// prepare brings an engine in line with its object and reports whether
// anything it draws changed
func (c *Compositor) prepare(e *entry, cam *camera.Camera, light camera.Light) bool {
	switch {
	case e.engine.State() == engine.Released:
		return c.create(e, cam, light)
	case c.IsObjectChanged(e.engine, e.object):
		e.engine.Release()
		return c.create(e, cam, light)
	case e.object.Version() != e.engine.ObjectVersion():
		if err := e.engine.Update(e.object, cam, light); err != nil {
			if errors.Is(err, core.ErrResourceAllocation) {
				e.engine.Release()
				e.disabled = true
				c.logger.Printf("%s disabled: %v\n", e.engine.Name(), err)
			} else {
				c.skip(e, err)
			}
			return false
		}
		return true
	}
	return false
}

// reset discards the accumulated image and restarts every engine's
// repetitions
func (c *Compositor) reset() {
	for _, e := range c.entries {
		e.engine.ResetRepetitions()
	}
	if c.accum != nil {
		c.accum.Reset()
	}
}

// Frame brings engines up to date with the camera, light and objects and
// draws the pending repetitions. Once converged, frames without changes do
// nothing and Image keeps returning the composited result.
func (c *Compositor) Frame(cam *camera.Camera, light camera.Light) error {
	width, height := cam.FramebufferSize()
	c.windowWidth, c.windowHeight = cam.WindowSize()
	fitted := cam.WithModel(core.NormalizeXform(c.bounds()))

	changed := false
	if !c.IsWindowCreated() {
		if err := c.createWindow(width, height); err != nil {
			return err
		}
		changed = true
	} else if c.IsWindowResized(width, height) {
		c.logger.Printf("Window resized to %dx%d, recreating engines\n", width, height)
		for _, e := range c.entries {
			e.engine.Release()
		}
		if err := c.createWindow(width, height); err != nil {
			return err
		}
		changed = true
	}

	for _, e := range c.entries {
		if e.disabled {
			continue
		}
		wasSkipped := e.skipped
		e.skipped = false
		updated := c.prepare(e, fitted, light)
		if !updated && wasSkipped && !e.skipped && e.engine.State() != engine.Released {
			// Setup failed on an earlier frame. Only a recovery restarts
			// the other engines' accumulation.
			updated = c.setup(e, fitted, light)
		}
		if updated {
			changed = true
		}
		if wasSkipped && !e.skipped {
			e.reason = ""
			c.logger.Printf("%s resumed\n", e.engine.Name())
		}
	}

	if changed || !fitted.Equal(c.camera) || light != c.light {
		c.camera, c.light = fitted, light
		c.reset()
	}

	if c.IsConverged() {
		return nil
	}

	passes := c.remaining()
	if c.config.Refinement {
		passes = min(passes, 1)
	}
	checkpoint := c.checkpoint()
	for i := 0; i < passes; i++ {
		if err := c.repetition(fitted, light); err != nil {
			c.restore(checkpoint)
			return err
		}
	}
	return nil
}

// frameCheckpoint is the accumulation state at the start of a frame
type frameCheckpoint struct {
	accum  *Accumulator
	counts []int
}

func (c *Compositor) checkpoint() frameCheckpoint {
	cp := frameCheckpoint{accum: c.accum.Clone(), counts: make([]int, len(c.entries))}
	for i, e := range c.entries {
		cp.counts[i] = e.engine.RepetitionCount()
	}
	return cp
}

// restore discards the repetitions drawn since cp, so a failed frame
// leaves the average and the counts of earlier frames untouched
func (c *Compositor) restore(cp frameCheckpoint) {
	c.accum.CopyFrom(cp.accum)
	for i, e := range c.entries {
		e.engine.ResetRepetitions()
		for n := 0; n < cp.counts[i]; n++ {
			e.engine.CountRepetitions()
		}
	}
}

// remaining returns the most repetitions any active engine still needs
func (c *Compositor) remaining() int {
	n := 0
	for _, e := range c.entries {
		if c.active(e) {
			n = max(n, e.engine.RepetitionLevel()-e.engine.RepetitionCount())
		}
	}
	return n
}

// repetition draws one repetition of every unconverged engine and
// accumulates the framebuffer. A draw error abandons the repetition; Frame
// then rolls back the whole frame.
func (c *Compositor) repetition(cam *camera.Camera, light camera.Light) error {
	c.fb.Clear(c.config.Background)

	var drawn []*entry
	for _, e := range c.ordered() {
		if !c.active(e) || e.engine.RepetitionCount() >= e.engine.RepetitionLevel() {
			continue
		}
		if !c.setup(e, cam, light) {
			continue
		}
		if err := e.engine.Draw(e.object, cam, light); err != nil {
			return fmt.Errorf("%s: draw: %w", e.engine.Name(), err)
		}
		drawn = append(drawn, e)
	}
	if len(drawn) == 0 {
		return nil
	}
	for _, e := range drawn {
		e.engine.CountRepetitions()
	}
	return c.accumulate()
}

// accumulate blends the framebuffer into the average tile by tile on the
// worker pool
func (c *Compositor) accumulate() error {
	sample := c.accum.Begin()
	for i, tile := range c.tiles {
		c.pool.SubmitTask(TileTask{
			Tile:        tile,
			Sample:      sample,
			TaskID:      i,
			Framebuffer: c.fb,
			Accumulator: c.accum,
		})
	}
	for range c.tiles {
		result, ok := c.pool.GetResult()
		if !ok {
			return fmt.Errorf("worker pool closed unexpectedly")
		}
		if result.Error != nil {
			return result.Error
		}
		c.tiles[result.TaskID].PassesCompleted++
	}
	return nil
}

// IsConverged reports whether every active engine drew all of its
// repetitions
func (c *Compositor) IsConverged() bool {
	for _, e := range c.entries {
		if c.active(e) && e.engine.RepetitionCount() < e.engine.RepetitionLevel() {
			return false
		}
	}
	return true
}

// Image returns the composited image at window size. Framebuffers larger
// than the window (device pixel ratio > 1) are downsampled.
func (c *Compositor) Image() *image.RGBA {
	if c.accum == nil {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	img := c.accum.Image()
	if c.windowWidth <= 0 || c.windowHeight <= 0 || (c.windowWidth == c.width && c.windowHeight == c.height) {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, c.windowWidth, c.windowHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Stats summarizes the compositor state
func (c *Compositor) Stats() RenderStats {
	stats := RenderStats{
		RepetitionLevel: c.config.RepetitionLevel,
		Engines:         len(c.entries),
		Width:           c.width,
		Height:          c.height,
	}
	if c.accum != nil {
		stats.Repetitions = c.accum.Samples()
	}
	for _, e := range c.entries {
		switch {
		case e.disabled:
			stats.DisabledEngines++
		case e.skipped:
			stats.SkippedEngines++
		case c.active(e):
			stats.ActiveEngines++
		}
	}
	return stats
}

// Release frees every engine and the framebuffer
func (c *Compositor) Release() {
	for _, e := range c.entries {
		e.engine.Release()
	}
	c.releaseWindow()
	c.accum = nil
	c.tiles = nil
	c.camera = nil
}
