// Package engine implements the stochastic rendering engines. Each engine
// draws one object category with a create, update, setup, draw and release
// lifecycle; a repetition draws one stochastic sample of the object, and the
// compositor averages repetitions into a stable image.
//
// Engines assume the gpu.Context they are bound to is owned by the calling
// goroutine and do no locking.
package engine

import (
	"fmt"

	"github.com/df07/go-stochastic-viz/pkg/camera"
	"github.com/df07/go-stochastic-viz/pkg/gpu"
	"github.com/df07/go-stochastic-viz/pkg/object"
	"github.com/df07/go-stochastic-viz/pkg/shading"
)

// State is the lifecycle state of an engine
type State int

const (
	Released State = iota
	Created
	Ready
)

func (s State) String() string {
	switch s {
	case Released:
		return "released"
	case Created:
		return "created"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Engine draws one object with repeated stochastic sampling
type Engine interface {
	// Name identifies the engine in logs
	Name() string
	// Accepts reports whether objects of kind k can be drawn
	Accepts(k object.Kind) bool

	// Create allocates resources for obj: Released -> Created
	Create(obj object.Object, cam *camera.Camera, light camera.Light) error
	// Update re-uploads changed object data: Created/Ready -> Ready
	Update(obj object.Object, cam *camera.Camera, light camera.Light) error
	// Setup binds per-pass state. Calling it twice is harmless.
	Setup(obj object.Object, cam *camera.Camera, light camera.Light) error
	// Draw renders the current repetition into the bound framebuffer
	Draw(obj object.Object, cam *camera.Camera, light camera.Light) error
	// Release frees every resource: any -> Released
	Release()

	Bind(ctx *gpu.Context)
	State() State
	Object() object.Object
	ObjectVersion() uint64

	RepetitionLevel() int
	SetRepetitionLevel(level int)
	RepetitionCount() int
	ResetRepetitions()
	CountRepetitions()
}

// Config holds the settings shared by all engines
type Config struct {
	RepetitionLevel   int           // Repetitions per converged image
	RandomTextureSize int           // Side of the random-number texture
	Seed              uint64        // Seed of the random texture and indices
	EnableShading     bool          // Apply the shading model
	Shading           shading.Model // Initial shading model
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		RepetitionLevel:   1,
		RandomTextureSize: 512,
		Seed:              1,
		EnableShading:     true,
		Shading:           shading.NewLambert(),
	}
}

// Texture units used by the engines
const (
	RandomTextureUnit   = 0
	DepthTextureUnit    = 1
	VolumeTextureUnit   = 2
	TransferTextureUnit = 3
)
