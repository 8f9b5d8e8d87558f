// Package pipeline chains an imported object through mappers to the
// rendering engine that draws the result.
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/engine"
	"github.com/df07/go-stochastic-viz/pkg/loaders"
	"github.com/df07/go-stochastic-viz/pkg/mapper"
	"github.com/df07/go-stochastic-viz/pkg/object"
	"github.com/df07/go-stochastic-viz/pkg/renderer"
	"github.com/df07/go-stochastic-viz/pkg/transfer"
)

// Pipeline runs Import -> Mapper(s) -> Engine
type Pipeline struct {
	source  string
	input   object.Object
	mappers []mapper.Mapper
	outputs []object.Object

	engine           engine.Engine
	engineConfig     engine.Config
	transferFunction *transfer.TransferFunction
	executed         bool

	logger core.Logger
}

// New creates an empty pipeline. A nil logger logs to stdout.
func New(logger core.Logger) *Pipeline {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return &Pipeline{engineConfig: engine.DefaultConfig(), logger: logger}
}

// Import loads the pipeline input from a registered dataset or a file
func (p *Pipeline) Import(source string) error {
	start := time.Now()
	var obj object.Object
	var err error
	if IsDataset(source) {
		obj, err = CreateDataset(source)
	} else {
		obj, err = loaders.Load(source)
	}
	if err != nil {
		return fmt.Errorf("import %s: %w", source, err)
	}
	p.logger.Printf("Imported %s: %s object with %d primitives in %v\n",
		source, obj.Kind(), obj.NumPrimitives(), time.Since(start))
	p.source = source
	p.SetInput(obj)
	return nil
}

// SetInput replaces the input object
func (p *Pipeline) SetInput(obj object.Object) {
	p.input = obj
	p.executed = false
}

// Input returns the imported object
func (p *Pipeline) Input() object.Object { return p.input }

// Connect appends a mapper; mappers run in connection order
func (p *Pipeline) Connect(m mapper.Mapper) *Pipeline {
	p.mappers = append(p.mappers, m)
	p.executed = false
	return p
}

// SetEngine overrides the engine chosen from the output kind
func (p *Pipeline) SetEngine(e engine.Engine) { p.engine = e }

// SetEngineConfig sets the configuration of the default engine
func (p *Pipeline) SetEngineConfig(config engine.Config) { p.engineConfig = config }

// SetTransferFunction sets the transfer function of a default volume engine
func (p *Pipeline) SetTransferFunction(tf *transfer.TransferFunction) { p.transferFunction = tf }

// Exec runs every mapper over the input and selects the engine for the
// final object
func (p *Pipeline) Exec() error {
	p.executed = false
	p.outputs = p.outputs[:0]
	if p.input == nil {
		return fmt.Errorf("pipeline has no input: %w", core.ErrConfiguration)
	}

	current := p.input
	for _, m := range p.mappers {
		start := time.Now()
		out, err := m.Exec(current)
		if err != nil {
			return fmt.Errorf("mapper %s: %w", m.Name(), err)
		}
		p.logger.Printf("Mapped by %s: %s object with %d primitives in %v\n",
			m.Name(), out.Kind(), out.NumPrimitives(), time.Since(start))
		p.outputs = append(p.outputs, out)
		current = out
	}

	if p.engine == nil {
		e, err := DefaultEngine(current.Kind(), p.engineConfig, p.transferFunction)
		if err != nil {
			return err
		}
		p.engine = e
	} else if !p.engine.Accepts(current.Kind()) {
		return fmt.Errorf("%s cannot draw a %s object: %w", p.engine.Name(), current.Kind(), core.ErrInputMismatch)
	}
	p.executed = true
	return nil
}

// Object returns the final object, nil before a successful Exec
func (p *Pipeline) Object() object.Object {
	if !p.executed {
		return nil
	}
	if len(p.outputs) > 0 {
		return p.outputs[len(p.outputs)-1]
	}
	return p.input
}

// Engine returns the engine drawing the final object
func (p *Pipeline) Engine() engine.Engine { return p.engine }

// Register hands the final object and its engine to a compositor
func (p *Pipeline) Register(c *renderer.Compositor) (int, error) {
	if !p.executed {
		return -1, fmt.Errorf("pipeline not executed: %w", core.ErrConfiguration)
	}
	return c.Register(p.Object(), p.engine)
}

// DefaultEngine returns the engine that draws objects of kind k
func DefaultEngine(k object.Kind, config engine.Config, tf *transfer.TransferFunction) (engine.Engine, error) {
	switch k {
	case object.PointKind, object.TableKind:
		return engine.NewParticleEngine(config), nil
	case object.LineKind:
		return engine.NewLineEngine(config), nil
	case object.PolygonKind:
		return engine.NewPolygonEngine(config), nil
	case object.VolumeKind:
		e := engine.NewVolumeEngine(config)
		if tf != nil {
			e.SetTransferFunction(tf)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("no engine for %s objects: %w", k, core.ErrInputMismatch)
	}
}

// Print writes the pipeline and every object flowing through it
func (p *Pipeline) Print(w io.Writer) {
	fmt.Fprintln(w, "Pipeline")
	if p.source != "" {
		fmt.Fprintf(w, "  Source: %s\n", p.source)
	}
	if p.input != nil {
		fmt.Fprintln(w, "  Input object:")
		p.input.Print(w, 4)
	}
	for i, m := range p.mappers {
		fmt.Fprintf(w, "  Mapper %d: %s\n", i, m.Name())
		if i < len(p.outputs) {
			p.outputs[i].Print(w, 4)
		}
	}
	if p.engine != nil {
		fmt.Fprintf(w, "  Engine: %s (repetition level %d)\n", p.engine.Name(), p.engine.RepetitionLevel())
	}
	if !p.executed {
		fmt.Fprintln(w, "  (not executed)")
	}
}
