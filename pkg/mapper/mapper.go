// Package mapper converts volumes and tables into drawable objects:
// isosurfaces, clustered tables and volume vertices.
package mapper

import (
	"fmt"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/object"
	"github.com/df07/go-stochastic-viz/pkg/transfer"
)

// Mapper turns an input object into a new object
type Mapper interface {
	Name() string
	Exec(obj object.Object) (object.Object, error)
}

// Base holds the transfer function shared by mappers and the outcome of
// the last Exec
type Base struct {
	transferFunction *transfer.TransferFunction
	success          bool
}

// TransferFunction returns the transfer function, the default one when
// none was set
func (b *Base) TransferFunction() *transfer.TransferFunction {
	if b.transferFunction == nil {
		b.transferFunction = transfer.Default()
	}
	return b.transferFunction
}

// SetTransferFunction replaces the transfer function
func (b *Base) SetTransferFunction(tf *transfer.TransferFunction) { b.transferFunction = tf }

// IsSuccess reports whether the last Exec produced an object
func (b *Base) IsSuccess() bool { return b.success }

func (b *Base) setSuccess(ok bool) { b.success = ok }

// volumeInput checks that obj is a structured volume
func volumeInput(mapper string, obj object.Object) (*object.StructuredVolume, error) {
	volume, ok := obj.(*object.StructuredVolume)
	if !ok || volume == nil {
		return nil, fmt.Errorf("%s: %w", mapper, mismatch(obj, object.VolumeKind))
	}
	return volume, nil
}

func mismatch(obj object.Object, want object.Kind) error {
	if obj == nil {
		return fmt.Errorf("no input object, want a %s: %w", want, core.ErrInputMismatch)
	}
	return fmt.Errorf("input is a %s object, want a %s: %w", obj.Kind(), want, core.ErrInputMismatch)
}

// rgb packs a color in [0,1] into bytes
func rgb(c core.Vec3) [3]uint8 {
	to8 := func(x float64) uint8 { return uint8(max(0, min(255, x*255+0.5))) }
	return [3]uint8{to8(c.X), to8(c.Y), to8(c.Z)}
}
