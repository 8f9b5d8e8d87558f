// Package shading evaluates the local illumination models applied by the
// rendering engines. All arithmetic is float32 to match fragment shading.
package shading

import (
	"fmt"
)

// Kind selects a shading model
type Kind int

const (
	None Kind = iota
	Lambert
	Phong
	BlinnPhong
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Lambert:
		return "lambert"
	case Phong:
		return "phong"
	case BlinnPhong:
		return "blinn-phong"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseKind converts a model name to a Kind
func ParseKind(name string) (Kind, error) {
	for k := None; k <= BlinnPhong; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown shading model %q", name)
}

// Parameter holds the reflection coefficients
type Parameter struct {
	Ka float32 // ambient
	Kd float32 // diffuse
	Ks float32 // specular
	S  float32 // shininess
}

// Model is a shading model value. Copies are independent.
type Model struct {
	Kind            Kind
	Parameter       Parameter
	TwoSideLighting bool
}

// NewNone returns a model that leaves colors unchanged
func NewNone() Model { return Model{Kind: None} }

// NewLambert returns a diffuse model with the default coefficients
func NewLambert() Model {
	return Model{Kind: Lambert, Parameter: Parameter{Ka: 0.4, Kd: 0.6}}
}

// NewPhong returns a Phong model with the default coefficients
func NewPhong() Model {
	return Model{Kind: Phong, Parameter: Parameter{Ka: 0.3, Kd: 0.5, Ks: 0.8, S: 100}}
}

// NewBlinnPhong returns a Blinn-Phong model with the default coefficients
func NewBlinnPhong() Model {
	return Model{Kind: BlinnPhong, Parameter: Parameter{Ka: 0.3, Kd: 0.5, Ks: 0.8, S: 100}}
}

// NewModel returns the default model of the given kind
func NewModel(k Kind) Model {
	switch k {
	case Lambert:
		return NewLambert()
	case Phong:
		return NewPhong()
	case BlinnPhong:
		return NewBlinnPhong()
	default:
		return NewNone()
	}
}

func (m Model) String() string {
	p := m.Parameter
	return fmt.Sprintf("%s (Ka %g, Kd %g, Ks %g, S %g, two-sided %t)", m.Kind, p.Ka, p.Kd, p.Ks, p.S, m.TwoSideLighting)
}
