// Package loaders imports scene objects from files: PLY meshes and point
// clouds, TOML-described raw volumes, CSV tables and images.
package loaders

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/object"
)

// Load picks an importer by file extension
func Load(filename string) (object.Object, error) {
	var obj object.Object
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".ply":
		data, err := LoadPLY(filename)
		if err != nil {
			return nil, err
		}
		obj = data.Object()
	case ".toml":
		volume, err := LoadVolume(filename)
		if err != nil {
			return nil, err
		}
		obj = volume
	case ".csv":
		table, err := LoadTable(filename)
		if err != nil {
			return nil, err
		}
		obj = table
	case ".png", ".jpg", ".jpeg":
		volume, err := LoadImageVolume(filename)
		if err != nil {
			return nil, err
		}
		obj = volume
	default:
		return nil, fmt.Errorf("no importer for %q files: %w", ext, core.ErrInputMismatch)
	}

	if named, ok := obj.(interface {
		Name() string
		SetName(string)
	}); ok && named.Name() == "" {
		named.SetName(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	}
	return obj, nil
}
