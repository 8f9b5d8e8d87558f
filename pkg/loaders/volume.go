package loaders

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/object"
)

// VolumeHeader describes a raw volume file. It is stored as TOML next to
// the raw samples, for example:
//
//	name = "hydrogen"
//	resolution = [32, 32, 32]
//	value_type = "uint8"
//	endian = "little"
//	data = "hydrogen.raw"
type VolumeHeader struct {
	Name       string   `toml:"name"`
	Resolution [3]int   `toml:"resolution"`
	ValueType  string   `toml:"value_type"`
	Endian     string   `toml:"endian"`
	Data       string   `toml:"data"`
	MinValue   *float64 `toml:"min_value"`
	MaxValue   *float64 `toml:"max_value"`
}

func (h *VolumeHeader) byteOrder() (binary.ByteOrder, error) {
	switch h.Endian {
	case "", "little":
		return binary.LittleEndian, nil
	case "big":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("unknown endian %q: %w", h.Endian, core.ErrInputMismatch)
	}
}

// LoadVolume reads a TOML volume header and the raw samples it points to.
// A relative data path is resolved against the header's directory.
func LoadVolume(filename string) (*object.StructuredVolume, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read volume header: %w", err)
	}
	var header VolumeHeader
	if err := toml.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("failed to parse volume header %s: %v: %w", filename, err, core.ErrInputMismatch)
	}
	if header.Data == "" {
		return nil, fmt.Errorf("volume header %s names no data file: %w", filename, core.ErrInputMismatch)
	}

	dataPath := header.Data
	if !filepath.IsAbs(dataPath) {
		dataPath = filepath.Join(filepath.Dir(filename), dataPath)
	}
	file, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open volume data: %w", err)
	}
	defer file.Close()

	volume, err := ReadVolume(&header, file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dataPath, err)
	}
	return volume, nil
}

// ReadVolume reads raw samples laid out as the header describes
func ReadVolume(header *VolumeHeader, r io.Reader) (*object.StructuredVolume, error) {
	order, err := header.byteOrder()
	if err != nil {
		return nil, err
	}
	res := header.Resolution
	n := res[0] * res[1] * res[2]
	if res[0] <= 0 || res[1] <= 0 || res[2] <= 0 {
		return nil, fmt.Errorf("invalid volume resolution %v: %w", res, core.ErrInputMismatch)
	}

	r = bufio.NewReader(r)
	var values object.ValueArray
	switch header.ValueType {
	case "uint8", "uchar":
		values, err = readValues[uint8](r, n, order)
	case "int8", "char":
		values, err = readValues[int8](r, n, order)
	case "uint16", "ushort":
		values, err = readValues[uint16](r, n, order)
	case "int16", "short":
		values, err = readValues[int16](r, n, order)
	case "uint32", "uint":
		values, err = readValues[uint32](r, n, order)
	case "int32", "int":
		values, err = readValues[int32](r, n, order)
	case "float32", "float":
		values, err = readValues[float32](r, n, order)
	case "float64", "double":
		values, err = readValues[float64](r, n, order)
	default:
		return nil, fmt.Errorf("unsupported value type %q: %w", header.ValueType, core.ErrInputMismatch)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %d %s values: %w", n, header.ValueType, err)
	}

	volume, err := object.NewStructuredVolume(res, values)
	if err != nil {
		return nil, err
	}
	volume.SetName(header.Name)
	if header.MinValue != nil && header.MaxValue != nil {
		volume.SetMinMaxValues(*header.MinValue, *header.MaxValue)
	}
	return volume, nil
}

func readValues[T object.Number](r io.Reader, n int, order binary.ByteOrder) (object.Values[T], error) {
	values := make(object.Values[T], n)
	if err := binary.Read(r, order, []T(values)); err != nil {
		return nil, err
	}
	return values, nil
}

// SaveVolume writes the header to filename and the samples, little endian,
// to a .raw file beside it
func SaveVolume(filename string, volume *object.StructuredVolume) error {
	raw := filename[:len(filename)-len(filepath.Ext(filename))] + ".raw"
	header := VolumeHeader{
		Name:       volume.Name(),
		Resolution: volume.Resolution(),
		ValueType:  volume.Values().TypeName(),
		Endian:     "little",
		Data:       filepath.Base(raw),
	}
	minValue, maxValue := volume.MinValue(), volume.MaxValue()
	header.MinValue, header.MaxValue = &minValue, &maxValue

	file, err := os.Create(raw)
	if err != nil {
		return fmt.Errorf("failed to create volume data: %w", err)
	}
	w := bufio.NewWriter(file)
	if err := binary.Write(w, binary.LittleEndian, volume.Values()); err != nil {
		file.Close()
		return fmt.Errorf("failed to write volume data: %w", err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	text, err := toml.Marshal(header)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, text, 0644)
}
