package loaders

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/object"
)

// PLYHeader represents the parsed header information from a PLY file
type PLYHeader struct {
	Format   string // "binary_little_endian", "binary_big_endian", or "ascii"
	Version  string // Usually "1.0"
	Elements []PLYElement
}

// PLYElement is one element block of the body, in file order
type PLYElement struct {
	Name       string
	Count      int
	Properties []PLYProperty
}

// PLYProperty represents a property definition in the PLY header
type PLYProperty struct {
	Name     string
	Type     string
	IsList   bool
	ListType string // For list properties, the type of the count
}

// Element returns the element with the given name, or nil
func (h *PLYHeader) Element(name string) *PLYElement {
	for i := range h.Elements {
		if h.Elements[i].Name == name {
			return &h.Elements[i]
		}
	}
	return nil
}

func (e *PLYElement) propertyIndex(names ...string) int {
	for i, p := range e.Properties {
		for _, n := range names {
			if p.Name == n {
				return i
			}
		}
	}
	return -1
}

// PLYData contains the vertex and face data loaded from a PLY file
type PLYData struct {
	Coords  []float32 // xyz per vertex
	Normals []float32 // per-vertex normals, empty if not present
	Colors  []uint8   // per-vertex RGB, empty if not present
	Faces   []uint32  // triangle indices; polygons are split into fans
}

// NumVertices returns the number of vertices
func (d *PLYData) NumVertices() int { return len(d.Coords) / 3 }

// Object converts the data to a polygon object when faces are present and
// to a point object otherwise
func (d *PLYData) Object() object.Object {
	if len(d.Faces) == 0 {
		points := object.NewPointObject(d.Coords)
		if len(d.Colors) > 0 {
			points.SetColors(d.Colors)
		}
		if len(d.Normals) > 0 {
			points.SetNormals(d.Normals)
		}
		return points
	}
	polygons := object.NewPolygonObject(d.Coords, d.Faces)
	if len(d.Colors) > 0 {
		polygons.SetColors(d.Colors)
	}
	if len(d.Normals) > 0 {
		polygons.SetNormals(d.Normals, object.VertexNormal)
	}
	return polygons
}

// LoadPLY loads a PLY file
func LoadPLY(filename string) (*PLYData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open PLY file: %w", err)
	}
	defer file.Close()

	data, err := ReadPLY(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return data, nil
}

// ReadPLY parses ASCII and binary PLY streams
func ReadPLY(r io.Reader) (*PLYData, error) {
	reader := bufio.NewReaderSize(r, 1<<20)
	header, err := parsePLYHeader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PLY header: %w", err)
	}

	var body plyBody
	switch header.Format {
	case "ascii":
		scanner := bufio.NewScanner(reader)
		scanner.Split(bufio.ScanWords)
		body = &asciiBody{scanner: scanner}
	case "binary_little_endian":
		body = &binaryBody{reader: reader, order: binary.LittleEndian}
	case "binary_big_endian":
		body = &binaryBody{reader: reader, order: binary.BigEndian}
	default:
		return nil, fmt.Errorf("unsupported PLY format %q: %w", header.Format, core.ErrInputMismatch)
	}

	data := &PLYData{}
	for i := range header.Elements {
		e := &header.Elements[i]
		var err error
		switch e.Name {
		case "vertex":
			err = readVertices(body, e, data)
		case "face":
			err = readFaces(body, e, data)
		default:
			err = skipElement(body, e)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read PLY %s data: %w", e.Name, err)
		}
	}

	for _, f := range data.Faces {
		if int(f) >= data.NumVertices() {
			return nil, fmt.Errorf("face index %d out of %d vertices: %w", f, data.NumVertices(), core.ErrInputMismatch)
		}
	}
	return data, nil
}

// parsePLYHeader parses the PLY header, leaving the reader at the body
func parsePLYHeader(reader *bufio.Reader) (*PLYHeader, error) {
	header := &PLYHeader{}
	first := true
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("missing end_header: %w", core.ErrInputMismatch)
		}
		line = strings.TrimSpace(line)
		if first {
			if line != "ply" {
				return nil, fmt.Errorf("not a PLY file: %w", core.ErrInputMismatch)
			}
			first = false
			continue
		}
		if line == "end_header" {
			return header, nil
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "format":
			if len(parts) >= 3 {
				header.Format = parts[1]
				header.Version = parts[2]
			}
		case "element":
			if len(parts) < 3 {
				return nil, fmt.Errorf("invalid element line %q: %w", line, core.ErrInputMismatch)
			}
			count, err := strconv.Atoi(parts[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("invalid element count: %s: %w", parts[2], core.ErrInputMismatch)
			}
			header.Elements = append(header.Elements, PLYElement{Name: parts[1], Count: count})
		case "property":
			if len(header.Elements) == 0 {
				return nil, fmt.Errorf("property before element: %w", core.ErrInputMismatch)
			}
			prop, err := parsePLYProperty(parts[1:])
			if err != nil {
				return nil, err
			}
			e := &header.Elements[len(header.Elements)-1]
			e.Properties = append(e.Properties, prop)
		}
	}
}

// parsePLYProperty parses a property line from the PLY header
func parsePLYProperty(parts []string) (PLYProperty, error) {
	if len(parts) < 2 {
		return PLYProperty{}, fmt.Errorf("invalid property definition: %w", core.ErrInputMismatch)
	}
	var prop PLYProperty
	if parts[0] == "list" {
		if len(parts) < 4 {
			return PLYProperty{}, fmt.Errorf("invalid list property definition: %w", core.ErrInputMismatch)
		}
		prop = PLYProperty{IsList: true, ListType: parts[1], Type: parts[2], Name: parts[3]}
	} else {
		prop = PLYProperty{Type: parts[0], Name: parts[1]}
	}
	for _, t := range []string{prop.Type, prop.ListType} {
		if t != "" && getTypeSize(t) == 0 {
			return PLYProperty{}, fmt.Errorf("unsupported data type: %s: %w", t, core.ErrInputMismatch)
		}
	}
	return prop, nil
}

// getTypeSize returns the size in bytes of a PLY data type, 0 if unknown
func getTypeSize(dataType string) int {
	switch dataType {
	case "float", "float32", "int", "int32", "uint", "uint32":
		return 4
	case "double", "float64":
		return 8
	case "short", "int16", "ushort", "uint16":
		return 2
	case "char", "int8", "uchar", "uint8":
		return 1
	default:
		return 0
	}
}

// plyBody reads scalars of a declared type from the body
type plyBody interface {
	scalar(dataType string) (float64, error)
}

type asciiBody struct {
	scanner *bufio.Scanner
}

func (b *asciiBody) scalar(string) (float64, error) {
	if !b.scanner.Scan() {
		if err := b.scanner.Err(); err != nil {
			return 0, err
		}
		return 0, io.ErrUnexpectedEOF
	}
	return strconv.ParseFloat(b.scanner.Text(), 64)
}

type binaryBody struct {
	reader *bufio.Reader
	order  binary.ByteOrder
	buf    [8]byte
}

func (b *binaryBody) scalar(dataType string) (float64, error) {
	n := getTypeSize(dataType)
	if _, err := io.ReadFull(b.reader, b.buf[:n]); err != nil {
		return 0, err
	}
	data := b.buf[:n]
	switch dataType {
	case "char", "int8":
		return float64(int8(data[0])), nil
	case "uchar", "uint8":
		return float64(data[0]), nil
	case "short", "int16":
		return float64(int16(b.order.Uint16(data))), nil
	case "ushort", "uint16":
		return float64(b.order.Uint16(data)), nil
	case "int", "int32":
		return float64(int32(b.order.Uint32(data))), nil
	case "uint", "uint32":
		return float64(b.order.Uint32(data)), nil
	case "float", "float32":
		return float64(math.Float32frombits(b.order.Uint32(data))), nil
	default:
		return math.Float64frombits(b.order.Uint64(data)), nil
	}
}

// readRecord reads one element record; list properties are returned in
// lists, scalars in values
func readRecord(body plyBody, e *PLYElement, values []float64, lists [][]float64) error {
	for i, p := range e.Properties {
		if !p.IsList {
			v, err := body.scalar(p.Type)
			if err != nil {
				return err
			}
			values[i] = v
			continue
		}
		count, err := body.scalar(p.ListType)
		if err != nil {
			return err
		}
		if count < 0 {
			return fmt.Errorf("negative list length %g: %w", count, core.ErrInputMismatch)
		}
		lists[i] = lists[i][:0]
		for j := 0; j < int(count); j++ {
			v, err := body.scalar(p.Type)
			if err != nil {
				return err
			}
			lists[i] = append(lists[i], v)
		}
	}
	return nil
}

func readVertices(body plyBody, e *PLYElement, data *PLYData) error {
	pos := [3]int{e.propertyIndex("x"), e.propertyIndex("y"), e.propertyIndex("z")}
	if pos[0] < 0 || pos[1] < 0 || pos[2] < 0 {
		return fmt.Errorf("vertex element without x, y, z: %w", core.ErrInputMismatch)
	}
	normal := [3]int{e.propertyIndex("nx"), e.propertyIndex("ny"), e.propertyIndex("nz")}
	hasNormals := normal[0] >= 0 && normal[1] >= 0 && normal[2] >= 0
	color := [3]int{e.propertyIndex("red", "r"), e.propertyIndex("green", "g"), e.propertyIndex("blue", "b")}
	hasColors := color[0] >= 0 && color[1] >= 0 && color[2] >= 0

	data.Coords = make([]float32, 0, 3*e.Count)
	if hasNormals {
		data.Normals = make([]float32, 0, 3*e.Count)
	}
	if hasColors {
		data.Colors = make([]uint8, 0, 3*e.Count)
	}
	values := make([]float64, len(e.Properties))
	lists := make([][]float64, len(e.Properties))
	for i := 0; i < e.Count; i++ {
		if err := readRecord(body, e, values, lists); err != nil {
			return fmt.Errorf("vertex %d: %w", i, err)
		}
		for _, p := range pos {
			data.Coords = append(data.Coords, float32(values[p]))
		}
		if hasNormals {
			for _, p := range normal {
				data.Normals = append(data.Normals, float32(values[p]))
			}
		}
		if hasColors {
			for _, p := range color {
				v := values[p]
				// floating point colors are in [0,1]
				if t := e.Properties[p].Type; t == "float" || t == "float32" || t == "double" || t == "float64" {
					v *= 255
				}
				data.Colors = append(data.Colors, uint8(math.Round(max(0, min(255, v)))))
			}
		}
	}
	return nil
}

func readFaces(body plyBody, e *PLYElement, data *PLYData) error {
	index := e.propertyIndex("vertex_indices", "vertex_index")
	if index < 0 || !e.Properties[index].IsList {
		return fmt.Errorf("face element without a vertex index list: %w", core.ErrInputMismatch)
	}

	data.Faces = make([]uint32, 0, 3*e.Count)
	values := make([]float64, len(e.Properties))
	lists := make([][]float64, len(e.Properties))
	for i := 0; i < e.Count; i++ {
		if err := readRecord(body, e, values, lists); err != nil {
			return fmt.Errorf("face %d: %w", i, err)
		}
		ids := lists[index]
		if len(ids) < 3 {
			return fmt.Errorf("face %d has %d vertices: %w", i, len(ids), core.ErrInputMismatch)
		}
		for j := 1; j+1 < len(ids); j++ {
			for _, id := range []float64{ids[0], ids[j], ids[j+1]} {
				if id < 0 {
					return fmt.Errorf("face %d has negative index: %w", i, core.ErrInputMismatch)
				}
				data.Faces = append(data.Faces, uint32(id))
			}
		}
	}
	return nil
}

func skipElement(body plyBody, e *PLYElement) error {
	values := make([]float64, len(e.Properties))
	lists := make([][]float64, len(e.Properties))
	for i := 0; i < e.Count; i++ {
		if err := readRecord(body, e, values, lists); err != nil {
			return err
		}
	}
	return nil
}

// WritePLY writes a point or polygon object as an ASCII PLY stream
func WritePLY(w io.Writer, obj object.Object) error {
	var coords, normals []float32
	var colors []uint8
	var faces []uint32
	switch o := obj.(type) {
	case *object.PointObject:
		coords, normals, colors = o.Coords(), o.Normals(), o.Colors()
	case *object.PolygonObject:
		coords, colors, faces = o.Coords(), o.Colors(), o.Connections()
		if o.NormalType() == object.VertexNormal {
			normals = o.Normals()
		}
	default:
		return fmt.Errorf("cannot write %T as PLY: %w", obj, core.ErrInputMismatch)
	}
	n := len(coords) / 3
	if len(normals) != 3*n {
		normals = nil
	}
	if len(colors) != 3*n {
		colors = nil
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat ascii 1.0\nelement vertex %d\n", n)
	bw.WriteString("property float x\nproperty float y\nproperty float z\n")
	if normals != nil {
		bw.WriteString("property float nx\nproperty float ny\nproperty float nz\n")
	}
	if colors != nil {
		bw.WriteString("property uchar red\nproperty uchar green\nproperty uchar blue\n")
	}
	if faces != nil {
		fmt.Fprintf(bw, "element face %d\nproperty list uchar uint vertex_indices\n", len(faces)/3)
	}
	bw.WriteString("end_header\n")

	for i := 0; i < n; i++ {
		fmt.Fprintf(bw, "%g %g %g", coords[3*i], coords[3*i+1], coords[3*i+2])
		if normals != nil {
			fmt.Fprintf(bw, " %g %g %g", normals[3*i], normals[3*i+1], normals[3*i+2])
		}
		if colors != nil {
			fmt.Fprintf(bw, " %d %d %d", colors[3*i], colors[3*i+1], colors[3*i+2])
		}
		bw.WriteByte('\n')
	}
	for t := 0; t+2 < len(faces); t += 3 {
		fmt.Fprintf(bw, "3 %d %d %d\n", faces[t], faces[t+1], faces[t+2])
	}
	return bw.Flush()
}
