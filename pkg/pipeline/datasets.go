package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/object"
)

// DatasetInfo represents an importable dataset with its metadata
type DatasetInfo struct {
	ID          string `json:"id"`          // Name passed to Import
	Name        string `json:"name"`        // Display name
	Description string `json:"description"` // Optional description
	Group       string `json:"group"`       // Grouping category
	Type        string `json:"type"`        // "builtin" or "file"
	FilePath    string `json:"filePath"`    // Path to the file (file type only)
}

// DatasetGroup represents a group of related datasets
type DatasetGroup struct {
	Name     string        `json:"name"`
	Datasets []DatasetInfo `json:"datasets"`
}

// DatasetsResponse is the complete grouped listing
type DatasetsResponse struct {
	Groups []DatasetGroup `json:"groups"`
}

const builtinGroup = "Built-in Datasets"

type builtin struct {
	info   DatasetInfo
	create func() object.Object
}

var builtins = map[string]builtin{}

// RegisterDataset makes a generated dataset importable by id
func RegisterDataset(id, description string, create func() object.Object) {
	builtins[id] = builtin{
		info: DatasetInfo{
			ID:          id,
			Name:        titleCase(id),
			Description: description,
			Group:       builtinGroup,
			Type:        "builtin",
		},
		create: create,
	}
}

func init() {
	RegisterDataset("quadrants", "1000 random points spread over four quadrants",
		func() object.Object { return object.CreateValueTable(1000, 1) })
	RegisterDataset("hydrogen", "3d_z2 hydrogen orbital density on a 32^3 grid",
		func() object.Object { return object.NewHydrogenVolume(32) })
}

// CreateDataset builds the registered dataset with the given id
func CreateDataset(id string) (object.Object, error) {
	b, ok := builtins[id]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q: %w", id, core.ErrInputMismatch)
	}
	return b.create(), nil
}

// IsDataset reports whether id names a registered dataset
func IsDataset(id string) bool {
	_, ok := builtins[id]
	return ok
}

// fileGroups maps importable extensions to their listing group
var fileGroups = map[string]string{
	".ply":  "Meshes and Point Clouds",
	".toml": "Volumes",
	".csv":  "Tables",
	".png":  "Images",
	".jpg":  "Images",
	".jpeg": "Images",
}

// ListFileDatasets scans dir for importable files
func ListFileDatasets(dir string) ([]DatasetInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []DatasetInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan dataset directory: %w", err)
	}

	var datasets []DatasetInfo
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		group, ok := fileGroups[ext]
		if entry.IsDir() || !ok {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		path := filepath.Join(dir, entry.Name())
		datasets = append(datasets, DatasetInfo{
			ID:       path,
			Name:     titleCase(base),
			Group:    group,
			Type:     "file",
			FilePath: path,
		})
	}

	sort.Slice(datasets, func(i, j int) bool {
		return datasets[i].Name < datasets[j].Name
	})
	return datasets, nil
}

// ListAllDatasets returns built-in and file datasets, grouped by category
func ListAllDatasets(dir string) (DatasetsResponse, error) {
	var response DatasetsResponse

	var all []DatasetInfo
	for _, b := range builtins {
		all = append(all, b.info)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	files, err := ListFileDatasets(dir)
	if err != nil {
		return response, err
	}
	all = append(all, files...)

	groupMap := make(map[string][]DatasetInfo)
	for _, d := range all {
		groupMap[d.Group] = append(groupMap[d.Group], d)
	}

	// Built-in first, then alphabetical
	var groupNames []string
	for name := range groupMap {
		if name != builtinGroup {
			groupNames = append(groupNames, name)
		}
	}
	sort.Strings(groupNames)
	if group, ok := groupMap[builtinGroup]; ok {
		response.Groups = append(response.Groups, DatasetGroup{Name: builtinGroup, Datasets: group})
	}
	for _, name := range groupNames {
		response.Groups = append(response.Groups, DatasetGroup{Name: name, Datasets: groupMap[name]})
	}
	return response, nil
}

// titleCase converts a filename-style string to title case
// e.g., "hydrogen-orbital" -> "Hydrogen Orbital"
func titleCase(s string) string {
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")

	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
