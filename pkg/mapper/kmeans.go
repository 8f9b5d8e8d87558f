package mapper

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/aclements/go-moremath/stats"
	"github.com/aclements/go-moremath/vec"
	"golang.org/x/sync/errgroup"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/object"
	"github.com/df07/go-stochastic-viz/pkg/transfer"
)

// ClusteringMethod selects the k-means variant
type ClusteringMethod int

const (
	// PlainKMeans is Lloyd's algorithm
	PlainKMeans ClusteringMethod = iota
	// FastKMeans prunes distance computations with Hamerly's bounds and
	// produces the same clusters as PlainKMeans
	FastKMeans
	// AdaptiveKMeans runs FastKMeans for every cluster count in
	// [MinClusters, NumberOfClusters] and keeps the best silhouette
	AdaptiveKMeans
)

func (m ClusteringMethod) String() string {
	switch m {
	case PlainKMeans:
		return "plain"
	case FastKMeans:
		return "fast"
	case AdaptiveKMeans:
		return "adaptive"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// SeedingMethod selects the initial centroids
type SeedingMethod int

const (
	// RandomSeeding picks random rows
	RandomSeeding SeedingMethod = iota
	// SmartSeeding picks rows with probability proportional to the squared
	// distance to the nearest chosen centroid (k-means++)
	SmartSeeding
)

func (s SeedingMethod) String() string {
	if s == SmartSeeding {
		return "smart"
	}
	return "random"
}

// ClusterColumn labels the column holding cluster ids in the output table
const ClusterColumn = "cluster"

// KMeansConfig contains clustering parameters
type KMeansConfig struct {
	Method           ClusteringMethod
	Seeding          SeedingMethod
	NumberOfClusters int     // k, or the largest k tried in adaptive mode
	MinClusters      int     // smallest k tried in adaptive mode
	MaxIterations    int     // iteration limit per run
	Tolerance        float64 // converged when no centroid moves further
	Seed             uint64
}

// DefaultKMeansConfig returns sensible default values
func DefaultKMeansConfig() KMeansConfig {
	return KMeansConfig{
		Method:           FastKMeans,
		Seeding:          SmartSeeding,
		NumberOfClusters: 4,
		MinClusters:      2,
		MaxIterations:    100,
		Tolerance:        1e-6,
		Seed:             10,
	}
}

// KMeansResult describes a finished clustering
type KMeansResult struct {
	NumClusters int
	Centroids   [][]float64
	Labels      []int
	Iterations  int
	Converged   bool
	Silhouette  float64 // mean silhouette, computed in adaptive mode
}

// KMeansClustering partitions the rows of a table into clusters
type KMeansClustering struct {
	Base
	config KMeansConfig
	result *KMeansResult
}

// NewKMeansClustering creates a clustering mapper
func NewKMeansClustering(config KMeansConfig) *KMeansClustering {
	return &KMeansClustering{config: config}
}

func (m *KMeansClustering) Name() string         { return "KMeansClustering" }
func (m *KMeansClustering) Config() KMeansConfig { return m.config }

// Result returns the last clustering, nil before the first Exec
func (m *KMeansClustering) Result() *KMeansResult { return m.result }

// Exec clusters every column of a table. The output table repeats the
// input columns, appends a cluster column and colors rows by cluster.
func (m *KMeansClustering) Exec(obj object.Object) (object.Object, error) {
	m.setSuccess(false)
	table, ok := obj.(*object.TableObject)
	if !ok || table == nil {
		return nil, fmt.Errorf("%s: %w", m.Name(), mismatch(obj, object.TableKind))
	}
	c := m.config
	if c.NumberOfClusters < 1 || c.MaxIterations < 1 || c.Tolerance < 0 {
		return nil, fmt.Errorf("%s: %d clusters, %d iterations, tolerance %g: %w",
			m.Name(), c.NumberOfClusters, c.MaxIterations, c.Tolerance, core.ErrConfiguration)
	}

	points := rows(table)
	if len(points) < c.NumberOfClusters && c.Method != AdaptiveKMeans {
		return nil, fmt.Errorf("%s: %d rows for %d clusters: %w", m.Name(), len(points), c.NumberOfClusters, core.ErrInputMismatch)
	}

	var result *KMeansResult
	var err error
	if c.Method == AdaptiveKMeans {
		result, err = adaptiveKMeans(points, c)
	} else {
		rng := core.NewRand(c.Seed, c.Seed)
		result = runKMeans(points, seedCentroids(points, c.NumberOfClusters, c.Seeding, rng), c.Method, c)
	}
	if err != nil {
		return nil, err
	}
	m.result = result

	out, err := clusteredTable(table, result)
	if err != nil {
		return nil, err
	}
	m.setSuccess(true)
	return out, nil
}

// rows copies the table into one point per row
func rows(table *object.TableObject) [][]float64 {
	points := make([][]float64, table.NumRows())
	for r := range points {
		points[r] = table.Row(r, nil)
	}
	return points
}

func clusteredTable(in *object.TableObject, result *KMeansResult) (*object.TableObject, error) {
	out := object.NewTableObject()
	out.SetName(in.Name())
	for i := 0; i < in.NumColumns(); i++ {
		col := in.Column(i)
		if err := out.AddColumn(col.Label, col.Values); err != nil {
			return nil, err
		}
		out.SetMinMaxValues(i, col.MinValue, col.MaxValue)
	}

	labels := make([]float64, len(result.Labels))
	colorMap := transfer.NewRainbowColorMap(max(result.NumClusters, 1))
	colors := make([]uint8, 0, 3*len(result.Labels))
	for r, l := range result.Labels {
		labels[r] = float64(l)
		rgb := colorMap.RGB(l)
		colors = append(colors, rgb[0], rgb[1], rgb[2])
	}
	if err := out.AddColumn(ClusterColumn, labels); err != nil {
		return nil, err
	}
	out.SetMinMaxValues(out.NumColumns()-1, 0, float64(max(result.NumClusters-1, 0)))
	if err := out.SetCoordColumns(in.CoordColumns()...); err != nil {
		return nil, err
	}
	out.SetColors(colors)
	out.SetLabels(in.Labels())
	return out, nil
}

func squaredDistance(a, b []float64) float64 {
	d := 0.0
	for i := range a {
		x := a[i] - b[i]
		d += x * x
	}
	return d
}

// seedCentroids chooses k initial centroids from the points
func seedCentroids(points [][]float64, k int, seeding SeedingMethod, rng *rand.Rand) [][]float64 {
	n := len(points)
	pick := func() []float64 { return points[int(rng.Float64()*float64(n))] }

	centroids := make([][]float64, 0, k)
	if seeding == RandomSeeding {
		for len(centroids) < k {
			centroids = append(centroids, pick())
		}
		return clone(centroids)
	}

	centroids = append(centroids, pick())
	weights := make([]float64, n)
	for i, p := range points {
		weights[i] = squaredDistance(p, centroids[0])
	}
	for len(centroids) < k {
		total := vec.Sum(weights)
		next := points[n-1]
		if total == 0 {
			next = pick()
		} else {
			t := rng.Float64() * total
			acc := 0.0
			for i, w := range weights {
				acc += w
				if t < acc {
					next = points[i]
					break
				}
			}
		}
		centroids = append(centroids, next)
		for i, p := range points {
			weights[i] = math.Min(weights[i], squaredDistance(p, next))
		}
	}
	return clone(centroids)
}

func clone(centroids [][]float64) [][]float64 {
	out := make([][]float64, len(centroids))
	for i, c := range centroids {
		out[i] = append([]float64(nil), c...)
	}
	return out
}

// nearest returns the closest centroid, the lowest index on ties
func nearest(p []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, squaredDistance(p, centroids[0])
	for j := 1; j < len(centroids); j++ {
		if d := squaredDistance(p, centroids[j]); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best, bestDist
}

// updateCentroids replaces each centroid by the mean of its points and
// returns how far each one moved. Empty clusters keep their centroid.
func updateCentroids(points [][]float64, labels []int, centroids [][]float64) []float64 {
	dim := len(centroids[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for j := range sums {
		sums[j] = make([]float64, dim)
	}
	for i, p := range points {
		l := labels[i]
		counts[l]++
		for d, x := range p {
			sums[l][d] += x
		}
	}

	moved := make([]float64, len(centroids))
	for j := range centroids {
		if counts[j] == 0 {
			continue
		}
		for d := range sums[j] {
			sums[j][d] /= float64(counts[j])
		}
		moved[j] = math.Sqrt(squaredDistance(sums[j], centroids[j]))
		centroids[j] = sums[j]
	}
	return moved
}

// runKMeans iterates from the given centroids until no centroid moves more
// than the tolerance. The converging iteration is counted.
func runKMeans(points [][]float64, centroids [][]float64, method ClusteringMethod, c KMeansConfig) *KMeansResult {
	result := &KMeansResult{NumClusters: len(centroids), Labels: make([]int, len(points))}
	var h *hamerly
	if method != PlainKMeans {
		h = newHamerly(len(points), len(centroids))
	}

	for it := 1; it <= c.MaxIterations; it++ {
		if h == nil {
			for i, p := range points {
				result.Labels[i], _ = nearest(p, centroids)
			}
		} else {
			h.assign(points, centroids, result.Labels, it == 1)
		}

		moved := updateCentroids(points, result.Labels, centroids)
		if h != nil {
			h.move(result.Labels, moved)
		}
		result.Iterations = it
		if maxOf(moved) <= c.Tolerance {
			result.Converged = true
			break
		}
	}
	result.Centroids = centroids
	return result
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	_, hi := stats.Bounds(xs)
	return hi
}

// hamerly keeps per-point distance bounds: upper bounds the distance to
// the assigned centroid, lower bounds the distance to every other one
type hamerly struct {
	upper, lower []float64
	half         []float64 // half the distance to the nearest other centroid
}

func newHamerly(n, k int) *hamerly {
	return &hamerly{upper: make([]float64, n), lower: make([]float64, n), half: make([]float64, k)}
}

// assign updates labels, skipping points whose bounds prove the assigned
// centroid is strictly the nearest. Remaining points get a full scan with
// the same tie rule as Lloyd's algorithm.
func (h *hamerly) assign(points [][]float64, centroids [][]float64, labels []int, first bool) {
	for j := range centroids {
		h.half[j] = math.Inf(1)
		for o := range centroids {
			if o != j {
				h.half[j] = math.Min(h.half[j], math.Sqrt(squaredDistance(centroids[j], centroids[o]))/2)
			}
		}
	}

	for i, p := range points {
		if !first {
			a := labels[i]
			bound := math.Max(h.half[a], h.lower[i])
			if h.upper[i] < bound {
				continue
			}
			h.upper[i] = math.Sqrt(squaredDistance(p, centroids[a]))
			if h.upper[i] < bound {
				continue
			}
		}

		best, bestDist := 0, math.Inf(1)
		second := math.Inf(1)
		for j, c := range centroids {
			d := squaredDistance(p, c)
			if d < bestDist {
				second = bestDist
				best, bestDist = j, d
			} else if d < second {
				second = d
			}
		}
		labels[i] = best
		h.upper[i] = math.Sqrt(bestDist)
		h.lower[i] = math.Sqrt(second)
	}
}

// move loosens the bounds by how far the centroids moved
func (h *hamerly) move(labels []int, moved []float64) {
	farthest, next := 0.0, 0.0
	farthestIndex := -1
	for j, m := range moved {
		if m > farthest {
			next = farthest
			farthest, farthestIndex = m, j
		} else if m > next {
			next = m
		}
	}
	for i, l := range labels {
		h.upper[i] += moved[l]
		if l == farthestIndex {
			h.lower[i] -= next
		} else {
			h.lower[i] -= farthest
		}
	}
}

// silhouette returns the mean silhouette coefficient. Points alone in
// their cluster score 0.
func silhouette(points [][]float64, labels []int, k int) float64 {
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}
	scores := make([]float64, len(points))
	sums := make([]float64, k)
	for i, p := range points {
		own := labels[i]
		if counts[own] < 2 {
			continue
		}
		clear(sums)
		for j, q := range points {
			if j != i {
				sums[labels[j]] += math.Sqrt(squaredDistance(p, q))
			}
		}
		a := sums[own] / float64(counts[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c != own && counts[c] > 0 {
				b = math.Min(b, sums[c]/float64(counts[c]))
			}
		}
		if math.IsInf(b, 1) {
			continue
		}
		if d := math.Max(a, b); d > 0 {
			scores[i] = (b - a) / d
		}
	}
	return stats.Mean(scores)
}

// adaptiveKMeans clusters with every k in range in parallel, each run
// seeded by (Seed, k), and keeps the best mean silhouette. Ties keep the
// smaller k.
func adaptiveKMeans(points [][]float64, c KMeansConfig) (*KMeansResult, error) {
	lo := max(c.MinClusters, 2)
	hi := min(c.NumberOfClusters, len(points))
	if hi < lo {
		return nil, fmt.Errorf("adaptive k-means over [%d, %d] with %d rows: %w", lo, c.NumberOfClusters, len(points), core.ErrConfiguration)
	}

	results := make([]*KMeansResult, hi-lo+1)
	var g errgroup.Group
	for k := lo; k <= hi; k++ {
		g.Go(func() error {
			rng := core.NewRand(c.Seed, uint64(k))
			r := runKMeans(points, seedCentroids(points, k, c.Seeding, rng), FastKMeans, c)
			r.Silhouette = silhouette(points, r.Labels, k)
			results[k-lo] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.Silhouette > best.Silhouette {
			best = r
		}
	}
	return best, nil
}
