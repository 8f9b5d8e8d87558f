package renderer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-stochastic-viz/pkg/core"
	"github.com/df07/go-stochastic-viz/pkg/object"
)

func TestNewTileGrid(t *testing.T) {
	// 400x225 image with 64x64 tiles
	width, height, tileSize := 400, 225, 64
	tiles := NewTileGrid(width, height, tileSize)

	expectedTilesX := (width + tileSize - 1) / tileSize   // 7 tiles
	expectedTilesY := (height + tileSize - 1) / tileSize  // 4 tiles
	require.Len(t, tiles, expectedTilesX*expectedTilesY) // 28 tiles

	covered := make([][]bool, height)
	for y := range covered {
		covered[y] = make([]bool, width)
	}
	for i, tile := range tiles {
		assert.Equal(t, i, tile.ID)
		for y := tile.Bounds.Min.Y; y < tile.Bounds.Max.Y; y++ {
			for x := tile.Bounds.Min.X; x < tile.Bounds.Max.X; x++ {
				require.Less(t, x, width, "tile %d extends beyond the image", tile.ID)
				require.Less(t, y, height, "tile %d extends beyond the image", tile.ID)
				require.False(t, covered[y][x], "pixel (%d,%d) covered twice", x, y)
				covered[y][x] = true
			}
		}
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			require.True(t, covered[y][x], "pixel (%d,%d) not covered", x, y)
		}
	}
}

func TestWorkerPool(t *testing.T) {
	pool := NewWorkerPool(3, 8)
	assert.Equal(t, 3, pool.GetNumWorkers())
	pool.Start()

	c := newTestCompositor(1)
	require.NoError(t, c.createWindow(40, 40))
	defer c.releaseWindow()
	tiles := NewTileGrid(40, 40, 16)

	for i, tile := range tiles {
		pool.SubmitTask(TileTask{Tile: tile, Sample: 1, TaskID: i, Framebuffer: c.fb, Accumulator: c.accum})
	}
	seen := make(map[int]bool)
	for range tiles {
		result, ok := pool.GetResult()
		require.True(t, ok)
		assert.NoError(t, result.Error)
		seen[result.TaskID] = true
	}
	assert.Len(t, seen, len(tiles))

	pool.Stop()
	_, ok := pool.GetResult()
	assert.False(t, ok, "result queue closed after stop")
}

func TestRenderProgressive(t *testing.T) {
	c := newTestCompositor(3)
	eng := newCountingEngine(object.PointKind)
	_, err := c.Register(testPoints(), eng)
	require.NoError(t, err)

	passes, errs := c.RenderProgressive(context.Background(), testCamera(32, 32), testLight)

	var results []PassResult
	for result := range passes {
		results = append(results, result)
	}
	require.NoError(t, <-errs)

	require.Len(t, results, 3)
	for i, result := range results {
		assert.Equal(t, i+1, result.Repetition)
		assert.Equal(t, i == 2, result.IsLast)
		assert.Equal(t, 32, result.Image.Bounds().Dx())
	}
	assert.Equal(t, 3, eng.draws)
	assert.False(t, c.IsRefinementEnabled(), "refinement restored")
}

func TestRenderProgressiveCancellation(t *testing.T) {
	c := newTestCompositor(3)
	eng := newCountingEngine(object.PointKind)
	_, err := c.Register(testPoints(), eng)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	passes, errs := c.RenderProgressive(ctx, testCamera(32, 32), testLight)

	for range passes {
		t.Fatal("no pass expected after cancellation")
	}
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.Equal(t, 0, eng.draws)
}

func TestRenderProgressiveStopsAfterCancel(t *testing.T) {
	c := newTestCompositor(100)
	eng := newCountingEngine(object.PointKind)
	_, err := c.Register(testPoints(), eng)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	passes, errs := c.RenderProgressive(ctx, testCamera(16, 16), testLight)

	first := <-passes
	assert.Equal(t, 1, first.Repetition)
	cancel()
	for range passes {
	}
	assert.ErrorIs(t, <-errs, context.Canceled)
	assert.Less(t, eng.draws, 100)
}

func TestRenderProgressiveFailsWhenNothingIsDrawn(t *testing.T) {
	c := newTestCompositor(3)
	eng := newCountingEngine(object.PointKind)
	eng.setupErr = fmt.Errorf("no shading model: %w", core.ErrConfiguration)
	_, err := c.Register(testPoints(), eng)
	require.NoError(t, err)

	passes, errs := c.RenderProgressive(context.Background(), testCamera(16, 16), testLight)
	var results []PassResult
	for result := range passes {
		results = append(results, result)
	}
	assert.Empty(t, results)
	assert.ErrorIs(t, <-errs, ErrNothingDrawn)
	assert.Equal(t, 1, c.Stats().SkippedEngines)
}
