package renderer

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/df07/go-stochastic-viz/pkg/camera"
	"github.com/df07/go-stochastic-viz/pkg/core"
)

// PassResult contains the image after one progressive pass
type PassResult struct {
	Repetition int // Repetitions averaged into Image
	Image      *image.RGBA
	Stats      RenderStats
	IsLast     bool
}

// RenderProgressive draws one repetition per pass and streams the refined
// image after each one, until the image converges or ctx is cancelled.
// The goroutine it starts owns the compositor and its context until both
// channels are closed; callers must not use the compositor before then.
func (c *Compositor) RenderProgressive(ctx context.Context, cam *camera.Camera, light camera.Light) (<-chan PassResult, <-chan error) {
	passChan := make(chan PassResult, 1)
	errChan := make(chan error, 1)

	go func() {
		defer close(passChan)
		defer close(errChan)

		refinement := c.config.Refinement
		c.config.Refinement = true
		defer func() { c.config.Refinement = refinement }()

		c.logger.Printf("Starting progressive rendering with %d repetitions...\n", c.config.RepetitionLevel)

		previous := -1
		for {
			// Check if client disconnected before starting this pass
			select {
			case <-ctx.Done():
				c.logger.Printf("Rendering cancelled after %d repetitions\n", max(previous, 0))
				errChan <- ctx.Err()
				return
			default:
			}

			startTime := time.Now()
			if err := c.Frame(cam, light); err != nil {
				errChan <- err
				return
			}
			stats := c.Stats()
			converged := c.IsConverged()
			if stats.ActiveEngines == 0 || stats.Repetitions == 0 {
				errChan <- fmt.Errorf("%d skipped, %d disabled of %d engines: %w",
					stats.SkippedEngines, stats.DisabledEngines, stats.Engines, ErrNothingDrawn)
				return
			}
			if !converged && stats.Repetitions == previous {
				errChan <- fmt.Errorf("no engine could draw a repetition: %w", core.ErrConfiguration)
				return
			}
			previous = stats.Repetitions

			c.logger.Printf("Repetition %d/%d completed in %v\n",
				stats.Repetitions, stats.RepetitionLevel, time.Since(startTime))

			result := PassResult{
				Repetition: stats.Repetitions,
				Image:      c.Image(),
				Stats:      stats,
				IsLast:     converged,
			}
			select {
			case passChan <- result:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}

			if converged {
				return
			}
		}
	}()

	return passChan, errChan
}
