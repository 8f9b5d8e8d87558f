package renderer

import (
	"runtime"
	"sync"

	"github.com/df07/go-stochastic-viz/pkg/gpu"
)

// TileTask accumulates one tile of the framebuffer
type TileTask struct {
	Tile        *Tile
	Sample      int // 1-based repetition number within the average
	TaskID      int // Index of the tile in the grid
	Framebuffer *gpu.Framebuffer
	Accumulator *Accumulator
}

// TileResult reports a finished tile
type TileResult struct {
	TaskID int
	Error  error
}

// WorkerPool runs tile tasks in parallel
type WorkerPool struct {
	taskQueue   chan TileTask
	resultQueue chan TileResult
	workers     []*Worker
	numWorkers  int
	wg          sync.WaitGroup
}

// Worker handles individual tile tasks
type Worker struct {
	ID          int
	taskQueue   chan TileTask
	resultQueue chan TileResult
}

// NewWorkerPool creates a pool whose queues hold queueSize tasks, enough
// for every tile of one repetition
func NewWorkerPool(numWorkers, queueSize int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	queueSize = max(queueSize, 1)

	wp := &WorkerPool{
		taskQueue:   make(chan TileTask, queueSize),
		resultQueue: make(chan TileResult, queueSize),
		numWorkers:  numWorkers,
	}
	for i := 0; i < numWorkers; i++ {
		wp.workers = append(wp.workers, &Worker{
			ID:          i,
			taskQueue:   wp.taskQueue,
			resultQueue: wp.resultQueue,
		})
	}
	return wp
}

// Start begins all workers
func (wp *WorkerPool) Start() {
	for _, worker := range wp.workers {
		wp.wg.Add(1)
		go worker.run(&wp.wg)
	}
}

// Stop waits for queued tasks and shuts down all workers
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
}

// SubmitTask queues a tile task
func (wp *WorkerPool) SubmitTask(task TileTask) {
	wp.taskQueue <- task
}

// GetResult retrieves a completed tile result
func (wp *WorkerPool) GetResult() (TileResult, bool) {
	result, ok := <-wp.resultQueue
	return result, ok
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return wp.numWorkers
}

func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range w.taskQueue {
		// tiles never overlap, so workers write disjoint pixels
		task.Accumulator.AddBounds(task.Framebuffer, task.Tile.Bounds, task.Sample)
		w.resultQueue <- TileResult{TaskID: task.TaskID}
	}
}
