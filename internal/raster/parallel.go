package raster

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var workers atomic.Int32

// SetWorkers задаёт число потоков для построчной обработки; n <= 0 - по числу CPU
func SetWorkers(n int) {
	workers.Store(int32(n))
}

func workerCount() int {
	if n := int(workers.Load()); n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// parallelRows делит строки [0, rows) на полосы и обрабатывает их параллельно.
// Каждая полоса пишет только в свои ячейки, поэтому результат детерминирован.
func parallelRows(rows int, fn func(y0, y1 int) error) error {
	n := workerCount()
	if n > rows {
		n = rows
	}
	if n <= 1 {
		return fn(0, rows)
	}

	band := (rows + n - 1) / n
	var g errgroup.Group
	for y0 := 0; y0 < rows; y0 += band {
		y0 := y0
		y1 := y0 + band
		if y1 > rows {
			y1 = rows
		}
		g.Go(func() error { return fn(y0, y1) })
	}
	return g.Wait()
}

// ParallelRows - экспортированный вариант для других стадий конвейера
func ParallelRows(rows int, fn func(y0, y1 int) error) error {
	return parallelRows(rows, fn)
}
