package fileio

import (
	"io"
	"sync"
)

// ProcessFunc analyses a single file.
type ProcessFunc[T any] func(file File) (T, error)

// Processor runs a ProcessFunc for every file emitted by an Iterator.
type Processor[T any] struct {
	NGoroutines int
	process     ProcessFunc[T]
}

// NewProcessor creates a new Processor, which will use the given function
// for any encountered file.
func NewProcessor[T any](process ProcessFunc[T]) *Processor[T] {
	return &Processor[T]{
		process: process,
	}
}

// Progress provides information about the processing progress of one file.
type Progress[T any] struct {
	File   File
	Result T
	Error  error
}

// Process processes all files emitted by the given Iterator. The returned
// channel is closed once the iterator is exhausted and all files are done.
// Results arrive in completion order.
func (p *Processor[T]) Process(it Iterator) <-chan *Progress[T] {
	if p.NGoroutines <= 0 {
		p.NGoroutines = 1
	}

	progress := make(chan *Progress[T])

	wg := &sync.WaitGroup{}
	wg.Add(p.NGoroutines)
	for i := 0; i < p.NGoroutines; i++ {
		go func() {
			defer wg.Done()

			for {
				file, err := it.Next()
				if err == io.EOF {
					break
				} else if err != nil {
					progress <- &Progress[T]{
						File:  file,
						Error: err,
					}
					continue
				}

				result, err := p.process(file)
				progress <- &Progress[T]{
					File:   file,
					Result: result,
					Error:  err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(progress)
	}()

	return progress
}
