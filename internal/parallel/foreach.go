// Package parallel provides bounded fan-out helpers for data-parallel loops.
package parallel

import "sync"

// ForEach executes a for loop with a limited number of concurrent goroutines.
// Each goroutine processes one integer, from 0 to length.
func ForEach(length, limit int, body func(i int)) {
	if limit <= 0 {
		limit = 1
	}
	if length <= 0 {
		return
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	wg.Add(length)

	for i := 0; i < length; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			body(i)
		}(i)
	}

	wg.Wait()
}

// Chunks splits [0, length) into at most parts contiguous half-open ranges of
// near-equal size. The split depends only on its arguments.
func Chunks(length, parts int) [][2]int {
	if length <= 0 {
		return nil
	}
	if parts <= 0 {
		parts = 1
	}
	if parts > length {
		parts = length
	}
	out := make([][2]int, 0, parts)
	size, rem := length/parts, length%parts
	start := 0
	for p := 0; p < parts; p++ {
		end := start + size
		if p < rem {
			end++
		}
		out = append(out, [2]int{start, end})
		start = end
	}
	return out
}
