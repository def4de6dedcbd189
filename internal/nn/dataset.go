package nn

import "fmt"

// Dataset is a labeled set of inputs read one sample at a time.
type Dataset interface {
	Len() int

	// Sample writes the normalized input of sample i into dst and returns its label.
	Sample(i int, dst []float64) int
}

type window struct {
	ds       Dataset
	from, to int
}

func (w window) Len() int { return w.to - w.from }

func (w window) Sample(i int, dst []float64) int {
	return w.ds.Sample(w.from+i, dst)
}

// Slice returns the samples [from, to) of ds.
func Slice(ds Dataset, from, to int) Dataset {
	if from < 0 || to > ds.Len() || from > to {
		panic(fmt.Sprintf("nn: slice [%d:%d] out of range for %d samples", from, to, ds.Len()))
	}
	return window{ds: ds, from: from, to: to}
}

// ValidationSplit holds out the last fraction of ds for validation, without
// shuffling first.
func ValidationSplit(ds Dataset, fraction float64) (train, val Dataset) {
	n := ds.Len()
	split := n - int(float64(n)*fraction)
	return Slice(ds, 0, split), Slice(ds, split, n)
}
