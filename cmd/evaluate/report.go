package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/Brownie44l1/digit-api/internal/nn"
)

// writeReport prints per-digit accuracy and the spread of the winning probability.
func writeReport(w io.Writer, ev nn.Evaluation) error {
	var total, correct [nn.Classes]int
	for i, label := range ev.Labels {
		total[label]++
		if ev.Predicted[i] == label {
			correct[label]++
		}
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Digit", "Samples", "Correct", "Accuracy"})
	for d := 0; d < nn.Classes; d++ {
		acc := "-"
		if total[d] > 0 {
			acc = fmt.Sprintf("%.2f%%", 100*float64(correct[d])/float64(total[d]))
		}
		table.Append([]string{strconv.Itoa(d), strconv.Itoa(total[d]), strconv.Itoa(correct[d]), acc})
	}
	table.Render()

	if len(ev.Confidence) == 0 {
		return nil
	}
	mean, err := stats.Mean(ev.Confidence)
	if err != nil {
		return errors.Wrap(err, "error computing mean confidence")
	}
	median, err := stats.Median(ev.Confidence)
	if err != nil {
		return errors.Wrap(err, "error computing median confidence")
	}
	_, err = fmt.Fprintf(w, "Confidence: mean %.4f, median %.4f\n", mean, median)
	return err
}
