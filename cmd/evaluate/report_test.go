package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/digit-api/internal/nn"
)

func TestWriteReport(t *testing.T) {
	ev := nn.Evaluation{
		Labels:     []int{0, 0, 1, 7},
		Predicted:  []int{0, 1, 1, 7},
		Confidence: []float64{0.9, 0.5, 0.8, 0.6},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, ev))
	out := buf.String()

	assert.Contains(t, out, "50.00%")
	assert.Contains(t, out, "100.00%")
	assert.Contains(t, out, "Confidence: mean 0.7000, median 0.7000")
}

func TestWriteReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, nn.Evaluation{}))
	assert.Contains(t, buf.String(), "DIGIT")
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 2, argmax([]float64{0.1, 0.2, 0.7}))
	assert.Equal(t, 0, argmax([]float64{0.5, 0.5}))
}
