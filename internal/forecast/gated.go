// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

package forecast

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// GatedConfig contains configuration for the gated sequence model.
type GatedConfig struct {
	// WindowSize is the sliding input window length W. Default: 12.
	WindowSize int

	// HiddenSize is the hidden unit count H, sized for edge devices.
	// Default: 8.
	HiddenSize int

	// LearningRate is the per-example gradient step size. Default: 0.01.
	LearningRate float64

	// Epochs is the maximum number of training passes. Default: 30.
	Epochs int

	// LossThreshold stops training early once the mean squared epoch loss
	// drops below it. Default: 1e-4.
	LossThreshold float64

	// Seed makes weight initialization deterministic. Default: 42.
	Seed int64
}

// DefaultGatedConfig returns the default edge-sized configuration.
func DefaultGatedConfig() GatedConfig {
	return GatedConfig{
		WindowSize:    12,
		HiddenSize:    8,
		LearningRate:  0.01,
		Epochs:        30,
		LossThreshold: 1e-4,
		Seed:          42,
	}
}

// gateUpdateScale scales the uniform gate-weight update relative to the
// direct output-weight gradient. This is a simplified approximation of
// backpropagation through the gates, not full BPTT.
const gateUpdateScale = 0.1

// GatedSequence is a small gated recurrent predictor. Forget, input, and
// output gates and a candidate-memory vector are each a sigmoid/tanh of a
// window-to-hidden linear map; the memory cell updates as
// forget*cell + input*candidate and the scalar output is a linear map of
// the hidden state, denormalized with the training series mean/stddev.
//
// Training runs a fixed number of epochs of per-example gradient updates:
// a direct gradient on the output weights and a scaled-down, uniformly
// applied update to the gate and candidate weights. Multi-step forecasts
// are autoregressive: each predicted value joins the sliding window.
type GatedSequence struct {
	BaseModel
	cfg GatedConfig

	wf, wi, wo, wc [][]float64 // gate weights, HiddenSize x WindowSize
	bf, bi, bo, bc []float64
	wy             []float64 // output weights, HiddenSize
	by             float64

	cell   []float64
	hidden []float64
	window []float64 // last normalized window of the training series

	mean   float64
	stddev float64
	rng    *rand.Rand
}

// NewGatedSequence creates a gated sequence model.
func NewGatedSequence(cfg GatedConfig) *GatedSequence {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 12
	}
	if cfg.HiddenSize <= 0 {
		cfg.HiddenSize = 8
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.01
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 30
	}
	if cfg.LossThreshold <= 0 {
		cfg.LossThreshold = 1e-4
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}

	g := &GatedSequence{
		BaseModel: NewBaseModel("gated_sequence"),
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // deterministic init, not security-sensitive
	}
	g.initWeights()
	return g
}

func (g *GatedSequence) initWeights() {
	h, w := g.cfg.HiddenSize, g.cfg.WindowSize
	g.wf = g.randomMatrix(h, w)
	g.wi = g.randomMatrix(h, w)
	g.wo = g.randomMatrix(h, w)
	g.wc = g.randomMatrix(h, w)
	g.bf = make([]float64, h)
	g.bi = make([]float64, h)
	g.bo = make([]float64, h)
	g.bc = make([]float64, h)
	g.wy = make([]float64, h)
	for i := range g.wy {
		g.wy[i] = g.rng.Float64()*0.2 - 0.1
	}
	g.by = 0
	g.cell = make([]float64, h)
	g.hidden = make([]float64, h)
}

func (g *GatedSequence) randomMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = g.rng.Float64()*0.2 - 0.1
		}
	}
	return m
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// forward runs one gated step over the input window, updating the given
// cell and hidden state in place, and returns the scalar (normalized)
// output.
func (g *GatedSequence) forward(input, cell, hidden []float64) float64 {
	h := g.cfg.HiddenSize
	for j := 0; j < h; j++ {
		forget := sigmoid(dot(g.wf[j], input) + g.bf[j])
		in := sigmoid(dot(g.wi[j], input) + g.bi[j])
		out := sigmoid(dot(g.wo[j], input) + g.bo[j])
		candidate := math.Tanh(dot(g.wc[j], input) + g.bc[j])

		cell[j] = forget*cell[j] + in*candidate
		hidden[j] = out * math.Tanh(cell[j])
	}
	return dot(g.wy, hidden) + g.by
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Train fits the model over sliding-window examples. It refuses to train
// on fewer than WindowSize+1 observations.
func (g *GatedSequence) Train(ctx context.Context, series []float64) error {
	g.acquireTrainLock()
	defer g.releaseTrainLock()

	w := g.cfg.WindowSize
	if len(series) < w+1 {
		return ErrInsufficientData
	}

	g.mean = stat.Mean(series, nil)
	g.stddev = stat.StdDev(series, nil)
	if g.stddev == 0 || math.IsNaN(g.stddev) {
		g.stddev = 1
	}
	norm := make([]float64, len(series))
	for i, v := range series {
		norm[i] = (v - g.mean) / g.stddev
	}

	lr := g.cfg.LearningRate
	for epoch := 0; epoch < g.cfg.Epochs; epoch++ {
		if contextCancelled(ctx) {
			return ctx.Err()
		}

		g.resetState()
		var sumSq float64
		examples := 0
		for i := 0; i+w < len(norm); i++ {
			input := norm[i : i+w]
			target := norm[i+w]

			pred := g.forward(input, g.cell, g.hidden)
			errv := pred - target
			sumSq += errv * errv
			examples++

			// Direct gradient on the output weights.
			for j := range g.wy {
				g.wy[j] -= lr * errv * g.hidden[j]
			}
			g.by -= lr * errv

			// Scaled-down uniform update to gate and candidate weights.
			g.updateGates(lr*gateUpdateScale*errv, input)
		}

		if examples > 0 && sumSq/float64(examples) < g.cfg.LossThreshold {
			break
		}
	}

	g.window = append(g.window[:0], norm[len(norm)-w:]...)
	g.markTrained()
	return nil
}

// updateGates applies the same scaled step to all four gate weight
// matrices and biases.
func (g *GatedSequence) updateGates(step float64, input []float64) {
	for _, m := range [][][]float64{g.wf, g.wi, g.wo, g.wc} {
		for j := range m {
			for k := range m[j] {
				m[j][k] -= step * input[k]
			}
		}
	}
	for _, b := range [][]float64{g.bf, g.bi, g.bo, g.bc} {
		for j := range b {
			b[j] -= step
		}
	}
}

func (g *GatedSequence) resetState() {
	for i := range g.cell {
		g.cell[i] = 0
		g.hidden[i] = 0
	}
}

// Predict generates an autoregressive forecast: each predicted value is
// appended to the sliding window for the next step. An untrained model
// returns zeros.
func (g *GatedSequence) Predict(steps int) []float64 {
	g.acquirePredictLock()
	defer g.releasePredictLock()

	out := zeroForecast(steps)
	if !g.trained || steps <= 0 {
		return out
	}

	// Predict against copied state so concurrent predictions don't
	// interfere through the shared cell vector.
	window := append([]float64(nil), g.window...)
	cell := append([]float64(nil), g.cell...)
	hidden := append([]float64(nil), g.hidden...)

	for k := 0; k < steps; k++ {
		pred := g.forward(window, cell, hidden)
		out[k] = pred*g.stddev + g.mean
		window = append(window[1:], pred)
	}
	return out
}

// Cost implements Forecaster. The gated model is the most expensive member.
func (g *GatedSequence) Cost() float64 {
	return float64(g.cfg.WindowSize * g.cfg.HiddenSize)
}
