// Package matrix positions scored processes on the ROI x effort plane.
package matrix

import (
	"math"

	"github.com/hyperengineering/autoroi/internal/types"
)

// Bubble radius bounds, in pixels.
const (
	MinBubbleRadius = 8.0
	MaxBubbleRadius = 40.0
)

// TieTolerance is the roi_a distance within which Quick Wins are considered
// tied for the starting recommendation.
const TieTolerance = 0.1

// Build returns one matrix point per result, in input order, with at most one
// point flagged as the starting process.
func Build(results []types.ProcessResult) []types.MatrixProcess {
	out := make([]types.MatrixProcess, len(results))

	var maxNPV float64
	for _, r := range results {
		maxNPV = math.Max(maxNPV, math.Abs(r.CFO.NPV))
	}

	for i, r := range results {
		out[i] = types.MatrixProcess{
			ProcessID:    r.ProcessID,
			Name:         r.Name,
			ROI:          r.CFO.ROIA,
			Effort:       r.CFO.ImplementationEffort,
			NPV:          r.CFO.NPV,
			Quadrant:     r.CFO.Quadrant,
			BubbleRadius: BubbleRadius(r.CFO.NPV, maxNPV),
		}
	}

	if idx := StartingProcess(out); idx >= 0 {
		out[idx].IsStartingProcess = true
	}
	return out
}

// BubbleRadius scales |npv| linearly between the radius bounds.
func BubbleRadius(npv, maxAbsNPV float64) float64 {
	if maxAbsNPV <= 0 {
		return MinBubbleRadius
	}
	return MinBubbleRadius + (MaxBubbleRadius-MinBubbleRadius)*math.Abs(npv)/maxAbsNPV
}

// StartingProcess returns the index of the recommended first process, or -1
// when there are no Quick Wins. The best Quick Win by roi_a wins; candidates
// within TieTolerance of it are decided by lowest effort, then input order.
func StartingProcess(points []types.MatrixProcess) int {
	bestROI := math.Inf(-1)
	for _, p := range points {
		if p.Quadrant == types.QuadrantQuickWin && p.ROI > bestROI {
			bestROI = p.ROI
		}
	}
	if math.IsInf(bestROI, -1) {
		return -1
	}

	chosen := -1
	for i, p := range points {
		if p.Quadrant != types.QuadrantQuickWin || bestROI-p.ROI > TieTolerance {
			continue
		}
		if chosen < 0 || p.Effort < points[chosen].Effort {
			chosen = i
		}
	}
	return chosen
}
