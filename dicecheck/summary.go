package dicecheck

import (
	"github.com/montanaflynn/stats"
)

// PassThreshold is the per-slice Dice at or above which a slice counts as
// passing. 0.98 tracks what a correctly-registered body outline achieves in
// practice; anything below it on many slices means the wrong matrix variant
// or a genuinely bad registration.
const PassThreshold = 0.98

// Summary aggregates the per-slice results for one matrix reading.
type Summary struct {
	Variant      Variant  `json:"variant"`
	Results      []Result `json:"results"`
	SliceCount   int      `json:"sliceCount"`
	Passed       int      `json:"passed"`
	PassFraction float64  `json:"passFraction"`
	MinDice      float64  `json:"minDice"`
	MeanDice     float64  `json:"meanDice"`
}

// Summarize folds per-slice rows into the report shape: pass count and
// fraction at PassThreshold, plus min and mean Dice.
func Summarize(variant Variant, results []Result) Summary {
	out := Summary{
		Variant:    variant,
		Results:    results,
		SliceCount: len(results),
	}

	if len(results) == 0 {
		return out
	}

	dices := make([]float64, 0, len(results))
	for _, r := range results {
		dices = append(dices, r.Dice)
		if r.Dice >= PassThreshold {
			out.Passed++
		}
	}
	out.PassFraction = float64(out.Passed) / float64(len(results))

	// stats errors only on empty input, which is handled above.
	out.MinDice, _ = stats.Min(dices)
	out.MeanDice, _ = stats.Mean(dices)

	return out
}
