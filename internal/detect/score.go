package detect

import (
	"fmt"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"

	"github.com/digitalhand/pitrac-light-sub000/internal/ball"
	"github.com/digitalhand/pitrac-light-sub000/internal/cvutil"
	"github.com/digitalhand/pitrac-light-sub000/internal/logger"
)

const (
	// Circles smaller than this are noise, not golf balls.
	minCandidateRadius = 10

	// Cap on how many raw circles get scored.
	maxCandidatesToEvaluate = 200

	// Strobed filtering keeps candidates within this absolute score
	// distance of the best one. Empirically tuned; deliberately not
	// scaled to exposure or gain.
	strobedColorTolerance = 50
)

type candidate struct {
	circle      ball.Circle
	radius      int
	score       float64
	avgColor    ball.RGB
	medianColor ball.RGB
	stdColor    ball.RGB
}

// scoreCandidate mixes the color statistics and the discovery position into
// one figure of merit. A close median color alone is not enough: a
// noticeably different stddev downgrades the candidate, and late discovery
// is penalized cubically.
func scoreCandidate(avgDiff, stdDiff float64, discoveryIndex int) float64 {
	return math.Pow(avgDiff, 2) + 20*math.Pow(stdDiff, 2) + 200*math.Pow(float64(10*discoveryIndex), 3)
}

// filterAndSortStrobed drops color mismatches, then prefers the largest
// plausible exposure. The tolerance is absolute, not relative to the best
// score.
func filterAndSortStrobed(candidates []candidate) []candidate {
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score < candidates[b].score
	})
	maxScore := candidates[0].score + strobedColorTolerance
	kept := candidates[:0]
	for _, c := range candidates {
		if c.score <= maxScore {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(a, b int) bool {
		return kept[a].radius > kept[b].radius
	})
	return kept
}

// scoreAndRank turns raw full-image circles into ranked Ball results.
// Candidates are sampled against the reference ball's color statistics when
// those exist (Putting always samples, against white, to weed out circles
// formed from green-surface noise).
func scoreAndRank(rgbImg gocv.Mat, circles []ball.Circle, ref ball.Ball, mode Mode, log logger.Logger) ([]ball.Ball, error) {
	expectedColorExists := !ref.AvgColor.IsZero()

	expectedAvg := ref.AvgColor
	expectedStd := ref.StdColor
	if !expectedColorExists {
		expectedAvg = ball.RGB{255, 255, 255}
		expectedStd = ball.RGB{}
	}

	useColor := expectedColorExists || mode == ModePutting

	candidates := make([]candidate, 0, len(circles))
	for i, c := range circles {
		discoveryIndex := i + 1
		if discoveryIndex > maxCandidatesToEvaluate {
			break
		}

		radius := int(math.Round(c.Radius))
		if radius < minCandidateRadius {
			log.Debug(component, "skipping too-small circle", map[string]interface{}{
				"radius": c.Radius,
			})
			continue
		}

		cand := candidate{circle: c, radius: radius}
		if useColor {
			avg, median, std, err := cvutil.BallColorStats(rgbImg, c)
			if err != nil {
				return nil, fmt.Errorf("scoring candidate %d: %w", discoveryIndex, err)
			}
			cand.avgColor = avg
			cand.medianColor = median
			cand.stdColor = std

			avgDiff := cvutil.ColorDistance(avg, expectedAvg)
			stdDiff := cvutil.ColorDistance(std, expectedStd)
			cand.score = scoreCandidate(avgDiff, stdDiff, discoveryIndex)

			h, s, v := colorful.Color{R: avg[2] / 255, G: avg[1] / 255, B: avg[0] / 255}.Hsv()
			log.Debug(component, "scored candidate", map[string]interface{}{
				"index":    discoveryIndex,
				"radius":   radius,
				"avg_bgr":  avg,
				"avg_hsv":  [3]float64{h, s, v},
				"avg_diff": avgDiff,
				"std_diff": stdDiff,
				"score":    cand.score,
			})
		}
		candidates = append(candidates, cand)
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("scoring: %w", ErrNoBallFound)
	}

	if mode == ModeStrobed && expectedColorExists {
		candidates = filterAndSortStrobed(candidates)
		log.Debug(component, "strobed candidates after removing color mismatches", map[string]interface{}{
			"remaining": len(candidates),
		})
	} else if useColor {
		sort.SliceStable(candidates, func(a, b int) bool {
			return candidates[a].score < candidates[b].score
		})
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("scoring: %w", ErrNoBallFound)
	}
	if candidates[0].circle.Radius < 0.001 {
		return nil, fmt.Errorf("scoring: best circle has zero radius: %w", ErrNoBallFound)
	}

	balls := make([]ball.Ball, len(candidates))
	for rank, c := range candidates {
		b := ball.Ball{
			AvgColor:     c.avgColor,
			MedianColor:  c.medianColor,
			StdColor:     c.stdColor,
			QualityRank:  rank,
			CameraAngles: ref.CameraAngles,
		}
		b.SetCircle(c.circle)
		balls[rank] = b
	}
	return balls, nil
}
