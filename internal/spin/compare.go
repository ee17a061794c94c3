package spin

import (
	"math"
	"runtime"
	"sync"

	"github.com/digitalhand/pitrac-light-sub000/internal/ball"
	"github.com/digitalhand/pitrac-light-sub000/internal/logger"
)

// comparePixels counts how many comparable pixels two equally sized edge
// images agree on. Pixels carrying the ignore sentinel on either side are
// excluded from both counts.
func comparePixels(target, candidate []uint8) (matches, examined int) {
	for i := range target {
		t, c := target[i], candidate[i]
		if t == ignoreValue || c == ignoreValue {
			continue
		}
		examined++
		if t == c {
			matches++
		}
	}
	return matches, examined
}

type scoredRotation struct {
	rot      Rotation
	matches  int
	examined int
}

// enumerateGrid expands a search space into the flat candidate list.
func enumerateGrid(space SearchSpace) []Rotation {
	grid := make([]Rotation, 0, space.X.steps()*space.Y.steps()*space.Z.steps())
	for x := space.X.Start; x <= space.X.End; x += space.X.Increment {
		for y := space.Y.Start; y <= space.Y.End; y += space.Y.Increment {
			for z := space.Z.Start; z <= space.Z.End; z += space.Z.Increment {
				grid = append(grid, Rotation{X: x, Y: y, Z: z})
			}
		}
	}
	return grid
}

// searchRotations projects src through every rotation in the grid, compares
// each projection against target, and returns the best-scoring rotation.
// Candidates are scored by match fraction with a penalty that disfavors
// rotations able to examine far fewer pixels than the best-covered
// candidate, since a high match rate over a sliver of the ball is weak
// evidence. ok is false when no candidate produced a usable score.
func searchRotations(src []uint8, rows, cols int, b ball.Ball, target []uint8,
	space SearchSpace, workers int, log logger.Logger) (scoredRotation, bool) {

	grid := enumerateGrid(space)
	if len(grid) == 0 {
		return scoredRotation{}, false
	}
	results := make([]scoredRotation, len(grid))

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(grid) {
		workers = len(grid)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				projected := projectSphere(src, rows, cols, b, grid[i])
				m, e := comparePixels(target, projected)
				results[i] = scoredRotation{rot: grid[i], matches: m, examined: e}
			}
		}()
	}
	for i := range grid {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	maxExamined := 0
	for _, r := range results {
		if r.examined > maxExamined {
			maxExamined = r.examined
		}
	}

	bestScore := -1.0
	bestIndex := -1
	for i, r := range results {
		if r.examined == 0 {
			continue
		}
		score := float64(r.matches) / float64(r.examined) * 10.0
		shortfall := float64(maxExamined-r.examined) / 500.0
		score -= shortfall * shortfall / 1000.0
		if score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}
	if bestIndex < 0 {
		return scoredRotation{}, false
	}

	best := results[bestIndex]
	log.Debug(component, "rotation grid searched", map[string]interface{}{
		"candidates": len(grid),
		"bestX":      best.rot.X,
		"bestY":      best.rot.Y,
		"bestZ":      best.rot.Z,
		"matches":    best.matches,
		"examined":   best.examined,
		"score":      bestScore,
	})
	return best, true
}

// fineSpaceAround derives the second-pass grid from the coarse winner: the X
// and Z axes refine to single-degree steps, while Y keeps roughly half its
// coarse increment. Each axis spans half a coarse step to either side, so
// the fine grid covers exactly the region the coarse pass could not resolve.
func fineSpaceAround(best Rotation, coarse SearchSpace) SearchSpace {
	halfX := int(math.Ceil(float64(coarse.X.Increment) / 2))
	halfY := int(math.Ceil(float64(coarse.Y.Increment) / 2))
	halfZ := int(math.Ceil(float64(coarse.Z.Increment) / 2))
	incY := int(math.Round(float64(coarse.Y.Increment) / 2))
	if incY < 1 {
		incY = 1
	}
	return SearchSpace{
		X: AxisRange{Start: best.X - halfX, End: best.X + halfX, Increment: 1},
		Y: AxisRange{Start: best.Y - halfY, End: best.Y + halfY, Increment: incY},
		Z: AxisRange{Start: best.Z - halfZ, End: best.Z + halfZ, Increment: 1},
	}
}
