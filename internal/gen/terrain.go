// Package gen is the one-shot terrain producer used by `hearth init`.
// It seeds sparse terrain blobs (forest, stone, sand, water with coast
// fringes) on an otherwise-grass world and picks connected spawn positions
// for the starting roster.
package gen

import (
	"fmt"
	"math/rand"

	"hearth.world/internal/sim/domain"
)

// Params bound the generator.
type Params struct {
	Width  int
	Height int
	Seed   int64

	// Blobs per terrain kind; zero values get defaults scaled to area.
	ForestBlobs int
	StoneBlobs  int
	SandBlobs   int
	WaterBlobs  int
}

func (p *Params) fill() {
	area := p.Width * p.Height
	scale := area / 10000 // blob counts tuned against a 100x100 reference
	if scale < 1 {
		scale = 1
	}
	if p.ForestBlobs == 0 {
		p.ForestBlobs = 6 * scale
	}
	if p.StoneBlobs == 0 {
		p.StoneBlobs = 3 * scale
	}
	if p.SandBlobs == 0 {
		p.SandBlobs = 3 * scale
	}
	if p.WaterBlobs == 0 {
		p.WaterBlobs = 2 * scale
	}
}

// Generate returns the sparse terrain map: only non-grass positions appear.
func Generate(p Params) map[domain.Position]domain.Terrain {
	p.fill()
	rng := rand.New(rand.NewSource(p.Seed))
	terrain := map[domain.Position]domain.Terrain{}

	grow := func(kind domain.Terrain, blobs, minSize, maxSize int) {
		for i := 0; i < blobs; i++ {
			seed := domain.Position{X: rng.Intn(p.Width), Y: rng.Intn(p.Height)}
			size := minSize + rng.Intn(maxSize-minSize+1)
			blob := growBlob(rng, seed, size, p.Width, p.Height)
			for _, pos := range blob {
				terrain[pos] = kind
			}
		}
	}

	grow(domain.TerrainForest, p.ForestBlobs, 8, 40)
	grow(domain.TerrainStone, p.StoneBlobs, 5, 25)
	grow(domain.TerrainHill, p.StoneBlobs, 4, 15)
	grow(domain.TerrainSand, p.SandBlobs, 5, 20)
	grow(domain.TerrainWater, p.WaterBlobs, 10, 60)

	// Coast fringes: passable shallows around every water cell.
	var coast []domain.Position
	for pos, t := range terrain {
		if t != domain.TerrainWater {
			continue
		}
		for _, d := range domain.Directions {
			n := pos.Add(d)
			if !n.InBounds(p.Width, p.Height) {
				continue
			}
			if _, taken := terrain[n]; !taken {
				coast = append(coast, n)
			}
		}
	}
	for _, pos := range coast {
		terrain[pos] = domain.TerrainCoast
	}
	return terrain
}

// growBlob random-walks outward from seed collecting size cells.
func growBlob(rng *rand.Rand, seed domain.Position, size, width, height int) []domain.Position {
	visited := map[domain.Position]bool{seed: true}
	frontier := []domain.Position{seed}
	out := []domain.Position{seed}

	for len(out) < size && len(frontier) > 0 {
		idx := rng.Intn(len(frontier))
		cur := frontier[idx]
		d := domain.Directions[rng.Intn(4)]
		next := cur.Add(d)
		if !next.InBounds(width, height) || visited[next] {
			// Stale frontier entries fall away over time.
			if rng.Intn(4) == 0 {
				frontier[idx] = frontier[len(frontier)-1]
				frontier = frontier[:len(frontier)-1]
			}
			continue
		}
		visited[next] = true
		frontier = append(frontier, next)
		out = append(out, next)
	}
	return out
}

// SpawnPositions picks n grass positions, pairwise within [minDist,
// maxDist] Chebyshev of each other and mutually reachable over passable
// terrain.
func SpawnPositions(terrain map[domain.Position]domain.Terrain, width, height, n int, seed int64) ([]domain.Position, error) {
	rng := rand.New(rand.NewSource(seed))
	const minDist, maxDist = 8, 40
	const attempts = 200

	isGrass := func(p domain.Position) bool {
		if !p.InBounds(width, height) {
			return false
		}
		_, taken := terrain[p]
		return !taken
	}
	passable := func(p domain.Position) bool {
		if !p.InBounds(width, height) {
			return false
		}
		t, taken := terrain[p]
		return !taken || t.Passable()
	}

	for try := 0; try < attempts; try++ {
		base := domain.Position{X: rng.Intn(width), Y: rng.Intn(height)}
		var picked []domain.Position
		for radius := 0; radius <= maxDist && len(picked) < n; radius++ {
			for _, p := range domain.RectAround(base, radius).Clamp(width, height).Positions() {
				if len(picked) == n {
					break
				}
				if !isGrass(p) {
					continue
				}
				ok := true
				for _, q := range picked {
					d := p.Chebyshev(q)
					if d < minDist || d > maxDist {
						ok = false
						break
					}
				}
				if ok && (len(picked) == 0 || connected(picked[0], p, passable, width, height)) {
					picked = append(picked, p)
				}
			}
		}
		if len(picked) == n {
			return picked, nil
		}
	}
	return nil, fmt.Errorf("gen: could not place %d connected spawn positions", n)
}

// connected BFSes between two positions over passable cells.
func connected(a, b domain.Position, passable func(domain.Position) bool, width, height int) bool {
	if a == b {
		return true
	}
	visited := map[domain.Position]bool{a: true}
	queue := []domain.Position{a}
	// Bounded search keeps init fast on large worlds.
	const maxVisited = 20000
	for len(queue) > 0 && len(visited) < maxVisited {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range domain.Directions {
			next := cur.Add(d)
			if next == b {
				return true
			}
			if !visited[next] && passable(next) && next.InBounds(width, height) {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}
