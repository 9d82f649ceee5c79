// Package cluster implements DBSCAN spatial clustering of radar targets
// (spec §4.C) in a scaled 4-D (x, y, z, doppler) feature space. The spatial
// index, region-query, and expand/build-clusters structure is generalized
// from banshee-data-velocity.report's internal/lidar DBSCAN implementation
// (clustering.go, dbscan_clusterer.go), which clusters 2-D (x, y) LiDAR
// world points; this package adds z and doppler as scaled axes and folds
// the per-axis scale into the distance metric rather than the grid cell
// size, so an axis with scale 0 drops out of the metric entirely.
package cluster

import "math"

// point4 is one target's position in the scaled feature space DBSCAN
// actually clusters in: raw (x, y, z, doppler) each multiplied by the
// corresponding entry of Params.Scale.
type point4 struct {
	x, y, z, d float64
}

func scalePoint(x, y, z, d float32, scale [4]float64) point4 {
	return point4{
		x: float64(x) * scale[0],
		y: float64(y) * scale[1],
		z: float64(z) * scale[2],
		d: float64(d) * scale[3],
	}
}

func (p point4) sqDist(q point4) float64 {
	dx, dy, dz, dd := p.x-q.x, p.y-q.y, p.z-q.z, p.d-q.d
	return dx*dx + dy*dy + dz*dz + dd*dd
}

// spatialIndex is a regular grid over the scaled 4-D feature space, cell
// size equal to epsilon, exactly as the teacher's SpatialIndex uses a 2-D
// grid sized to eps. Cell identity is a nested application of Szudzik's
// pairing function: pair(pair(cx, cy), pair(cz, cd)), extending the
// teacher's 2-argument pairing to four axes two pairs at a time.
type spatialIndex struct {
	cellSize float64
	grid     map[int64][]int
}

func newSpatialIndex(cellSize float64) *spatialIndex {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &spatialIndex{cellSize: cellSize, grid: make(map[int64][]int)}
}

func (si *spatialIndex) build(points []point4) {
	si.grid = make(map[int64][]int, len(points))
	for i, p := range points {
		id := si.cellID(p)
		si.grid[id] = append(si.grid[id], i)
	}
}

func (si *spatialIndex) cellCoords(p point4) (cx, cy, cz, cd int64) {
	cx = int64(math.Floor(p.x / si.cellSize))
	cy = int64(math.Floor(p.y / si.cellSize))
	cz = int64(math.Floor(p.z / si.cellSize))
	cd = int64(math.Floor(p.d / si.cellSize))
	return
}

func zigzag(v int64) int64 {
	if v >= 0 {
		return 2 * v
	}
	return -2*v - 1
}

func szudzik(a, b int64) int64 {
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

func (si *spatialIndex) cellID(p point4) int64 {
	cx, cy, cz, cd := si.cellCoords(p)
	ab := szudzik(zigzag(cx), zigzag(cy))
	cdp := szudzik(zigzag(cz), zigzag(cd))
	return szudzik(zigzag(ab), zigzag(cdp))
}

// regionQuery returns the indices of every point within eps of points[idx],
// searching the 3^4 = 81 neighbouring cells of the query point's cell.
func (si *spatialIndex) regionQuery(points []point4, idx int, eps float64) []int {
	p := points[idx]
	eps2 := eps * eps
	cx, cy, cz, cd := si.cellCoords(p)

	var neighbors []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for dd := int64(-1); dd <= 1; dd++ {
					ab := szudzik(zigzag(cx+dx), zigzag(cy+dy))
					cdp := szudzik(zigzag(cz+dz), zigzag(cd+dd))
					id := szudzik(zigzag(ab), zigzag(cdp))
					for _, cand := range si.grid[id] {
						if points[cand].sqDist(p) <= eps2 {
							neighbors = append(neighbors, cand)
						}
					}
				}
			}
		}
	}
	return neighbors
}

// runDBSCAN labels each point with its cluster id (>=1) or 0 for noise.
// Processing order is index order, and within expandCluster the neighbor
// queue is processed in region-query insertion order, so ties between two
// clusters that could claim the same border point always resolve in favor
// of whichever cluster reaches it first — the lower originating target
// index, by construction of the outer loop.
func runDBSCAN(points []point4, eps float64, minPts int) []int {
	n := len(points)
	labels := make([]int, n)
	if n == 0 {
		return labels
	}

	si := newSpatialIndex(eps)
	si.build(points)

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != 0 {
			continue
		}
		neighbors := si.regionQuery(points, i, eps)
		if len(neighbors) < minPts {
			labels[i] = -1
			continue
		}
		clusterID++
		expandCluster(points, si, labels, i, neighbors, clusterID, eps, minPts)
	}

	// Any point left labeled -1 (noise) maps to the public NoiseLabel (0).
	for i, l := range labels {
		if l < 0 {
			labels[i] = 0
		}
	}
	return labels
}

func expandCluster(points []point4, si *spatialIndex, labels []int, seedIdx int, neighbors []int, clusterID int, eps float64, minPts int) {
	labels[seedIdx] = clusterID

	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]
		if labels[idx] == -1 {
			labels[idx] = clusterID
		}
		if labels[idx] != 0 {
			continue
		}
		labels[idx] = clusterID
		more := si.regionQuery(points, idx, eps)
		if len(more) >= minPts {
			neighbors = append(neighbors, more...)
		}
	}
}
