package cluster

import (
	"math"

	"github.com/banshee-data/radar-ingest/internal/radar"
)

// Params configures one clustering pass (spec §4.C / §6 cluster_epsilon,
// cluster_min_points, cluster_param_scale). Scale weights the (x, y, z,
// doppler) axes before the epsilon neighbourhood test; a zero weight drops
// that axis from the metric entirely, which is how spec §8's worked
// scenario (scale (1,1,0,0)) reduces to plain 2-D ground-plane clustering.
type Params struct {
	Epsilon   float64
	MinPoints int
	Scale     [4]float64
}

// Cluster runs DBSCAN over tl's targets and returns them paired with their
// cluster labels and the per-cluster centroids the tracker consumes. An
// empty target list clusters to an empty result, not an error: spec §4.C
// treats zero detections as a normal (if uninteresting) frame.
func Cluster(tl radar.TargetList, params Params) radar.ClusteredTargets {
	out := radar.ClusteredTargets{
		FrameCounter: tl.FrameCounter,
		TimestampUs:  tl.TimestampUs,
		Targets:      tl.Targets,
	}
	if len(tl.Targets) == 0 {
		return out
	}

	points := make([]point4, len(tl.Targets))
	for i, t := range tl.Targets {
		points[i] = scalePoint(t.X, t.Y, t.Z, t.Doppler, params.Scale)
	}

	rawLabels := runDBSCAN(points, params.Epsilon, params.MinPoints)

	labels := make([]radar.ClusterLabel, len(rawLabels))
	maxID := 0
	for i, l := range rawLabels {
		labels[i] = radar.ClusterLabel(l)
		if l > maxID {
			maxID = l
		}
	}
	out.Labels = labels
	out.Clusters = buildCentroids(tl.Targets, labels, maxID)
	return out
}

// buildCentroids buckets targets by cluster label in a single pass and
// computes each cluster's centroid/aspect/height, following the teacher's
// buildClusters (bucket-then-summarize, rather than an O(n) scan per
// cluster id).
func buildCentroids(targets []radar.Target, labels []radar.ClusterLabel, maxID int) []radar.ClusterCentroid {
	if maxID == 0 {
		return nil
	}
	buckets := make([][]radar.Target, maxID+1)
	for i, l := range labels {
		if l >= 1 && int(l) <= maxID {
			buckets[l] = append(buckets[l], targets[i])
		}
	}

	centroids := make([]radar.ClusterCentroid, 0, maxID)
	for id := 1; id <= maxID; id++ {
		members := buckets[id]
		if len(members) == 0 {
			continue
		}
		centroids = append(centroids, computeCentroid(radar.ClusterLabel(id), members))
	}
	return centroids
}

func computeCentroid(label radar.ClusterLabel, members []radar.Target) radar.ClusterCentroid {
	var sumX, sumY float64
	minX, maxX := float64(members[0].X), float64(members[0].X)
	minY, maxY := float64(members[0].Y), float64(members[0].Y)
	minZ, maxZ := float64(members[0].Z), float64(members[0].Z)

	for _, m := range members {
		sumX += float64(m.X)
		sumY += float64(m.Y)
		minX, maxX = math.Min(minX, float64(m.X)), math.Max(maxX, float64(m.X))
		minY, maxY = math.Min(minY, float64(m.Y)), math.Max(maxY, float64(m.Y))
		minZ, maxZ = math.Min(minZ, float64(m.Z)), math.Max(maxZ, float64(m.Z))
	}
	n := float64(len(members))

	length := maxX - minX
	width := maxY - minY
	longest, shortest := length, width
	if width > longest {
		longest, shortest = width, length
	}
	var aspect float32
	if shortest > 1e-6 {
		aspect = float32(longest / shortest)
	} else if longest > 1e-6 {
		aspect = float32(longest / 1e-6)
	}

	return radar.ClusterCentroid{
		Label:       label,
		CX:          float32(sumX / n),
		CY:          float32(sumY / n),
		Aspect:      aspect,
		Height:      float32(maxZ - minZ),
		MemberCount: len(members),
	}
}
