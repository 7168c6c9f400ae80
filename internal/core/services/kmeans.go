package services

import "math"

const kmeansMaxIterations = 100

// KMeans clusters vectors into k groups and returns one label per vector.
// Seeding is deterministic: the first vector, then repeatedly the vector
// farthest from every chosen centroid. The same input always yields the
// same labels.
func KMeans(vectors [][]float32, k int) []int {
	n := len(vectors)
	labels := make([]int, n)
	if n == 0 || k <= 1 {
		return labels
	}
	if k > n {
		k = n
	}

	centroids := seedCentroids(vectors, k)
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				if d := sqDist(v, centroid); d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		updateCentroids(vectors, labels, centroids)
	}
	return labels
}

func seedCentroids(vectors [][]float32, k int) [][]float64 {
	centroids := [][]float64{toFloat64(vectors[0])}
	minDist := make([]float64, len(vectors))
	for i, v := range vectors {
		minDist[i] = sqDist(v, centroids[0])
	}
	for len(centroids) < k {
		far := 0
		for i, d := range minDist {
			if d > minDist[far] {
				far = i
			}
		}
		c := toFloat64(vectors[far])
		centroids = append(centroids, c)
		for i, v := range vectors {
			if d := sqDist(v, c); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return centroids
}

// updateCentroids moves each centroid to the mean of its members. A centroid
// with no members stays where it is.
func updateCentroids(vectors [][]float32, labels []int, centroids [][]float64) {
	dim := len(centroids[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, v := range vectors {
		c := labels[i]
		counts[c]++
		for d := 0; d < dim && d < len(v); d++ {
			sums[c][d] += float64(v[d])
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for d := range centroids[c] {
			centroids[c][d] = sums[c][d] / float64(counts[c])
		}
	}
}

func sqDist(v []float32, c []float64) float64 {
	var sum float64
	for i := 0; i < len(v) && i < len(c); i++ {
		d := float64(v[i]) - c[i]
		sum += d * d
	}
	return sum
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
