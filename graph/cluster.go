package graph

import (
	"sort"

	"github.com/devloop-ai/synapse-go-sdk/embedder"
)

// recomputeClusters rebuilds every cluster with single-link grouping: nodes
// are visited in ID order, and each unclustered node seeds a cluster that
// absorbs every remaining unclustered node whose similarity to the seed
// meets the threshold. O(n^2) per merge, which is fine at local-developer
// scale. Caller holds the write lock.
func (s *Store) recomputeClusters() {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	clustered := make(map[string]bool, len(ids))
	var clusters []*Cluster

	for _, seedID := range ids {
		if clustered[seedID] {
			continue
		}
		seed := s.nodes[seedID]
		clustered[seedID] = true
		members := []*Node{seed}

		if len(seed.Embedding) > 0 {
			for _, id := range ids {
				if clustered[id] {
					continue
				}
				node := s.nodes[id]
				if embedder.CosineSimilarity(seed.Embedding, node.Embedding) >= s.config.ClusterThreshold {
					clustered[id] = true
					members = append(members, node)
				}
			}
		}

		clusters = append(clusters, buildCluster(seed, members))
	}
	s.clusters = clusters
}

func buildCluster(seed *Node, members []*Node) *Cluster {
	cluster := &Cluster{
		ID:      "cluster:" + seed.ID,
		Name:    seed.Name,
		NodeIDs: make([]string, len(members)),
	}
	for i, member := range members {
		cluster.NodeIDs[i] = member.ID
	}

	cluster.Centroid = centroidOf(members)
	cluster.Coherence = coherenceOf(members, cluster.Centroid)
	return cluster
}

// centroidOf is the component-wise mean over the embedded members.
func centroidOf(members []*Node) []float32 {
	var centroid []float32
	embedded := 0
	for _, member := range members {
		if len(member.Embedding) == 0 {
			continue
		}
		if centroid == nil {
			centroid = make([]float32, len(member.Embedding))
		}
		if len(member.Embedding) != len(centroid) {
			continue
		}
		for i, v := range member.Embedding {
			centroid[i] += v
		}
		embedded++
	}
	if embedded == 0 {
		return nil
	}
	for i := range centroid {
		centroid[i] /= float32(embedded)
	}
	return centroid
}

// coherenceOf is the mean similarity of embedded members to the centroid.
// Singleton and embedding-less clusters score 1.
func coherenceOf(members []*Node, centroid []float32) float64 {
	if centroid == nil || len(members) < 2 {
		return 1
	}
	var total float64
	counted := 0
	for _, member := range members {
		if len(member.Embedding) == 0 {
			continue
		}
		total += embedder.CosineSimilarity(member.Embedding, centroid)
		counted++
	}
	if counted == 0 {
		return 1
	}
	return total / float64(counted)
}
