package graph

import "container/heap"

// NoPath is the cost reported when the destination is unreachable.
const NoPath = -1

// ShortestPath returns the minimum total edge weight from origin to dest and the
// node ids along that path (both endpoints included) using Dijkstra.
// Returns (NoPath, nil) if either node is missing or no path exists, and
// (0, [origin]) when origin == dest.
func (g *Graph) ShortestPath(origin, dest string) (float64, []string) {
	if _, ok := g.nodes[origin]; !ok {
		return NoPath, nil
	}
	if _, ok := g.nodes[dest]; !ok {
		return NoPath, nil
	}
	if origin == dest {
		return 0, []string{origin}
	}

	dist := map[string]float64{origin: 0}
	prev := make(map[string]string)
	done := make(map[string]bool)

	pq := &priorityQueue{{nodeID: origin, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		if done[item.nodeID] {
			continue
		}
		done[item.nodeID] = true
		if item.nodeID == dest {
			return item.dist, buildPath(prev, origin, dest)
		}
		for _, e := range g.adj[item.nodeID] {
			if done[e.To] {
				continue
			}
			nd := item.dist + e.Weight
			if d, ok := dist[e.To]; !ok || nd < d {
				dist[e.To] = nd
				prev[e.To] = item.nodeID
				heap.Push(pq, pqItem{nodeID: e.To, dist: nd})
			}
		}
	}
	return NoPath, nil
}

func buildPath(prev map[string]string, origin, dest string) []string {
	var rev []string
	for at := dest; ; at = prev[at] {
		rev = append(rev, at)
		if at == origin {
			break
		}
	}
	path := make([]string, len(rev))
	for i, id := range rev {
		path[len(rev)-1-i] = id
	}
	return path
}

// Reachable returns every node reachable from origin (origin included).
func (g *Graph) Reachable(origin string) map[string]bool {
	seen := make(map[string]bool)
	if _, ok := g.nodes[origin]; !ok {
		return seen
	}
	seen[origin] = true
	queue := []string{origin}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range g.adj[current] {
			if !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return seen
}

// Priority queue for Dijkstra
type pqItem struct {
	nodeID string
	dist   float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
