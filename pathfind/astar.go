package pathfind

import (
	"container/heap"
	"math"
)

type searchNode struct {
	id     int
	g      float64
	f      float64
	index  int
	parent *searchNode
}

type searchQueue []*searchNode

func (q searchQueue) Len() int { return len(q) }

func (q searchQueue) Less(i, j int) bool { return q[i].f < q[j].f }

func (q searchQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *searchQueue) Push(x any) {
	n := len(*q)
	item := x.(*searchNode)
	item.index = n
	*q = append(*q, item)
}

func (q *searchQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

// astar searches g from start to goal. blocked nodes are excluded as
// neighbors; the straight-line heuristic is consistent for center-distance
// edge costs, so the first pop of the goal is optimal and no tie-break is
// needed. Returns the node sequence and total cost, or (nil, +Inf, false)
// when the goal is unreachable.
func astar(g *levelGraph, start, goal int, blocked map[int]struct{}) ([]int, float64, bool) {
	if blocked != nil {
		if _, bad := blocked[goal]; bad {
			return nil, math.Inf(1), false
		}
	}
	goalCenter := g.center(goal)

	open := &searchQueue{}
	heap.Init(open)
	heap.Push(open, &searchNode{id: start, g: 0, f: g.center(start).Dist(goalCenter)})
	gScore := map[int]float64{start: 0}
	closed := make(map[int]struct{})

	for open.Len() > 0 {
		current := heap.Pop(open).(*searchNode)
		if _, seen := closed[current.id]; seen {
			continue
		}
		closed[current.id] = struct{}{}
		if current.id == goal {
			return reconstruct(current), current.g, true
		}

		center := g.center(current.id)
		for _, next := range g.neighbors[current.id] {
			id := int(next)
			if blocked != nil {
				if _, bad := blocked[id]; bad {
					continue
				}
			}
			if _, seen := closed[id]; seen {
				continue
			}
			tentative := current.g + center.Dist(g.center(id))
			if prev, ok := gScore[id]; ok && tentative >= prev {
				continue
			}
			gScore[id] = tentative
			heap.Push(open, &searchNode{
				id:     id,
				g:      tentative,
				f:      tentative + g.center(id).Dist(goalCenter),
				parent: current,
			})
		}
	}
	return nil, math.Inf(1), false
}

func reconstruct(end *searchNode) []int {
	path := make([]int, 0)
	for node := end; node != nil; node = node.parent {
		path = append(path, node.id)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
