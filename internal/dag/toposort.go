package dag

import (
	"container/heap"
	"fmt"

	"github.com/ZM-BAD/DAG-chat/internal/models"
)

// readyItem is one candidate in the tie-break priority queue: eligible
// nodes are ordered by creation timestamp, then ID, per (T4).
type readyItem struct {
	id        string
	createdAt int64 // UnixNano, for a total order independent of time.Time's monotonic reading
}

type readyQueue []readyItem

func (q readyQueue) Len() int { return len(q) }
func (q readyQueue) Less(i, j int) bool {
	if q[i].createdAt != q[j].createdAt {
		return q[i].createdAt < q[j].createdAt
	}
	return q[i].id < q[j].id
}
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)        { *q = append(*q, x.(readyItem)) }
func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// TopologicalSort linearizes a sub-DAG per spec 4.3.2: a modified Kahn
// algorithm that emits a node immediately on pop and, whenever it has
// exactly one sub-DAG child whose only sub-DAG parent is itself, follows
// that chain link directly instead of returning to the ready queue (T3).
// Ties among independently-eligible nodes break by (createdAt, id) (T4).
// The unique node with no in-DAG parent is emitted first (T2).
func TopologicalSort(nodes map[string]*models.Message, edges map[string][]string) ([]*models.Message, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(nodes))
	for id := range nodes {
		inDegree[id] = 0
	}
	for _, children := range edges {
		for _, childID := range children {
			inDegree[childID]++
		}
	}

	var root string
	roots := 0
	for id, d := range inDegree {
		if d == 0 {
			root = id
			roots++
		}
	}
	if roots != 1 {
		return nil, fmt.Errorf("%w: expected exactly one root, found %d", ErrInvalidDag, roots)
	}

	ready := &readyQueue{}
	heap.Init(ready)
	heap.Push(ready, readyItem{id: root, createdAt: nodes[root].CreatedAt.UnixNano()})

	result := make([]*models.Message, 0, len(nodes))
	emitted := make(map[string]bool, len(nodes))

	for ready.Len() > 0 {
		cur := heap.Pop(ready).(readyItem).id

		for {
			if emitted[cur] {
				break
			}
			result = append(result, nodes[cur])
			emitted[cur] = true

			children := edges[cur]

			// (T3) chain non-cleavage: follow a single unambiguous child
			// directly, bypassing the ready queue's tie-break entirely.
			if len(children) == 1 && inDegree[children[0]] == 1 {
				cur = children[0]
				continue
			}

			for _, childID := range children {
				inDegree[childID]--
				if inDegree[childID] == 0 {
					heap.Push(ready, readyItem{id: childID, createdAt: nodes[childID].CreatedAt.UnixNano()})
				}
			}
			break
		}
	}

	if len(result) != len(nodes) {
		return nil, fmt.Errorf("%w: emitted %d of %d nodes (cycle or unreachable node)", ErrInvalidDag, len(result), len(nodes))
	}
	return result, nil
}
