package dag

import (
	"context"
	"fmt"
	"sort"

	"github.com/ZM-BAD/DAG-chat/internal/models"
)

// MessageFetcher is the minimal capability BuildSubDAG needs from a
// MessageStore: batched lookup by ID. Missing IDs are simply absent from
// the returned map.
type MessageFetcher interface {
	GetMany(ctx context.Context, ids []string) (map[string]*models.Message, error)
}

// BuildSubDAG walks parent_ids upward via breadth-first traversal from
// seedIDs, batching store lookups per level, and returns the minimal
// ancestor node set plus the directed edges among them (parent -> its
// children, restricted to nodes within the returned set). The seed nodes
// themselves are included. Unknown IDs are skipped, not fatal.
func BuildSubDAG(ctx context.Context, fetcher MessageFetcher, seedIDs []string) (map[string]*models.Message, map[string][]string, error) {
	nodes := make(map[string]*models.Message)
	visited := make(map[string]bool, len(seedIDs))
	queue := append([]string(nil), seedIDs...)

	for len(queue) > 0 {
		batch := make([]string, 0, len(queue))
		queuedThisRound := make(map[string]bool, len(queue))
		for _, id := range queue {
			if visited[id] || queuedThisRound[id] {
				continue
			}
			queuedThisRound[id] = true
			batch = append(batch, id)
		}
		queue = queue[:0]
		if len(batch) == 0 {
			break
		}

		fetched, err := fetcher.GetMany(ctx, batch)
		if err != nil {
			return nil, nil, fmt.Errorf("dag: fetch batch: %w", err)
		}

		for _, id := range batch {
			visited[id] = true
			node, ok := fetched[id]
			if !ok {
				continue
			}
			nodes[id] = node
			for _, parentID := range node.ParentIDs {
				if !visited[parentID] {
					queue = append(queue, parentID)
				}
			}
		}
	}

	edges := make(map[string][]string)
	for id, node := range nodes {
		for _, parentID := range node.ParentIDs {
			if _, ok := nodes[parentID]; ok {
				edges[parentID] = append(edges[parentID], id)
			}
		}
	}
	for parentID := range edges {
		sort.Strings(edges[parentID])
	}

	return nodes, edges, nil
}
