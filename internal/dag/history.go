package dag

import "context"

// BuildHistory composes BuildSubDAG -> TopologicalSort -> FormatHistory
// (spec 4.3.3). Called with no parent IDs, it returns ErrEmptyParents so
// the orchestrator can treat the request as the conversation's first
// question rather than as a failure.
func BuildHistory(ctx context.Context, fetcher MessageFetcher, parentIDs []string) ([]ChatMessage, error) {
	if len(parentIDs) == 0 {
		return nil, ErrEmptyParents
	}

	nodes, edges, err := BuildSubDAG(ctx, fetcher, parentIDs)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		// every requested parent ID was unknown to the store
		return nil, ErrEmptyParents
	}

	ordered, err := TopologicalSort(nodes, edges)
	if err != nil {
		return nil, err
	}
	return FormatHistory(ordered), nil
}
