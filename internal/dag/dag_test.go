package dag

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/ZM-BAD/DAG-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	nodes map[string]*models.Message
}

func (f *fakeFetcher) GetMany(_ context.Context, ids []string) (map[string]*models.Message, error) {
	out := make(map[string]*models.Message, len(ids))
	for _, id := range ids {
		if n, ok := f.nodes[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func node(id string, role models.Role, content string, parents []string, at time.Time) *models.Message {
	return &models.Message{
		ID:        id,
		Role:      role,
		Content:   content,
		ParentIDs: parents,
		CreatedAt: at,
	}
}

func base() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

// linearFixture builds U1 -> A1 -> U2 -> A2 -> U3 -> A3, S1 from spec §8.
func linearFixture() map[string]*models.Message {
	t0 := base()
	return map[string]*models.Message{
		"U1": node("U1", models.RoleUser, "hi", nil, t0),
		"A1": node("A1", models.RoleAssistant, "hello", []string{"U1"}, t0.Add(1*time.Second)),
		"U2": node("U2", models.RoleUser, "q", []string{"A1"}, t0.Add(2*time.Second)),
		"A2": node("A2", models.RoleAssistant, "a", []string{"U2"}, t0.Add(3*time.Second)),
		"U3": node("U3", models.RoleUser, "m3", []string{"A2"}, t0.Add(4*time.Second)),
		"A3": node("A3", models.RoleAssistant, "a3", []string{"U3"}, t0.Add(5*time.Second)),
	}
}

func TestBuildSubDAG_LinearChain(t *testing.T) {
	fetcher := &fakeFetcher{nodes: linearFixture()}
	nodes, edges, err := BuildSubDAG(context.Background(), fetcher, []string{"A3"})
	require.NoError(t, err)
	assert.Len(t, nodes, 6)
	assert.Equal(t, []string{"U2"}, edges["A1"])
	assert.Equal(t, []string{"A1"}, edges["U1"])
}

func TestBuildSubDAG_UnknownParentSkipped(t *testing.T) {
	t0 := base()
	fetcher := &fakeFetcher{nodes: map[string]*models.Message{
		"A1": node("A1", models.RoleAssistant, "hello", []string{"ghost"}, t0),
	}}
	nodes, _, err := BuildSubDAG(context.Background(), fetcher, []string{"A1"})
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
	_, ok := nodes["ghost"]
	assert.False(t, ok)
}

// S1: linear chat reproduces the full prefix regardless of the seed tail.
func TestTopologicalSort_LinearChain(t *testing.T) {
	fixture := linearFixture()
	fetcher := &fakeFetcher{nodes: fixture}
	nodes, edges, err := BuildSubDAG(context.Background(), fetcher, []string{"A3"})
	require.NoError(t, err)

	ordered, err := TopologicalSort(nodes, edges)
	require.NoError(t, err)

	var ids []string
	for _, n := range ordered {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"U1", "A1", "U2", "A2", "U3", "A3"}, ids)
}

// S2/S3: branching then merging — both Q/A chains stay contiguous, root leads.
func TestTopologicalSort_Merge(t *testing.T) {
	t0 := base()
	nodes := map[string]*models.Message{
		"U1":  node("U1", models.RoleUser, "hi", nil, t0),
		"A1":  node("A1", models.RoleAssistant, "hello", []string{"U1"}, t0.Add(1*time.Second)),
		"U2":  node("U2", models.RoleUser, "q", []string{"A1"}, t0.Add(2*time.Second)),
		"U2p": node("U2p", models.RoleUser, "q'", []string{"A1"}, t0.Add(3*time.Second)),
		"A2":  node("A2", models.RoleAssistant, "a", []string{"U2"}, t0.Add(4*time.Second)),
		"A2p": node("A2p", models.RoleAssistant, "a'", []string{"U2p"}, t0.Add(5*time.Second)),
		"U3":  node("U3", models.RoleUser, "merge", []string{"A2", "A2p"}, t0.Add(6*time.Second)),
	}
	fetcher := &fakeFetcher{nodes: nodes}
	built, edges, err := BuildSubDAG(context.Background(), fetcher, []string{"A2", "A2p"})
	require.NoError(t, err)
	require.Len(t, built, 6) // U3 is not in the sub-DAG: it is the seed's future child, not an ancestor

	ordered, err := TopologicalSort(built, edges)
	require.NoError(t, err)
	require.Len(t, ordered, 6)

	index := map[string]int{}
	for i, n := range ordered {
		index[n.ID] = i
	}

	assert.Equal(t, 0, index["U1"], "single root leads (T2)")
	assert.Equal(t, index["U1"]+1, index["A1"])
	// each Q/A chain is contiguous (T3): U2 immediately followed by A2, and U2p by A2p
	assert.Equal(t, index["U2"]+1, index["A2"])
	assert.Equal(t, index["U2p"]+1, index["A2p"])
}

func TestTopologicalSort_Cycle(t *testing.T) {
	t0 := base()
	nodes := map[string]*models.Message{
		"X": node("X", models.RoleUser, "x", []string{"Y"}, t0),
		"Y": node("Y", models.RoleAssistant, "y", []string{"X"}, t0.Add(time.Second)),
	}
	edges := map[string][]string{"X": {"Y"}, "Y": {"X"}}

	_, err := TopologicalSort(nodes, edges)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDag))
}

func TestTopologicalSort_Deterministic(t *testing.T) {
	fixture := linearFixture()
	fetcher := &fakeFetcher{nodes: fixture}
	nodes, edges, err := BuildSubDAG(context.Background(), fetcher, []string{"A3"})
	require.NoError(t, err)

	first, err := TopologicalSort(nodes, edges)
	require.NoError(t, err)
	second, err := TopologicalSort(nodes, edges)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

// randomDAG builds a DAG of n nodes where node 0 is the sole root and
// every later node picks 1-2 parents from strictly earlier nodes, so the
// result is guaranteed acyclic with a single root.
func randomDAG(r *rand.Rand, n int) (map[string]*models.Message, map[string][]string) {
	t0 := base()
	nodes := make(map[string]*models.Message, n)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = randID(i)
	}
	nodes[ids[0]] = node(ids[0], models.RoleUser, "seed", nil, t0)

	for i := 1; i < n; i++ {
		numParents := 1
		if i > 2 && r.Intn(4) == 0 {
			numParents = 2
		}
		parentSet := map[string]bool{}
		for len(parentSet) < numParents && len(parentSet) < i {
			parentSet[ids[r.Intn(i)]] = true
		}
		var parents []string
		for p := range parentSet {
			parents = append(parents, p)
		}
		role := models.RoleAssistant
		if i%2 == 0 {
			role = models.RoleUser
		}
		nodes[ids[i]] = node(ids[i], role, "c", parents, t0.Add(time.Duration(i)*time.Millisecond))
	}

	edges := make(map[string][]string)
	for id, n := range nodes {
		for _, p := range n.ParentIDs {
			edges[p] = append(edges[p], id)
		}
	}
	return nodes, edges
}

func randID(i int) string {
	return "n" + string(rune('A'+i%26)) + string(rune('0'+(i/26)%10))
}

// P1-P3: dependency order, single root first, chain non-cleavage hold
// over many randomly generated sub-DAGs.
func TestTopologicalSort_Property(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		n := 3 + r.Intn(20)
		nodes, edges := randomDAG(r, n)

		ordered, err := TopologicalSort(nodes, edges)
		require.NoError(t, err)
		require.Len(t, ordered, len(nodes))

		index := make(map[string]int, len(ordered))
		for i, nd := range ordered {
			index[nd.ID] = i
		}

		// P1: dependency order
		for id, nd := range nodes {
			for _, pid := range nd.ParentIDs {
				assert.Less(t, index[pid], index[id], "trial %d: %s should precede %s", trial, pid, id)
			}
		}

		// P2: single root leads
		assert.Equal(t, 0, len(ordered[0].ParentIDs), "trial %d: element 0 must be the root", trial)

		// P3: chain non-cleavage
		for pid, children := range edges {
			if len(children) != 1 {
				continue
			}
			child := children[0]
			if len(nodes[child].ParentIDs) == 1 {
				assert.Equal(t, index[pid]+1, index[child], "trial %d: chain link %s->%s must be adjacent", trial, pid, child)
			}
		}
	}
}

func TestFormatHistory_DropsEmptyContentAndReasoning(t *testing.T) {
	t0 := base()
	nodes := []*models.Message{
		node("U1", models.RoleUser, "hi", nil, t0),
		{ID: "A1", Role: models.RoleAssistant, Content: "hello", Reasoning: "secret thoughts"},
		{ID: "A2", Role: models.RoleAssistant, Content: ""}, // partial write, dropped
	}
	out := FormatHistory(nodes)
	require.Len(t, out, 2)
	assert.Equal(t, ChatMessage{Role: models.RoleUser, Content: "hi"}, out[0])
	assert.Equal(t, ChatMessage{Role: models.RoleAssistant, Content: "hello"}, out[1])
}

func TestBuildHistory_EmptyParents(t *testing.T) {
	fetcher := &fakeFetcher{nodes: linearFixture()}
	history, err := BuildHistory(context.Background(), fetcher, nil)
	assert.Nil(t, history)
	assert.True(t, errors.Is(err, ErrEmptyParents))
}

func TestBuildHistory_Linear(t *testing.T) {
	fetcher := &fakeFetcher{nodes: linearFixture()}
	history, err := BuildHistory(context.Background(), fetcher, []string{"A2"})
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, "hi", history[0].Content)
}
