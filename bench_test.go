package pathtree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// wideTree returns a collection holding a root "r" with fanout children,
// each with fanout children of its own.
func wideTree(b *testing.B, fanout int) (*Engine, *Collection) {
	e, c := newTestEngine(b, nil)
	require.NoError(b, c.Insert(ctx, &Node{ID: "r"}))
	require.NoError(b, c.Insert(ctx, &Node{ID: "x"}))
	for i := 0; i < fanout; i++ {
		child := fmt.Sprintf("c%d", i)
		require.NoError(b, c.Insert(ctx, &Node{ID: child, Parent: "r"}))
		for j := 0; j < fanout; j++ {
			require.NoError(b, c.Insert(ctx, &Node{ID: fmt.Sprintf("%s-%d", child, j), Parent: child}))
		}
	}
	return e, c
}

func benchmarkMove(fanout int, b *testing.B) {
	b.StopTimer()
	_, c := wideTree(b, fanout)
	b.StartTimer()
	parents := [2]string{"x", ""}
	for n := 0; n < b.N; n++ {
		if _, err := c.Move(ctx, "r", parents[n%2]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMove10(b *testing.B) { benchmarkMove(10, b) }
func BenchmarkMove30(b *testing.B) { benchmarkMove(30, b) }

func benchmarkChildrenTree(fanout int, b *testing.B) {
	b.StopTimer()
	e, c := wideTree(b, fanout)
	root, err := c.Get(ctx, "r")
	require.NoError(b, err)
	b.StartTimer()
	for n := 0; n < b.N; n++ {
		if _, err := e.ChildrenTree(ctx, root, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkChildrenTree10(b *testing.B) { benchmarkChildrenTree(10, b) }
func BenchmarkChildrenTree30(b *testing.B) { benchmarkChildrenTree(30, b) }

func BenchmarkAssemble(b *testing.B) {
	e, _ := newTestEngine(b, nil)
	var nodes []*Node
	for i := 0; i < 100; i++ {
		parent := fmt.Sprintf("p%d", i)
		nodes = append(nodes, &Node{ID: parent})
		for j := 0; j < 100; j++ {
			nodes = append(nodes, &Node{ID: fmt.Sprintf("%s-%d", parent, j), Parent: parent, Ancestry: parent})
		}
	}
	e.SortByPath(nodes)
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		e.Assemble(nodes, nil, nil)
	}
}
