package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fcruxen/pathtree"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"
)

func (a *app) printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printNodes prints one line per record: its id and its path.
func (a *app) printNodes(cmd *cobra.Command, nodes []*pathtree.Node) error {
	if a.json {
		if nodes == nil {
			nodes = []*pathtree.Node{}
		}
		return a.printJSON(cmd, nodes)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, n := range nodes {
		fmt.Fprintf(w, "%s\t%s\n", n.ID, a.engine.PathOf(n))
	}
	return w.Flush()
}

func (a *app) printTree(cmd *cobra.Command, root *pathtree.Node, forest []*pathtree.TreeNode, label string) error {
	if a.json {
		if forest == nil {
			forest = []*pathtree.TreeNode{}
		}
		return a.printJSON(cmd, forest)
	}
	t := treeprint.New()
	if root != nil {
		t.SetValue(nodeLabel(root, label))
	}
	addTreeNodes(t, forest, label)
	_, err := io.WriteString(cmd.OutOrStdout(), t.String())
	return err
}

func addTreeNodes(t treeprint.Tree, nodes []*pathtree.TreeNode, label string) {
	for _, n := range nodes {
		if len(n.Children) == 0 {
			t.AddNode(nodeLabel(n.Node, label))
			continue
		}
		addTreeNodes(t.AddBranch(nodeLabel(n.Node, label)), n.Children, label)
	}
}

func nodeLabel(n *pathtree.Node, field string) string {
	if field == "" {
		return n.ID
	}
	if v, ok := n.Fields[field]; ok {
		return fmt.Sprintf("%s (%v)", n.ID, v)
	}
	return n.ID
}
