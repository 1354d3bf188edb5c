package pathtree

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/commands"
	"github.com/leanovate/gopter/gen"
)

const idPool = 24

var debug = false

func progress(i interface{}) {
	if debug {
		fmt.Printf("%v\n", i)
	}
}

// forest is the model: parent by id.
type forest struct {
	policy OnDelete
	parent map[string]string
}

func (f *forest) clone() *forest {
	c := &forest{policy: f.policy, parent: make(map[string]string, len(f.parent))}
	for k, v := range f.parent {
		c.parent[k] = v
	}
	return c
}

func (f *forest) ids() []string {
	ids := make([]string, 0, len(f.parent))
	for id := range f.parent {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *forest) ancestry(id string) string {
	var chain []string
	for p := f.parent[id]; p != ""; p = f.parent[p] {
		chain = append([]string{p}, chain...)
	}
	return strings.Join(chain, "/")
}

func (f *forest) isAncestor(ancestor, id string) bool {
	for p := f.parent[id]; p != ""; p = f.parent[p] {
		if p == ancestor {
			return true
		}
	}
	return false
}

type system struct {
	c        *Collection
	e        *Engine
	cmdCount int
}

// storedForest is what the store holds: parent and ancestry by id.
type storedForest map[string][2]string

func (s *system) snapshot() commands.Result {
	cur, err := s.e.store.Find(ctx, nil, nil)
	if err != nil {
		return err
	}
	nodes, err := ReadAll(ctx, cur)
	if err != nil {
		return err
	}
	out := make(storedForest, len(nodes))
	for _, n := range nodes {
		out[n.ID] = [2]string{n.Parent, n.Ancestry}
	}
	return out
}

func checkForest(name string, state commands.State, result commands.Result) *gopter.PropResult {
	if err, ok := result.(error); ok {
		fmt.Printf("%s: %v\n", name, err)
		return &gopter.PropResult{Status: gopter.PropFalse}
	}
	f := state.(*forest)
	stored := result.(storedForest)
	if len(stored) != len(f.parent) {
		fmt.Printf("%s: expected %d records, found %d\n", name, len(f.parent), len(stored))
		return &gopter.PropResult{Status: gopter.PropFalse}
	}
	for id, parent := range f.parent {
		want := [2]string{parent, f.ancestry(id)}
		if got, ok := stored[id]; !ok || got != want {
			fmt.Printf("%s: %s expected parent/ancestry %v, found %v\n", name, id, want, got)
			return &gopter.PropResult{Status: gopter.PropFalse}
		}
	}
	progress(name)
	return &gopter.PropResult{Status: gopter.PropTrue}
}

type insertCommand struct{ id, parent string }

func (c insertCommand) Run(s commands.SystemUnderTest) commands.Result {
	sys := s.(*system)
	if err := sys.c.Insert(ctx, &Node{ID: c.id, Parent: c.parent}); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	sys.cmdCount++
	return sys.snapshot()
}

func (c insertCommand) NextState(state commands.State) commands.State {
	f := state.(*forest).clone()
	f.parent[c.id] = c.parent
	return f
}

func (c insertCommand) PreCondition(state commands.State) bool {
	f := state.(*forest)
	if _, taken := f.parent[c.id]; taken {
		return false
	}
	_, ok := f.parent[c.parent]
	return c.parent == "" || ok
}

func (c insertCommand) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	return checkForest(c.String(), state, result)
}

func (c insertCommand) String() string {
	return fmt.Sprintf("Insert(%s, parent=%q)", c.id, c.parent)
}

type moveCommand struct{ id, parent string }

func (c moveCommand) Run(s commands.SystemUnderTest) commands.Result {
	sys := s.(*system)
	if _, err := sys.c.Move(ctx, c.id, c.parent); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	sys.cmdCount++
	return sys.snapshot()
}

func (c moveCommand) NextState(state commands.State) commands.State {
	f := state.(*forest).clone()
	f.parent[c.id] = c.parent
	return f
}

func (c moveCommand) PreCondition(state commands.State) bool {
	f := state.(*forest)
	if _, ok := f.parent[c.id]; !ok || c.id == c.parent {
		return false
	}
	if c.parent == "" {
		return true
	}
	_, ok := f.parent[c.parent]
	return ok && !f.isAncestor(c.id, c.parent)
}

func (c moveCommand) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	return checkForest(c.String(), state, result)
}

func (c moveCommand) String() string {
	return fmt.Sprintf("Move(%s, parent=%q)", c.id, c.parent)
}

type removeCommand string

func (c removeCommand) Run(s commands.SystemUnderTest) commands.Result {
	sys := s.(*system)
	if err := sys.c.Remove(ctx, string(c)); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	sys.cmdCount++
	return sys.snapshot()
}

func (c removeCommand) NextState(state commands.State) commands.State {
	f := state.(*forest).clone()
	id := string(c)
	parent := f.parent[id]
	for other := range f.parent {
		switch {
		case f.policy == OnDeleteReparent && f.parent[other] == id:
			f.parent[other] = parent
		case f.policy == OnDeleteDelete && state.(*forest).isAncestor(id, other):
			delete(f.parent, other)
		}
	}
	delete(f.parent, id)
	return f
}

func (c removeCommand) PreCondition(state commands.State) bool {
	_, ok := state.(*forest).parent[string(c)]
	return ok
}

func (c removeCommand) PostCondition(state commands.State, result commands.Result) *gopter.PropResult {
	return checkForest(c.String(), state, result)
}

func (c removeCommand) String() string {
	return fmt.Sprintf("Remove(%s)", string(c))
}

// pick maps a random number to an existing id, or to "" one time in len+1.
func pick(existing []string, n int) string {
	i := n % (len(existing) + 1)
	if i == len(existing) {
		return ""
	}
	return existing[i]
}

func exerciserCommands(policy OnDelete) *commands.ProtoCommands {
	return &commands.ProtoCommands{
		NewSystemUnderTestFunc: func(initialState commands.State) commands.SystemUnderTest {
			store := NewStore(NewInMemoryStore(), nil)
			e, err := New(store, &Options{OnDelete: policy, NumWorkers: 3, NodeCache: NewNodeCache(8)})
			if err != nil {
				panic(err)
			}
			progress("NewSystem")
			return &system{c: NewCollection(store, e), e: e}
		},
		InitialStateGen: gen.Const(&forest{policy: policy, parent: map[string]string{}}),
		GenCommandFunc: func(state commands.State) gopter.Gen {
			existing := state.(*forest).ids()
			pair := gopter.CombineGens(gen.IntRange(0, 1<<16), gen.IntRange(0, 1<<16))
			insert := pair.Map(func(v []interface{}) commands.Command {
				return insertCommand{
					id:     fmt.Sprintf("n%d", v[0].(int)%idPool),
					parent: pick(existing, v[1].(int)),
				}
			})
			if len(existing) == 0 {
				return insert
			}
			move := pair.Map(func(v []interface{}) commands.Command {
				return moveCommand{
					id:     existing[v[0].(int)%len(existing)],
					parent: pick(existing, v[1].(int)),
				}
			})
			remove := gen.IntRange(0, 1<<16).Map(func(i int) commands.Command {
				return removeCommand(existing[i%len(existing)])
			})
			return gen.Weighted([]gen.WeightedGen{
				{Weight: 5, Gen: insert},
				{Weight: 4, Gen: move},
				{Weight: 1, Gen: remove},
			})
		},
	}
}

func TestExerciser(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	if testing.Short() {
		parameters.MinSuccessfulTests = 20
	}
	properties := gopter.NewProperties(parameters)
	properties.Property("ancestry follows parents, delete cascades", commands.Prop(exerciserCommands(OnDeleteDelete)))
	properties.Property("ancestry follows parents, delete reparents", commands.Prop(exerciserCommands(OnDeleteReparent)))
	properties.TestingRun(t)
}
