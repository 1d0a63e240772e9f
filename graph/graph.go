package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/relkit/go-release/task"
)

// Graph is a validated task dependency graph. It is built once per
// orchestration run and discarded after producing an execution order.
//
// Validation runs at construction time and rejects duplicate ids and edges
// referencing unknown tasks; every missing reference is reported together.
// Cycle detection runs when an execution order is requested.
type Graph struct {
	taskMap map[string]task.Task
	order   []string // task ids in registration order

	// dependents maps a task id to the ids of tasks that depend on it,
	// in registration order.
	dependents map[string][]string
	inDegree   map[string]int
}

// New builds a graph from the given tasks. Task order is preserved as the
// deterministic tie-breaker for ordering among independent tasks.
func New(tasks []task.Task) (*Graph, error) {
	g := &Graph{
		taskMap:    make(map[string]task.Task, len(tasks)),
		order:      make([]string, 0, len(tasks)),
		dependents: make(map[string][]string),
		inDegree:   make(map[string]int, len(tasks)),
	}

	for _, t := range tasks {
		if _, ok := g.taskMap[t.ID()]; ok {
			return nil, &ErrDuplicateTask{TaskID: t.ID()}
		}

		g.taskMap[t.ID()] = t
		g.order = append(g.order, t.ID())
	}

	// Validate every dependency reference before deriving edges, and report
	// all missing references together.
	var missing []MissingDependency
	for _, id := range g.order {
		for _, dep := range g.taskMap[id].Dependencies() {
			if _, ok := g.taskMap[dep]; !ok {
				missing = append(missing, MissingDependency{TaskID: id, DependencyID: dep})
			}
		}
	}
	if len(missing) > 0 {
		return nil, &ErrMissingDependencies{Missing: missing}
	}

	for _, id := range g.order {
		deps := g.taskMap[id].Dependencies()
		g.inDegree[id] = len(deps)
		for _, dep := range deps {
			g.dependents[dep] = append(g.dependents[dep], id)
		}
	}

	return g, nil
}

// FromRegistry builds a graph over all tasks of the given registry.
func FromRegistry(r *Registry) (*Graph, error) {
	return New(r.Tasks())
}

func (g *Graph) Task(id string) (task.Task, bool) {
	t, ok := g.taskMap[id]
	return t, ok
}

// Tasks returns all tasks in registration order.
func (g *Graph) Tasks() []task.Task {
	tasks := make([]task.Task, len(g.order))
	for i, id := range g.order {
		tasks[i] = g.taskMap[id]
	}

	return tasks
}

func (g *Graph) Len() int {
	return len(g.order)
}

// Dependents returns the ids of tasks that statically depend on the given
// task, in registration order.
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

func (g *Graph) InDegree(id string) int {
	return g.inDegree[id]
}

// EntryPoints returns the tasks with no dependencies, in registration order.
func (g *Graph) EntryPoints() []task.Task {
	var entries []task.Task
	for _, id := range g.order {
		if g.inDegree[id] == 0 {
			entries = append(entries, g.taskMap[id])
		}
	}

	return entries
}

// ExecutionOrder returns a deterministic topological ordering: every task
// appears strictly after all of its dependencies. It fails with
// ErrCircularDependency naming one cycle when the graph is not acyclic.
//
// The ordering is a depth-first post-order walk: a task is appended only
// after all its dependencies have been appended. Tasks are visited in
// registration order, so the order among independent tasks is stable.
func (g *Graph) ExecutionOrder() ([]task.Task, error) {
	visited := make(map[string]bool, len(g.order))
	// onStack tracks the current recursion stack for cycle detection.
	onStack := make(map[string]bool)

	var ordered []task.Task
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}

		if onStack[id] {
			return &ErrCircularDependency{Cycle: cycleWitness(path, id)}
		}

		onStack[id] = true
		path = append(path, id)

		for _, dep := range g.taskMap[id].Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		onStack[id] = false
		visited[id] = true
		ordered = append(ordered, g.taskMap[id])

		return nil
	}

	for _, id := range g.order {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	return ordered, nil
}

// Validate checks the graph for cycles without materializing an order.
func (g *Graph) Validate() error {
	_, err := g.ExecutionOrder()
	return err
}

// Fingerprint returns a stable hash over the task set's ids and dependency
// edges. Two graphs with the same tasks and edges share a fingerprint,
// independent of registration order.
func (g *Graph) Fingerprint() string {
	lines := make([]string, 0, len(g.order))
	for _, id := range g.order {
		deps := append([]string(nil), g.taskMap[id].Dependencies()...)
		sort.Strings(deps)
		lines = append(lines, id+"<-"+strings.Join(deps, ","))
	}
	sort.Strings(lines)

	h := sha256.Sum256([]byte(strings.Join(lines, ";")))
	return hex.EncodeToString(h[:])
}

// cycleWitness extracts the cycle closing at the given id from the current
// DFS path, e.g. [x a b] + a yields a -> b -> a.
func cycleWitness(path []string, id string) []string {
	start := 0
	for i, p := range path {
		if p == id {
			start = i
			break
		}
	}

	cycle := append([]string(nil), path[start:]...)
	return append(cycle, id)
}
