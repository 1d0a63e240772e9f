package graph

import (
	"sync"

	"github.com/relkit/go-release/task"
	"github.com/relkit/go-release/taskerrors"
)

// Registry collects the tasks for one orchestration run. Registration order
// is preserved, it is the tie-breaker for execution order among independent
// tasks.
type Registry struct {
	sync.Mutex

	taskMap map[string]task.Task
	order   []string
}

// NewRegistry creates a new registry instance.
func NewRegistry() *Registry {
	return &Registry{
		taskMap: make(map[string]task.Task),
	}
}

func (r *Registry) Register(t task.Task) error {
	if t.ID() == "" {
		return taskerrors.New(taskerrors.Validation, "task id must not be empty")
	}

	r.Lock()
	defer r.Unlock()

	if _, ok := r.taskMap[t.ID()]; ok {
		return &ErrDuplicateTask{TaskID: t.ID()}
	}

	r.taskMap[t.ID()] = t
	r.order = append(r.order, t.ID())

	return nil
}

func (r *Registry) Task(id string) (task.Task, bool) {
	r.Lock()
	defer r.Unlock()

	t, ok := r.taskMap[id]
	return t, ok
}

// Tasks returns all registered tasks in registration order.
func (r *Registry) Tasks() []task.Task {
	r.Lock()
	defer r.Unlock()

	tasks := make([]task.Task, len(r.order))
	for i, id := range r.order {
		tasks[i] = r.taskMap[id]
	}

	return tasks
}

func (r *Registry) Len() int {
	r.Lock()
	defer r.Unlock()

	return len(r.order)
}
