package core

// Run identifies a single orchestration run.
type Run struct {
	// ID is the unique execution id of the run.
	ID string `json:"id,omitempty"`

	// Name is the human-readable name of the run.
	Name string `json:"name,omitempty"`
}

func NewRun(id, name string) *Run {
	return &Run{
		ID:   id,
		Name: name,
	}
}
