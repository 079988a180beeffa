package interfaces

// ConfStatus is the externally visible state of the configuration run.
type ConfStatus struct {
	State       string `json:"state"`
	RunID       string `json:"run_id"`
	InputPath   string `json:"input,omitempty"`
	OutputPath  string `json:"output,omitempty"`
	MasterCount int64  `json:"master_count"`
	SlaveCount  int64  `json:"slave_count"`
	Length      uint32 `json:"length"`
	Error       string `json:"error,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

type LifecycleManager interface {
	GetCurrentStatus() ConfStatus
}
