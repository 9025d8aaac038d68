package fleettop

import (
	"encoding/json"
	"errors"
)

// MachineResult is either a success carrying the machine record or a
// failure carrying the error that ended the machine's aggregation
type MachineResult struct {
	Machine string
	Metrics MachineMetrics
	Err     error
}

func Succeeded(machine string, m MachineMetrics) MachineResult {
	return MachineResult{Machine: machine, Metrics: m}
}

func Failed(machine string, err error) MachineResult {
	if err == nil {
		err = errors.New("unknown error")
	}
	return MachineResult{Machine: machine, Err: err}
}

func (r MachineResult) OK() bool {
	return r.Err == nil
}

// ErrorMessage is the human readable failure, empty on success
func (r MachineResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ErrorKind is the fetch error kind of a failure, empty when unknown
func (r MachineResult) ErrorKind() string {
	if kind, ok := KindOf(r.Err); ok {
		return kind.String()
	}
	return ""
}

type failureView struct {
	Error string `json:"error" yaml:"error"`
	Kind  string `json:"kind,omitempty" yaml:"kind,omitempty"`
}

func (r MachineResult) view() any {
	if r.Err != nil {
		return failureView{Error: r.ErrorMessage(), Kind: r.ErrorKind()}
	}
	return r.Metrics
}

// MarshalJSON renders a success as the metrics object and a failure as
// {"error": "..."}
func (r MachineResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.view())
}

func (r MachineResult) MarshalYAML() (any, error) {
	return r.view(), nil
}
