// Package domain holds the scan pipeline types and ports
package domain

import (
	"fmt"

	"labelscan/internal/core/labelfields"
)

// Source tags which recognition path produced an outcome
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// State is a dispatch phase
type State uint8

const (
	StateIdle State = iota
	StateEnhancing
	StateRoutingDecision
	StateRemoteAttempt
	StateLocalAttempt
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateEnhancing:       "enhancing",
	StateRoutingDecision: "routing_decision",
	StateRemoteAttempt:   "remote_attempt",
	StateLocalAttempt:    "local_attempt",
	StateDone:            "done",
	StateFailed:          "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Terminal reports whether no further transition is allowed
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// ProgressFunc receives free-text status lines during a dispatch
type ProgressFunc func(status string)

// Request is one image handed to the dispatcher, owned by a single dispatch
type Request struct {
	Image    []byte
	Progress ProgressFunc
}

// Outcome is the terminal result of a dispatch; exactly one of Text or Err is meaningful
type Outcome struct {
	ScanID string
	Text   string
	Source Source
	Err    error
	States []State
}

// OK reports success
func (o Outcome) OK() bool { return o.Err == nil }

// Item is one entry of a batch; Load is called only when the item is reached
type Item struct {
	Name string
	Load func() ([]byte, error)
}

// ItemResult pairs an item with its outcome
type ItemResult struct {
	Name    string
	Outcome Outcome
}

// BatchSummary aggregates a batch run
type BatchSummary struct {
	Total     int  `json:"total"`
	Processed int  `json:"processed"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Remote    int  `json:"remote"`
	Local     int  `json:"local"`
	Canceled  bool `json:"canceled"`
}

// ScanResp is the wire body for a finished dispatch
type ScanResp struct {
	ScanID   string             `json:"scan_id"`
	Text     string             `json:"text"`
	Source   Source             `json:"source"`
	Fields   labelfields.Fields `json:"fields"`
	Progress []string           `json:"progress"`
}

// EngineStatus describes the memoized local engine
type EngineStatus struct {
	Ready     bool     `json:"ready"`
	InitCalls int64    `json:"init_calls"`
	DataDir   string   `json:"data_dir"`
	Languages []string `json:"languages"`
}
