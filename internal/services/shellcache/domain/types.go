// Package domain holds the offline resource cache types
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	perr "labelscan/internal/platform/errors"
)

// HeaderCache tells callers how a response was produced: hit, miss, bypass or unavailable
const HeaderCache = "X-Labelscan-Cache"

// Cache header values
const (
	CacheHit         = "hit"
	CacheMiss        = "miss"
	CacheBypass      = "bypass"
	CacheUnavailable = "unavailable"
)

// Control message types
const (
	MsgSkipWaiting = "skip-waiting"
	MsgActivateNow = "activate-now"
)

// Phase is a generation lifecycle phase
type Phase uint8

const (
	PhasePending Phase = iota
	PhaseInstalling
	PhaseInstalled
	PhaseActivating
	PhaseActive
	PhaseRedundant
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseInstalling:
		return "installing"
	case PhaseInstalled:
		return "installed"
	case PhaseActivating:
		return "activating"
	case PhaseActive:
		return "active"
	case PhaseRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// MarshalText renders the phase name in JSON
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Manifest lists what a generation must and may hold
// entries are absolute URLs or paths resolved against the upstream origin
type Manifest struct {
	Version  string   `mapstructure:"version" json:"version"`
	Required []string `mapstructure:"required" json:"required"`
	Optional []string `mapstructure:"optional" json:"optional"`
}

// Validate checks the manifest is usable; required and optional must not overlap
func (m Manifest) Validate() error {
	if strings.TrimSpace(m.Version) == "" {
		return perr.WithField(perr.InvalidArgf("manifest version is empty"), "version")
	}
	if len(m.Required) == 0 {
		return perr.WithField(perr.InvalidArgf("manifest has no required resources"), "required")
	}
	seen := make(map[string]struct{}, len(m.Required))
	for _, r := range m.Required {
		if strings.TrimSpace(r) == "" {
			return perr.WithField(perr.InvalidArgf("empty required resource"), "required")
		}
		seen[r] = struct{}{}
	}
	for _, o := range m.Optional {
		if _, dup := seen[o]; dup {
			return perr.WithField(perr.InvalidArgf("resource %q is both required and optional", o), "optional")
		}
	}
	return nil
}

// Generation names the cache generation for this manifest
// the same version with a different required set yields a different name
func (m Manifest) Generation() string {
	req := slices.Clone(m.Required)
	slices.Sort(req)
	sum := sha256.Sum256([]byte(strings.Join(req, "\n")))
	return "labelscan-" + m.Version + "-" + hex.EncodeToString(sum[:])[:12]
}

// InstallReport records one install run
type InstallReport struct {
	Generation string            `json:"generation"`
	Required   int               `json:"required"`
	Optional   int               `json:"optional"`
	Failed     map[string]string `json:"optional_failed,omitempty"`
	Carried    []string          `json:"optional_carried,omitempty"`
	Unchanged  bool              `json:"unchanged"`
	Activated  bool              `json:"activated"`
	Waiting    bool              `json:"waiting"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// GenerationInfo describes one known generation
type GenerationInfo struct {
	Name    string `json:"name"`
	Phase   Phase  `json:"phase"`
	Entries int    `json:"entries"`
}

// Status is the controller snapshot served by the agent
type Status struct {
	Current     string           `json:"current,omitempty"`
	Waiting     string           `json:"waiting,omitempty"`
	Generations []GenerationInfo `json:"generations"`
	Clients     int              `json:"clients"`
	ClaimEpoch  uint64           `json:"claim_epoch"`
	Hits        int64            `json:"hits"`
	Misses      int64            `json:"misses"`
	Unavailable int64            `json:"unavailable"`
	LastInstall *InstallReport   `json:"last_install,omitempty"`
}

// Message is a control message body
type Message struct {
	Type string `json:"type" validate:"required,oneof=skip-waiting activate-now"`
}

// MessageResp reports whether a message caused an activation
type MessageResp struct {
	Activated bool   `json:"activated"`
	Current   string `json:"current,omitempty"`
}

// ClientResp carries an attached client id
type ClientResp struct {
	ID string `json:"id"`
}
