// Package source enumerates camera frame sources, picks the infrared one, and
// pulls intensity frames from it without blocking.
//
// Backends:
//   - V4L2 (Linux) - real devices under /dev/video*
//   - Mock - tests and hardware-free demo runs
package source

import (
	"context"

	"github.com/teslashibe/irdrowsy/pkg/frame"
	"github.com/teslashibe/irdrowsy/pkg/torch"
)

// Kind is the sensor type behind a source.
type Kind string

const (
	KindColor    Kind = "color"
	KindInfrared Kind = "infrared"
	KindDepth    Kind = "depth"
	KindUnknown  Kind = "unknown"
)

// Role is what a source is meant to be used for.
type Role string

const (
	RolePreview  Role = "preview"
	RoleRecord   Role = "record"
	RolePhoto    Role = "photo"
	RoleMetadata Role = "metadata"
)

// SourceInfo describes one frame source within a group.
type SourceInfo struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    Kind     `json:"kind"`
	Role    Role     `json:"role"`
	Formats []string `json:"formats,omitempty"`
}

// Group is a physical camera module and the sources it exposes.
type Group struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Sources []SourceInfo `json:"sources"`
}

// Adapter is a platform backend that can list and open frame sources.
type Adapter interface {
	// Name identifies the backend in logs.
	Name() string

	// Groups lists every source group the platform reports, in platform order.
	Groups(ctx context.Context) ([]Group, error)

	// Open acquires exclusive access to the source and starts continuous
	// streaming into CPU memory. Failures are *OpenError and are not retried.
	Open(ctx context.Context, info SourceInfo) (Session, error)
}

// Session is an open, streaming source.
type Session interface {
	// Source returns the descriptor the session was opened with.
	Source() SourceInfo

	// TryAcquireLatest returns the newest frame produced since the previous
	// call, or ErrNoFrame. It never blocks. Device buffers are released before
	// it returns on every path.
	TryAcquireLatest() (*frame.Gray, error)

	// Torch returns the illuminator of the source, if it has one.
	Torch() (torch.Device, bool)

	// Close stops streaming and releases the device. Safe to call twice.
	Close() error
}

// Select returns the first source, scanning groups and their sources in order,
// that is infrared and usable for preview or record. Sources whose known
// formats are all undecodable are passed over.
func Select(groups []Group) (SourceInfo, Group, error) {
	for _, g := range groups {
		for _, s := range g.Sources {
			if s.Kind != KindInfrared {
				continue
			}
			// Y10/Y16-only nodes look infrared but cannot be decoded.
			if len(s.Formats) > 0 {
				if _, err := formatCandidates(s.Formats); err != nil {
					continue
				}
			}
			if s.Role == RolePreview || s.Role == RoleRecord {
				return s, g, nil
			}
		}
	}
	return SourceInfo{}, Group{}, ErrNoSourceFound
}

// EnumerateAndSelect lists the adapter's groups and selects the infrared source.
func EnumerateAndSelect(ctx context.Context, a Adapter) (SourceInfo, Group, error) {
	groups, err := a.Groups(ctx)
	if err != nil {
		return SourceInfo{}, Group{}, err
	}
	return Select(groups)
}

// videoNode is what enumeration learned about one device node.
type videoNode struct {
	Info SourceInfo
	Bus  string
}

// groupByBus collects nodes sharing a bus into one group, so the RGB and IR
// nodes of a camera module stay together. Order of first appearance is kept.
// A node without bus information forms its own group.
func groupByBus(scanned []videoNode) []Group {
	var (
		groups []Group
		index  = map[string]int{}
	)
	for _, p := range scanned {
		id := p.Bus
		if id == "" {
			id = p.Info.ID
		}
		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, Group{ID: id, Name: p.Info.Name})
		}
		groups[i].Sources = append(groups[i].Sources, p.Info)
	}
	return groups
}
