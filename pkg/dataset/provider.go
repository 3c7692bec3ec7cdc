// Package dataset locates the tabular data attached to a session and exposes
// its schema metadata. Analysis phases produce new artifacts; the provider
// always hands out the file for the phase the caller asks for instead of a
// fixed file name, so a stale earlier-phase CSV can never shadow a newer one.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
)

// Phase identifies which artifact of the analysis pipeline is wanted.
type Phase string

const (
	PhaseRaw      Phase = "RAW"
	PhasePostTPR  Phase = "POST_TPR"
	PhasePostRisk Phase = "POST_RISK"
)

// File names under each session's upload directory, one per phase.
var phaseFiles = map[Phase]string{
	PhaseRaw:      "raw.csv",
	PhasePostTPR:  "tpr_results.csv",
	PhasePostRisk: "risk_unified.csv",
}

// Handle references a session's dataset for one phase. The provider owns the
// path layout; callers never build paths themselves.
type Handle struct {
	SessionID string
	Phase     Phase
	Path      string
}

// Provider resolves dataset handles per session and phase.
type Provider struct {
	baseDir string
	schemas *SchemaCache
}

func NewProvider(baseDir string, schemas *SchemaCache) *Provider {
	return &Provider{baseDir: baseDir, schemas: schemas}
}

// BaseDir returns the uploads root.
func (p *Provider) BaseDir() string {
	return p.baseDir
}

// Resolve returns the handle for the session's dataset at the given phase,
// or nil when that phase's artifact does not exist yet.
func (p *Provider) Resolve(sessionID string, phase Phase) (*Handle, error) {
	name, ok := phaseFiles[phase]
	if !ok {
		return nil, fmt.Errorf("dataset: unknown phase %q", phase)
	}
	path := filepath.Join(p.baseDir, sessionID, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("dataset: stat %s: %w", path, err)
	}
	return &Handle{SessionID: sessionID, Phase: phase, Path: path}, nil
}

// Current returns the most advanced phase that exists for the session,
// walking POST_RISK -> POST_TPR -> RAW. Nil when nothing is uploaded.
func (p *Provider) Current(sessionID string) (*Handle, error) {
	for _, phase := range []Phase{PhasePostRisk, PhasePostTPR, PhaseRaw} {
		h, err := p.Resolve(sessionID, phase)
		if err != nil {
			return nil, err
		}
		if h != nil {
			return h, nil
		}
	}
	return nil, nil
}

// PathFor returns where the artifact for a phase should be written. The
// session directory is created on demand.
func (p *Provider) PathFor(sessionID string, phase Phase) (string, error) {
	name, ok := phaseFiles[phase]
	if !ok {
		return "", fmt.Errorf("dataset: unknown phase %q", phase)
	}
	dir := filepath.Join(p.baseDir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("dataset: mkdir %s: %w", dir, err)
	}
	return filepath.Join(dir, name), nil
}

// Schema returns cached column metadata for a handle.
func (p *Provider) Schema(h *Handle) (*Schema, error) {
	return p.schemas.Load(h.Path)
}
