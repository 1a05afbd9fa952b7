package relationstore

import (
	"context"
	"fmt"
)

// ModelState is the authorization-model manager's state machine (§4.1
// expansion, SPEC_FULL.md §4.1): Uninstalled → V3Installed → Migrating →
// V4Installed.
type ModelState int

const (
	ModelUninstalled ModelState = iota
	ModelV3Installed
	ModelMigrating
	ModelV4Installed
)

func (s ModelState) String() string {
	switch s {
	case ModelUninstalled:
		return "uninstalled"
	case ModelV3Installed:
		return "v3_installed"
	case ModelMigrating:
		return "migrating"
	case ModelV4Installed:
		return "v4_installed"
	default:
		return "unknown"
	}
}

// ModelManager owns bootstrap's decision of which authorization model is
// installed, and reports ModelMigrating while a migration's marker is
// present without v4's. It does not itself reject catalog traffic; no
// method returns MigrationInProgress.
type ModelManager struct {
	client *Client
}

// NewModelManager wraps a Client with model-version bookkeeping.
func NewModelManager(client *Client) *ModelManager {
	return &ModelManager{client: client}
}

// CurrentState inspects the store's installed modelversion tuples and
// reports where bootstrap should resume.
func (mm *ModelManager) CurrentState(ctx context.Context) (ModelState, error) {
	v4, _, err := mm.client.Read(ctx, TupleKey{Object: "authmodelid:4.0", Relation: "exists"}, 1, "", HigherConsistency)
	if err != nil {
		return ModelUninstalled, err
	}
	if len(v4) > 0 {
		return ModelV4Installed, nil
	}

	migrating, _, err := mm.client.Read(ctx, TupleKey{Object: "authmodelid:migrating", Relation: "exists"}, 1, "", HigherConsistency)
	if err != nil {
		return ModelUninstalled, err
	}
	if len(migrating) > 0 {
		return ModelMigrating, nil
	}

	v3, _, err := mm.client.Read(ctx, TupleKey{Object: "authmodelid:3.0", Relation: "exists"}, 1, "", HigherConsistency)
	if err != nil {
		return ModelUninstalled, err
	}
	if len(v3) > 0 {
		return ModelV3Installed, nil
	}
	return ModelUninstalled, nil
}

// InstallV3 stamps the store as freshly bootstrapped on model v3, writing
// every setup tuple named by the compiled-in v3.0 model document (§3.3).
// Callers must hold a startup lock; this is not itself transactional
// across a concurrent installer.
func (mm *ModelManager) InstallV3(ctx context.Context) error {
	doc, err := LoadModelDoc("3.0")
	if err != nil {
		return err
	}
	return mm.client.Write(ctx, doc.SetupWrites(), nil)
}

// MarkMigrating stamps the store as undergoing the v3→v4 migration. While
// in this state, catalog traffic must fail with MigrationInProgress (§7).
func (mm *ModelManager) MarkMigrating(ctx context.Context) error {
	return mm.client.Write(ctx, []Tuple{{User: "modelversion:migrating", Relation: "exists", Object: "authmodelid:migrating"}}, nil)
}

// MarkV4Installed stamps the store as having completed the v4 migration,
// writing the v4.0 model document's setup tuples (§3.3).
func (mm *ModelManager) MarkV4Installed(ctx context.Context) error {
	doc, err := LoadModelDoc("4.0")
	if err != nil {
		return err
	}
	return mm.client.Write(ctx, doc.SetupWrites(), nil)
}

// EnsureReady is the bootstrap entry point: installs v3 on a brand-new
// store, or returns the current state for the caller to act on (run the
// TME if V3Installed, refuse traffic if Migrating).
func (mm *ModelManager) EnsureReady(ctx context.Context) (ModelState, error) {
	state, err := mm.CurrentState(ctx)
	if err != nil {
		return state, fmt.Errorf("model manager: %w", err)
	}
	if state == ModelUninstalled {
		if err := mm.InstallV3(ctx); err != nil {
			return ModelUninstalled, fmt.Errorf("model manager: install v3: %w", err)
		}
		return ModelV3Installed, nil
	}
	return state, nil
}
