// Package file implements ports.FlowRepository on the local filesystem.
//
// Layout under the base path:
//
//	flows/<flowID>.json
//	versions/<flowID>/<number>.json
//
// Every file is written to a temporary file, synced and then published with a
// rename (replace) or a hard link (create-only), so readers never observe a
// partial document and two writers can never claim the same version number.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/ports"
)

var _ ports.FlowRepository = (*Store)(nil)

// ErrInvalidID is returned for ids that cannot be used as file names.
var ErrInvalidID = errors.New("id is not a valid file name")

// Store implements ports.FlowRepository using JSON files.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".ivrflow/data".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".ivrflow", "data")
	}
	return &Store{BasePath: basePath}
}

func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\:`) || strings.HasPrefix(id, "tmp-") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (s *Store) flowsDir() string { return filepath.Join(s.BasePath, "flows") }

func (s *Store) flowPath(flowID string) string {
	return filepath.Join(s.flowsDir(), flowID+".json")
}

func (s *Store) versionsDir(flowID string) string {
	return filepath.Join(s.BasePath, "versions", flowID)
}

// CreateFlow writes a new flow file. An existing flow file is never overwritten.
func (s *Store) CreateFlow(ctx context.Context, flow domain.Flow) error {
	if err := checkID(flow.ID); err != nil {
		return err
	}
	err := s.write(s.flowsDir(), s.flowPath(flow.ID), flow, false)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("flow %q already exists", flow.ID)
	}
	return err
}

// UpdateFlow atomically replaces an existing flow file.
func (s *Store) UpdateFlow(ctx context.Context, flow domain.Flow) error {
	if err := checkID(flow.ID); err != nil {
		return err
	}
	if _, err := os.Stat(s.flowPath(flow.ID)); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrFlowNotFound
		}
		return fmt.Errorf("failed to stat flow file: %w", err)
	}
	return s.write(s.flowsDir(), s.flowPath(flow.ID), flow, true)
}

// GetFlow reads a flow file.
func (s *Store) GetFlow(ctx context.Context, flowID string) (domain.Flow, error) {
	if err := checkID(flowID); err != nil {
		return domain.Flow{}, domain.ErrFlowNotFound
	}
	var flow domain.Flow
	if err := readJSON(s.flowPath(flowID), &flow); err != nil {
		if os.IsNotExist(err) {
			return domain.Flow{}, domain.ErrFlowNotFound
		}
		return domain.Flow{}, err
	}
	return flow, nil
}

// ListFlows returns the flows of an organization ordered by creation time.
func (s *Store) ListFlows(ctx context.Context, organizationID string) ([]domain.Flow, error) {
	names, err := jsonFiles(s.flowsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	flows := make([]domain.Flow, 0)
	for _, name := range names {
		var flow domain.Flow
		if err := readJSON(filepath.Join(s.flowsDir(), name), &flow); err != nil {
			return nil, err
		}
		if flow.OrganizationID == organizationID {
			flows = append(flows, flow)
		}
	}
	sort.Slice(flows, func(i, j int) bool {
		if !flows[i].CreatedAt.Equal(flows[j].CreatedAt) {
			return flows[i].CreatedAt.Before(flows[j].CreatedAt)
		}
		return flows[i].ID < flows[j].ID
	})
	return flows, nil
}

// AppendVersion claims versions/<flowID>/<number>.json. Losing the claim yields ErrVersionConflict.
func (s *Store) AppendVersion(ctx context.Context, version domain.FlowVersion) error {
	if err := checkID(version.FlowID); err != nil {
		return err
	}
	if version.Version <= 0 {
		return fmt.Errorf("version number must be positive, got %d", version.Version)
	}
	dir := s.versionsDir(version.FlowID)
	dest := filepath.Join(dir, fmt.Sprintf("%08d.json", version.Version))
	err := s.write(dir, dest, version, false)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s v%d", domain.ErrVersionConflict, version.FlowID, version.Version)
	}
	return err
}

// GetVersion scans the version files of a flow for versionID.
func (s *Store) GetVersion(ctx context.Context, flowID, versionID string) (domain.FlowVersion, error) {
	versions, err := s.ListVersions(ctx, flowID)
	if err != nil {
		return domain.FlowVersion{}, err
	}
	for _, v := range versions {
		if v.ID == versionID {
			return v, nil
		}
	}
	return domain.FlowVersion{}, domain.ErrVersionNotFound
}

// ListVersions reads every version file of a flow, oldest first.
func (s *Store) ListVersions(ctx context.Context, flowID string) ([]domain.FlowVersion, error) {
	if err := checkID(flowID); err != nil {
		return []domain.FlowVersion{}, nil
	}
	dir := s.versionsDir(flowID)
	names, err := jsonFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	versions := make([]domain.FlowVersion, 0, len(names))
	for _, name := range names {
		var v domain.FlowVersion
		if err := readJSON(filepath.Join(dir, name), &v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })
	return versions, nil
}

// LatestVersion returns the highest version number of a flow, or 0.
func (s *Store) LatestVersion(ctx context.Context, flowID string) (int, error) {
	versions, err := s.ListVersions(ctx, flowID)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[len(versions)-1].Version, nil
}

// write marshals v to a temp file in dir, fsyncs it and publishes it at dest.
// With replace unset the publish is a hard link, which fails with os.ErrExist
// when dest is already taken.
func (s *Store) write(dir, dest string, v any, replace bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	// same directory so the rename/link stays on one filesystem
	tmpFile, err := os.CreateTemp(dir, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if replace {
		if err := os.Rename(tmpPath, dest); err != nil {
			return fmt.Errorf("failed to rename temp file: %w", err)
		}
		return nil
	}
	if err := os.Link(tmpPath, dest); err != nil {
		if os.IsExist(err) {
			return os.ErrExist
		}
		return fmt.Errorf("failed to publish file: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// jsonFiles lists the published documents of dir, skipping temp files.
func jsonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
