package manifest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/openstore/openstore/internal/model"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const snapYamlPath = "meta/snap.yaml"

var snapIconNames = []string{"meta/gui/icon.png", "meta/gui/icon.svg"}

// snapReader extracts meta/snap.yaml with unsquashfs.
type snapReader struct {
	logger     *zap.Logger
	unsquashfs string
}

func NewSnapReader(logger *zap.Logger, unsquashfs string) Parser {
	if unsquashfs == "" {
		unsquashfs = "unsquashfs"
	}

	return &snapReader{
		logger:     logger,
		unsquashfs: unsquashfs,
	}
}

type snapYaml struct {
	Name          string   `yaml:"name"`
	Version       string   `yaml:"version"`
	Title         string   `yaml:"title"`
	Summary       string   `yaml:"summary"`
	Description   string   `yaml:"description"`
	Architectures []string `yaml:"architectures"`
	Type          string   `yaml:"type"`
	Base          string   `yaml:"base"`
}

func (s *snapReader) Parse(ctx context.Context, p string) (*Manifest, error) {
	dir, err := os.MkdirTemp("", "snap-manifest-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	unpackDir := filepath.Join(dir, "unpack")
	if err := s.extract(ctx, p, unpackDir, snapYamlPath); err != nil {
		return nil, err
	}

	b, err := os.ReadFile(filepath.Join(unpackDir, snapYamlPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", snapYamlPath, err)
	}

	m, err := parseSnapYaml(b)
	if err != nil {
		return nil, err
	}

	// The icon is optional, a missing one is not an error.
	if err := s.extract(ctx, p, unpackDir, "meta/gui"); err != nil {
		s.logger.Debug("no gui directory in snap", zap.Error(err))
		return m, nil
	}

	for _, name := range snapIconNames {
		icon, err := os.ReadFile(filepath.Join(unpackDir, name))
		if err != nil || len(icon) == 0 || len(icon) > maxIconSize {
			continue
		}

		if m.IconPath, err = saveIcon(p, name, icon); err != nil {
			s.logger.Warn("failed to save icon", zap.Error(err))
		}
		break
	}

	return m, nil
}

func (s *snapReader) extract(ctx context.Context, snapPath, dest, member string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.unsquashfs, "-n", "-f", "-d", dest, snapPath, member)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("unsquashfs %s: %w: %s", member, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

func parseSnapYaml(b []byte) (*Manifest, error) {
	var y snapYaml
	if err := yaml.Unmarshal(b, &y); err != nil {
		return nil, fmt.Errorf("failed to decode snap.yaml: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode snap.yaml: %w", err)
	}

	archs := y.Architectures
	if len(archs) == 0 {
		archs = []string{model.ArchitectureAll}
	}

	title := y.Title
	if title == "" {
		title = y.Summary
	}

	m := &Manifest{
		Name:        y.Name,
		Version:     y.Version,
		Title:       title,
		Description: y.Description,
		Framework:   y.Base,
		Types:       []string{model.TypeSnappy},
		Raw:         raw,
	}
	m.Architecture, m.Architectures = normalizeArchitectures(archs)

	return m, nil
}
