package manifest

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/blakesmith/ar"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/openstore/openstore/internal/model"
	"github.com/ulikunitz/xz"
	"go.uber.org/zap"
)

const (
	arMagic = "!<arch>\n"

	maxMemberSize = 64 << 20
	maxIconSize   = 4 << 20
)

var errMemberNotFound = errors.New("archive member not found")

// clickReader reads click packages: Debian ar archives whose control
// tarball carries a JSON manifest.
type clickReader struct {
	logger *zap.Logger
}

func NewClickReader(logger *zap.Logger) Parser {
	return &clickReader{logger: logger}
}

type clickManifest struct {
	Name         string                       `json:"name"`
	Version      string                       `json:"version"`
	Architecture json.RawMessage              `json:"architecture"`
	Title        string                       `json:"title"`
	Description  string                       `json:"description"`
	Maintainer   string                       `json:"maintainer"`
	Framework    string                       `json:"framework"`
	Hooks        map[string]map[string]string `json:"hooks"`
}

func (c *clickReader) Parse(ctx context.Context, p string) (*Manifest, error) {
	control, err := readArMember(p, "control.tar")
	if err != nil {
		return nil, fmt.Errorf("failed to read control archive: %w", err)
	}

	files, err := readTarFiles(control.name, control.data, func(name string) bool {
		return name == "manifest"
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read control archive: %w", err)
	}

	raw, ok := files["manifest"]
	if !ok {
		return nil, fmt.Errorf("manifest: %w", errMemberNotFound)
	}

	var cm clickManifest
	if err := json.Unmarshal(raw, &cm); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	var rawMap map[string]any
	if err := json.Unmarshal(raw, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	m := &Manifest{
		Name:        cm.Name,
		Version:     cm.Version,
		Title:       cm.Title,
		Description: cm.Description,
		Maintainer:  cm.Maintainer,
		Framework:   cm.Framework,
		Raw:         rawMap,
	}
	m.Architecture, m.Architectures = normalizeArchitectures(decodeArchitecture(cm.Architecture))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.inspectHooks(p, &cm, m)
	return m, nil
}

// decodeArchitecture accepts the string and list forms.
func decodeArchitecture(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	return nil
}

// inspectHooks derives the package types from the hooks and extracts the
// icon of the first desktop file. Failures only lose the icon.
func (c *clickReader) inspectHooks(p string, cm *clickManifest, m *Manifest) {
	desktopPaths := map[string]bool{}
	var types []string
	addType := func(t string) {
		for _, v := range types {
			if v == t {
				return
			}
		}
		types = append(types, t)
	}

	for _, hook := range cm.Hooks {
		if _, ok := hook["scope"]; ok {
			addType(model.TypeScope)
		}
		if d, ok := hook["desktop"]; ok {
			desktopPaths[cleanMember(d)] = true
		}
	}

	defer func() {
		if len(types) == 0 {
			types = []string{model.TypeApp}
		}
		m.Types = types
	}()

	if len(desktopPaths) == 0 {
		return
	}

	data, err := readArMember(p, "data.tar")
	if err != nil {
		c.logger.Warn("failed to read data archive", zap.Error(err))
		addType(model.TypeApp)
		return
	}

	desktops, err := readTarFiles(data.name, data.data, func(name string) bool {
		return desktopPaths[name]
	})
	if err != nil {
		c.logger.Warn("failed to read desktop files", zap.Error(err))
	}

	var icon string
	for name, content := range desktops {
		entry := parseDesktopEntry(content)
		if strings.Contains(entry["Exec"], "webapp-container") {
			addType(model.TypeWebapp)
		} else {
			addType(model.TypeApp)
		}

		if icon == "" && entry["Icon"] != "" {
			icon = cleanMember(path.Join(path.Dir(name), entry["Icon"]))
		}
	}
	if len(desktops) == 0 {
		addType(model.TypeApp)
	}

	if icon == "" {
		return
	}

	icons, err := readTarFiles(data.name, data.data, func(name string) bool {
		return name == icon
	})
	if err != nil || len(icons[icon]) == 0 || len(icons[icon]) > maxIconSize {
		c.logger.Debug("icon not extracted", zap.String("icon", icon), zap.Error(err))
		return
	}

	if m.IconPath, err = saveIcon(p, icon, icons[icon]); err != nil {
		c.logger.Warn("failed to save icon", zap.Error(err))
	}
}

type arMember struct {
	name string
	data []byte
}

// readArMember returns the first member of the ar archive at p whose name
// starts with prefix.
func readArMember(p, prefix string) (*arMember, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, len(arMagic))
	if _, err := f.ReadAt(magic, 0); err != nil || string(magic) != arMagic {
		return nil, errors.New("not an ar archive")
	}

	r := ar.NewReader(f)
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%s: %w", prefix, errMemberNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ar header: %w", err)
		}

		name := strings.TrimRight(strings.TrimSpace(header.Name), "/")
		if !strings.HasPrefix(name, prefix) {
			continue
		}

		if header.Size > maxMemberSize {
			return nil, fmt.Errorf("%s is too large", name)
		}

		data, err := io.ReadAll(io.LimitReader(r, header.Size))
		if err != nil {
			return nil, err
		}
		return &arMember{name: name, data: data}, nil
	}
}

// readTarFiles returns the regular files of a possibly compressed tarball
// accepted by want, keyed by cleaned member name.
func readTarFiles(filename string, data []byte, want func(name string) bool) (map[string][]byte, error) {
	var src io.Reader = bytes.NewReader(data)

	switch {
	case strings.HasSuffix(filename, ".gz"):
		gr, err := gzip.NewReader(src)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		src = gr
	case strings.HasSuffix(filename, ".xz"):
		xr, err := xz.NewReader(src)
		if err != nil {
			return nil, err
		}
		src = xr
	case strings.HasSuffix(filename, ".zst"):
		zr, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		src = zr
	}

	files := map[string][]byte{}
	tr := tar.NewReader(src)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return files, err
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := cleanMember(header.Name)
		if !want(name) {
			continue
		}

		b, err := io.ReadAll(io.LimitReader(tr, maxMemberSize))
		if err != nil {
			return files, err
		}
		files[name] = b
	}

	return files, nil
}

// cleanMember turns "./share/app.desktop" into "share/app.desktop".
func cleanMember(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// parseDesktopEntry returns the keys of the [Desktop Entry] group.
func parseDesktopEntry(b []byte) map[string]string {
	entry := map[string]string{}
	inGroup := false

	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			inGroup = line == "[Desktop Entry]"
			continue
		}

		if !inGroup {
			continue
		}

		if k, v, ok := strings.Cut(line, "="); ok {
			entry[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}

	return entry
}
