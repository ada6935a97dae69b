// Package upload stores user-submitted files under a public root and maps the
// stored relative paths back to public URLs.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PublicPrefix is the first segment of every relative path handed out by Store
const PublicPrefix = "uploads"

var ErrInvalidPath = errors.New("invalid upload path")

// File is an uploaded file that is already on disk
type File struct {
	// OriginalName is the file name reported by the client
	OriginalName string

	// TempPath is where the upload currently lives; Store moves it away
	TempPath string
}

// maxExtensionLen bounds the extension, dot included, carried into stored names
const maxExtensionLen = 10

// Extension returns the lower-cased extension of the client file name, dot
// included. Extensions that are too long or not alphanumeric yield "".
func (f File) Extension() string {
	ext := strings.ToLower(filepath.Ext(f.OriginalName))
	if len(ext) < 2 || len(ext) > maxExtensionLen {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

// Manager moves uploads into the public root and resolves them for reading
type Manager struct {
	root    string
	baseURL string
	now     func() time.Time
}

// NewManager creates a Manager rooted at root whose files are served from baseURL
func NewManager(root, baseURL string) *Manager {
	return &Manager{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Root returns the directory relative paths are resolved against
func (m *Manager) Root() string {
	return m.root
}

// Store moves file into <root>/uploads/<folder>/ and returns its relative path.
// When name is empty a collision-resistant one is generated from the current
// time, a random suffix and the original extension.
func (m *Manager) Store(folder string, file File, name string) (string, error) {
	if !isSegment(folder) {
		return "", fmt.Errorf("%w: folder %q", ErrInvalidPath, folder)
	}
	if name == "" {
		name = m.generateName(file.Extension())
	} else if !isSegment(name) {
		return "", fmt.Errorf("%w: file name %q", ErrInvalidPath, name)
	}

	dir := filepath.Join(m.root, PublicPrefix, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}

	dst := filepath.Join(dir, name)
	if err := moveFile(file.TempPath, dst); err != nil {
		return "", fmt.Errorf("could not move the file to %s: %w", dst, err)
	}

	return path.Join(PublicPrefix, folder, name), nil
}

// Delete removes the file at relativePath. It reports false without error when
// there is nothing to delete: an empty path, a missing file or a non-regular file.
func (m *Manager) Delete(relativePath string) (bool, error) {
	if strings.TrimSpace(relativePath) == "" {
		return false, nil
	}

	fullPath, err := m.resolve(relativePath)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", fullPath, err)
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}

	if err := os.Remove(fullPath); err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", fullPath, err)
	}

	return true, nil
}

// URLFor returns the public URL of relativePath if the file currently exists
func (m *Manager) URLFor(relativePath string) (string, bool) {
	if strings.TrimSpace(relativePath) == "" {
		return "", false
	}

	fullPath, err := m.resolve(relativePath)
	if err != nil {
		return "", false
	}

	if _, err := os.Stat(fullPath); err != nil {
		return "", false
	}

	return m.baseURL + "/" + strings.TrimLeft(filepath.ToSlash(relativePath), "/"), true
}

// resolve maps a relative path onto the root, refusing anything that escapes it
func (m *Manager) resolve(relativePath string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimLeft(relativePath, "/")))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relativePath)
	}
	return filepath.Join(m.root, cleaned), nil
}

func (m *Manager) generateName(ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d_%s%s", m.now().Unix(), suffix, ext)
}

func isSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// moveFile renames src to dst, copying when the two sit on different devices
func moveFile(src, dst string) error {
	if src == "" {
		return errors.New("no temporary file")
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}
	if _, statErr := os.Stat(src); statErr != nil {
		return err
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
