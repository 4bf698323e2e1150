package session

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var nonWordChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SanitizeName derives a filesystem safe artifact key from a scenario name.
// Every character outside [A-Za-z0-9_] becomes an underscore and the result is lower-cased.
func SanitizeName(name string) string {
	if name == "" {
		return "scenario"
	}
	return strings.ToLower(nonWordChars.ReplaceAllString(name, "_"))
}

// ArtifactSet lists the files written while releasing a session.
// An empty path means the artifact is absent.
type ArtifactSet struct {
	TracePath   string
	VideoPath   string
	ConsolePath string
	LogPath     string
}

// Empty reports whether no artifact was written.
func (a ArtifactSet) Empty() bool {
	return a == ArtifactSet{}
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func writeArtifact(path string, w io.WriterTo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
