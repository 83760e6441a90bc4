package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/appdraft/appdraft/internal/conventions"
	"github.com/appdraft/appdraft/internal/model"
)

func excluded(name string) bool {
	for _, d := range conventions.ArchiveExcludedDirs {
		if name == d {
			return true
		}
	}
	return false
}

// Pack writes a zip bundle of the project directory to w, skipping build
// byproduct directories and symlinks.
func Pack(dir string, w io.Writer) error {
	zw := zip.NewWriter(w)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && excluded(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		fw, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("could not add %s: %w", rel, err)
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(fw, f); err != nil {
			return fmt.Errorf("could not write %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		zw.Close()
		return err
	}

	return zw.Close()
}

// Unpack extracts a zip bundle into dir. Entry paths are validated so a
// crafted bundle cannot write outside dir.
func Unpack(r io.ReaderAt, size int64, dir string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("could not open bundle: %w", err)
	}

	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}

		dest, err := model.SafeJoin(dir, f.Name)
		if err != nil {
			return fmt.Errorf("unsafe bundle entry %q: %w", f.Name, err)
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("could not open bundle entry %q: %w", f.Name, err)
		}
		out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return fmt.Errorf("could not extract %q: %w", f.Name, err)
		}
	}

	return nil
}
