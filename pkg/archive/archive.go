// Package archive writes and reads packaged builds as tar archives.
// Archives ending in .tar.xz are xz compressed, .tar.gz and .tgz are gzip
// compressed and anything else is a plain tar.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// ErrUnsafePath is returned when an archive entry would extract outside
// the destination
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Name builds the conventional archive file name for a package build,
// e.g. sqlite-burrito-0.2.0-Linux-x86_64-Release.tar.xz
func Name(name, version, osName, arch, buildType string) string {
	parts := []string{name, strings.TrimPrefix(version, "v")}
	for _, p := range []string{osName, arch, buildType} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-") + ".tar.xz"
}

// Create archives the contents of srcDir into dst and returns the number
// of files written. Entry names are relative to srcDir.
func Create(srcDir, dst string) (int, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return 0, fmt.Errorf("failed to stat package folder: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", srcDir)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	//nolint:gosec // G304: dst is the configured archive path
	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}

	w, err := compressor(f, dst)
	if err != nil {
		f.Close()
		return 0, err
	}
	tw := tar.NewWriter(w)

	files, err := writeTree(tw, srcDir)
	if err == nil {
		err = tw.Close()
	}
	if err == nil {
		err = w.Close()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return 0, fmt.Errorf("failed to write archive %s: %w", dst, err)
	}
	return files, nil
}

func writeTree(tw *tar.Writer, srcDir string) (int, error) {
	files := 0
	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		//nolint:gosec // G304: path comes from walking the package folder
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		if _, err := io.Copy(tw, in); err != nil {
			return err
		}
		files++
		return nil
	})
	return files, err
}

// List returns the entry names of an archive in order
func List(path string) ([]string, error) {
	var names []string
	err := walk(path, func(hdr *tar.Header, _ io.Reader) error {
		names = append(names, hdr.Name)
		return nil
	})
	return names, err
}

// Extract unpacks an archive into dstDir
func Extract(path, dstDir string) error {
	return walk(path, func(hdr *tar.Header, r io.Reader) error {
		name := strings.TrimPrefix(hdr.Name, "./")
		if name == "" || name == "." {
			return nil
		}
		target := filepath.Join(dstDir, filepath.FromSlash(name))
		if rel, err := filepath.Rel(dstDir, target); err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("%w: %s", ErrUnsafePath, hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			return os.MkdirAll(target, 0755)
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(hdr.Linkname, target)
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			//nolint:gosec // G304: target is checked to stay under dstDir
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return err
			}
			//nolint:gosec // G110: archives are produced by Create
			written, err := io.Copy(out, r)
			out.Close()
			if err != nil {
				return err
			}
			if written != hdr.Size {
				return fmt.Errorf("size mismatch for %s: expected %d, got %d", name, hdr.Size, written)
			}
		}
		return nil
	})
}

func walk(path string, fn func(*tar.Header, io.Reader) error) error {
	//nolint:gosec // G304: path is the archive the caller asked for
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	r, err := decompressor(f, path)
	if err != nil {
		return err
	}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func compressor(w io.Writer, name string) (io.WriteCloser, error) {
	switch {
	case strings.HasSuffix(name, ".xz"):
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating xz writer: %w", err)
		}
		return xw, nil
	case strings.HasSuffix(name, ".gz"), strings.HasSuffix(name, ".tgz"):
		return gzip.NewWriter(w), nil
	default:
		return nopWriteCloser{w}, nil
	}
}

func decompressor(r io.Reader, name string) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".xz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return xr, nil
	case strings.HasSuffix(name, ".gz"), strings.HasSuffix(name, ".tgz"):
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gr, nil
	default:
		return r, nil
	}
}
