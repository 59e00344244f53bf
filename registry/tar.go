package registry

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// tarBuildContext packs the build context directory for the engine. Paths
// inside the archive are relative to the context root, slash separated.
func tarBuildContext(dir string) (io.Reader, error) {
	buf := new(bytes.Buffer)
	tarball := tar.NewWriter(buf)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		header, err := tar.FileInfoHeader(info, info.Name())
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tarball.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tarball, file)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tarball.Close(); err != nil {
		return nil, err
	}
	return bytes.NewReader(buf.Bytes()), nil
}
