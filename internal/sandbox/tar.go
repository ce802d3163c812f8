package sandbox

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
)

// tarSingleFile builds an in-memory tar stream containing one file, for the
// Docker CopyToContainer upload path (spec §4.C "in-memory tar streams; no
// volume mounts").
func tarSingleFile(name string, content []byte) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("sandbox: tar header for %s: %w", name, err)
	}
	if _, err := tw.Write(content); err != nil {
		return nil, fmt.Errorf("sandbox: tar write for %s: %w", name, err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("sandbox: tar close for %s: %w", name, err)
	}
	return &buf, nil
}

// untarSingleFile reads the first regular file entry out of a tar stream,
// the shape CopyFromContainer returns for a single-file path.
func untarSingleFile(r io.Reader) ([]byte, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("sandbox: tar stream contained no file")
		}
		if err != nil {
			return nil, fmt.Errorf("sandbox: read tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return nil, fmt.Errorf("sandbox: read tar content: %w", err)
		}
		return buf.Bytes(), nil
	}
}
