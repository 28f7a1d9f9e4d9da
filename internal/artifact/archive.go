package artifact

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
)

// archiveFiles returns the regular files of a zip archive.
func archiveFiles(data []byte) ([]*zip.File, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid archive: %v", ErrArtifactNotFound, err)
	}

	var files []*zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

// singleEntry returns the name and content of the only file in a zip archive.
// An empty archive or one with several files is never resolved.
func singleEntry(data []byte) (string, []byte, error) {
	files, err := archiveFiles(data)
	if err != nil {
		return "", nil, err
	}
	if len(files) != 1 {
		return "", nil, fmt.Errorf("%w: archive holds %d files, want exactly 1", ErrArtifactNotFound, len(files))
	}

	content, err := readEntry(files[0])
	if err != nil {
		return "", nil, err
	}
	return path.Base(files[0].Name), content, nil
}

// namedEntry returns the content of the file called name, at any depth.
func namedEntry(data []byte, name string) ([]byte, error) {
	files, err := archiveFiles(data)
	if err != nil {
		return nil, err
	}

	var match *zip.File
	for _, f := range files {
		if path.Base(f.Name) != name {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: archive holds more than one %s", ErrArtifactNotFound, name)
		}
		match = f
	}
	if match == nil {
		return nil, fmt.Errorf("%w: archive holds no %s", ErrArtifactNotFound, name)
	}
	return readEntry(match)
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return content, nil
}
