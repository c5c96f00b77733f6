package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// relocate moves a verified artifact into the destination directory. A
// same-named file already there is never overwritten: the new file gets an
// incrementing numeric suffix before the extension until a free name is
// found.
func (p *Pipeline) relocate(srcPath, filename string) (string, error) {
	if filepath.Ext(filename) == "" {
		filename = withSniffedExt(srcPath, filename)
	}

	if err := os.MkdirAll(p.opts.DestDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create destination dir: %w", err)
	}

	dest := filepath.Join(p.opts.DestDir, filename)
	for i := 1; ; i++ {
		_, err := os.Stat(dest)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", dest, err)
		}
		dest = filepath.Join(p.opts.DestDir, numberedName(filename, i))
	}

	if err := os.Rename(srcPath, dest); err != nil {
		return "", fmt.Errorf("failed to move %s: %w", srcPath, err)
	}
	return dest, nil
}

// numberedName inserts a numeric suffix before the extension, or at the
// end when there is none: "file.zip" -> "file-1.zip", "file" -> "file-1".
func numberedName(name string, i int) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s-%d%s", base, i, ext)
}

// withSniffedExt appends an extension derived from the artifact's magic
// bytes when the name carries none. Unknown content leaves the name as-is.
func withSniffedExt(srcPath, name string) string {
	f, err := os.Open(srcPath)
	if err != nil {
		return name
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return name
	}

	if kind, _ := filetype.Match(head[:n]); kind != filetype.Unknown && kind.Extension != "" {
		return name + "." + kind.Extension
	}
	return name
}
