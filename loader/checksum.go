package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"
)

// checksum fingerprints the content files in load order, names included,
// so a save can tell when the game it was written against has changed.
func checksum(dir string, files []string) (string, error) {
	h := xxh3.New()
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", f, err)
		}
		h.WriteString(f)
		h.Write([]byte{0})
		h.Write(data)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
