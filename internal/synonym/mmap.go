package synonym

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// mmapRead maps path read-only and copies it into a plain byte slice,
// avoiding a double-buffered read.File for potentially large, frequently
// reloaded synonym files (date/NER tables accumulate entries across runs).
func mmapRead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer m.Unmap()

	out := make([]byte, len(m))
	copy(out, m)
	return out, nil
}
