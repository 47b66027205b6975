package index

import (
	"encoding/binary"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/jobala/rtstore/util"
)

const (
	META_VERSION = 1
	META_SIZE    = 4096
	META_SUFFIX  = ".meta"

	checksumSize = 8
)

func MetaPath(indexPath string) string {
	return indexPath + META_SUFFIX
}

// writeMeta replaces the sidecar file in one rename. Layout: xxhash64 of the
// body, then the msgpack body zero padded to META_SIZE.
func writeMeta(path string, m indexMeta) error {
	body, err := util.ToByteSlice(m, META_SIZE-checksumSize)
	if err != nil {
		return util.InvalidEntry("encoding index metadata: %v", err)
	}

	buf := make([]byte, META_SIZE)
	binary.BigEndian.PutUint64(buf[:checksumSize], xxhash.Sum64(body))
	copy(buf[checksumSize:], body)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0644); err != nil {
		return util.IoError(err, "error writing index metadata %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return util.IoError(err, "error replacing index metadata %s", path)
	}

	return nil
}

func readMeta(path string) (indexMeta, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return indexMeta{}, util.IoError(err, "error reading index metadata %s", path)
	}
	if len(buf) != META_SIZE {
		return indexMeta{}, util.CorruptPage("index metadata %s is %d bytes, want %d", path, len(buf), META_SIZE)
	}

	body := buf[checksumSize:]
	if binary.BigEndian.Uint64(buf[:checksumSize]) != xxhash.Sum64(body) {
		return indexMeta{}, util.CorruptPage("index metadata %s fails its checksum", path)
	}

	m, err := util.ToStruct[indexMeta](body)
	if err != nil {
		return indexMeta{}, util.CorruptPage("decoding index metadata %s: %v", path, err)
	}
	if m.Version != META_VERSION {
		return indexMeta{}, util.CorruptPage("index metadata %s has version %d, want %d", path, m.Version, META_VERSION)
	}

	return m, nil
}

// indexMeta is what the page file itself does not record: the parameters
// the pages were written with and where the tree starts.
type indexMeta struct {
	Version    int    `msgpack:"version"`
	MaxEntries int    `msgpack:"max_entries"`
	Schema     Schema `msgpack:"schema"`
	RootOffset int64  `msgpack:"root_offset"`
	FileEnd    int64  `msgpack:"file_end"`
}
