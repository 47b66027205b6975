package disk

import (
	"io"
	"os"
	"sync"

	"github.com/jobala/rtstore/util"
	"go.uber.org/zap"
)

// OpenChannel opens (or creates) the page file at path.
func OpenChannel(path string, logger *zap.Logger) (*Channel, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, util.IoError(err, "error opening page file %s", path)
	}

	return NewChannel(file, logger), nil
}

func NewChannel(file *os.File, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Channel{
		file:   file,
		logger: logger.Named("channel"),
	}
}

// ReadAt fills buf from offset. A short read is an error: pages are fixed
// length and every allocated page lies inside the file.
func (c *Channel) ReadAt(buf []byte, offset int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return util.IoError(os.ErrClosed, "error reading %d bytes at offset %d", len(buf), offset)
	}

	n, err := c.file.ReadAt(buf, offset)
	if err != nil {
		if err == io.EOF && n < len(buf) {
			err = io.ErrUnexpectedEOF
		}
		return util.IoError(err, "error reading %d bytes at offset %d", len(buf), offset)
	}

	return nil
}

// WriteAt writes data at offset as a single call so that no other read or
// write on the channel can interleave with it.
func (c *Channel) WriteAt(data []byte, offset int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return util.IoError(os.ErrClosed, "error writing %d bytes at offset %d", len(data), offset)
	}

	if _, err := c.file.WriteAt(data, offset); err != nil {
		return util.IoError(err, "error writing %d bytes at offset %d", len(data), offset)
	}

	c.writes++
	return nil
}

func (c *Channel) Size() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return 0, util.IoError(os.ErrClosed, "error reading file size")
	}

	info, err := c.file.Stat()
	if err != nil {
		return 0, util.IoError(err, "error reading file size")
	}

	return info.Size(), nil
}

// Truncate resizes the page file. Growing zero fills the new tail.
func (c *Channel) Truncate(size int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return util.IoError(os.ErrClosed, "error resizing page file to %d", size)
	}

	if err := c.file.Truncate(size); err != nil {
		return util.IoError(err, "error resizing page file to %d", size)
	}

	c.logger.Debug("resized page file", zap.Int64("size", size))
	return nil
}

func (c *Channel) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return util.IoError(os.ErrClosed, "error syncing page file")
	}

	if err := c.file.Sync(); err != nil {
		return util.IoError(err, "error syncing page file")
	}

	return nil
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil
	}

	syncErr := c.file.Sync()
	closeErr := c.file.Close()
	c.file = nil

	if syncErr != nil {
		return util.IoError(syncErr, "error syncing page file before close")
	}
	if closeErr != nil {
		return util.IoError(closeErr, "error closing page file")
	}

	return nil
}

// Writes reports how many WriteAt calls succeeded.
func (c *Channel) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func (c *Channel) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return ""
	}
	return c.file.Name()
}

type Channel struct {
	mu     sync.Mutex
	file   *os.File
	writes int
	logger *zap.Logger
}
