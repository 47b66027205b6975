package index

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jobala/rtstore/storage/disk"
	"github.com/jobala/rtstore/util"
)

// Create makes a new, empty index at opts.Path, replacing any page file
// already there.
func Create(opts Options) (*Params, error) {
	if opts.Path == "" {
		return nil, errors.New("index path is required")
	}

	opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	ch, err := disk.OpenChannel(opts.Path, opts.Logger)
	if err != nil {
		return nil, err
	}
	if err := ch.Truncate(0); err != nil {
		_ = ch.Close()
		return nil, err
	}

	p, err := NewParams(ch, 0, opts)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	p.path = opts.Path

	if err := p.writeMeta(); err != nil {
		_ = ch.Close()
		return nil, err
	}

	p.logger.Info("created index",
		zap.String("path", p.path),
		zap.Int("max_entries", p.maxEntries),
		zap.Int("record_width", p.schema.RecordWidth()),
	)
	return p, nil
}

// Open opens an index made by Create. Zero MaxEntries or a nil Schema in
// opts are taken from the index metadata; set values must match it.
func Open(opts Options) (*Params, error) {
	if opts.Path == "" {
		return nil, errors.New("index path is required")
	}

	m, err := readMeta(MetaPath(opts.Path))
	if err != nil {
		return nil, err
	}

	if opts.MaxEntries == 0 {
		opts.MaxEntries = m.MaxEntries
	} else if opts.MaxEntries != m.MaxEntries {
		return nil, util.CorruptPage("index %s was written with fan-out %d, opened with %d", opts.Path, m.MaxEntries, opts.MaxEntries)
	}

	if opts.Schema == nil {
		schema := m.Schema
		opts.Schema = &schema
	} else if !opts.Schema.Equal(&m.Schema) {
		return nil, util.CorruptPage("index %s was written with a different leaf schema", opts.Path)
	}

	ch, err := disk.OpenChannel(opts.Path, opts.Logger)
	if err != nil {
		return nil, err
	}

	size, err := ch.Size()
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	if size < m.FileEnd {
		_ = ch.Close()
		return nil, util.CorruptPage("index %s is %d bytes, metadata expects %d", opts.Path, size, m.FileEnd)
	}

	p, err := NewParams(ch, size, opts)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	p.path = opts.Path
	p.root = m.RootOffset
	p.saved = m

	return p, nil
}

// Close flushes the cache, records the root and file end in the metadata
// when either moved since it was last written, and closes the page file.
func (p *Params) Close() error {
	return p.Do(func() error {
		if err := p.cache.FlushAll(); err != nil {
			return err
		}

		if p.path != "" && p.metaChanged() {
			if err := p.writeMeta(); err != nil {
				return err
			}
		}

		if orphaned := p.alloc.Orphaned(); orphaned > 0 {
			p.logger.Warn("freed pages are lost on close", zap.Int64("bytes", orphaned))
		}

		if err := p.ch.Close(); err != nil {
			return errors.WithMessagef(err, "closing index %s", p.path)
		}
		return nil
	})
}

func (p *Params) meta() indexMeta {
	return indexMeta{
		Version:    META_VERSION,
		MaxEntries: p.maxEntries,
		Schema:     *p.schema,
		RootOffset: p.root,
		FileEnd:    p.alloc.End(),
	}
}

func (p *Params) writeMeta() error {
	m := p.meta()
	if err := writeMeta(MetaPath(p.path), m); err != nil {
		return err
	}
	p.saved = m
	return nil
}

// metaChanged reports whether the root or file end moved since the metadata
// was read or written. Fan-out and schema are fixed for the life of an index.
func (p *Params) metaChanged() bool {
	m := p.meta()
	return m.RootOffset != p.saved.RootOffset || m.FileEnd != p.saved.FileEnd
}
