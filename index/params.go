package index

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jobala/rtstore/buffer"
	"github.com/jobala/rtstore/settings"
	"github.com/jobala/rtstore/storage/disk"
)

const (
	DEFAULT_MAX_ENTRIES = 16
	DEFAULT_CACHE_SIZE  = 128
)

var validate = validator.New()

// OptionsFromConfig turns the index section of a config file into Options.
func OptionsFromConfig(cfg settings.Index, logger *zap.Logger) Options {
	fields := make([]Field, len(cfg.Schema))
	for i, f := range cfg.Schema {
		fields[i] = Field{Name: f.Name, Kind: FieldKind(f.Kind), Size: f.Width}
	}

	opts := Options{
		Path:       cfg.Path,
		MaxEntries: cfg.MaxEntries,
		CacheSize:  cfg.CacheSize,
		Logger:     logger,
	}
	if len(fields) > 0 || cfg.Encoding != "" {
		opts.Schema = &Schema{Fields: fields, Encoding: cfg.Encoding}
	}
	return opts
}

func (o *Options) withDefaults() {
	if o.CacheSize == 0 {
		o.CacheSize = DEFAULT_CACHE_SIZE
	}
	if o.Schema == nil {
		o.Schema = &Schema{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

func (o *Options) validate() error {
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(err, "invalid index options")
	}
	if err := o.Schema.Validate(); err != nil {
		return errors.Wrap(err, "invalid leaf schema")
	}
	return nil
}

// NewParams builds the shared context every node of one index works
// against. end is the offset at which new pages are appended.
func NewParams(ch *disk.Channel, end int64, opts Options) (*Params, error) {
	opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger.Named("index")
	return &Params{
		maxEntries: opts.MaxEntries,
		schema:     opts.Schema,
		ch:         ch,
		alloc:      disk.NewAllocator(ch, end, opts.Logger),
		cache:      buffer.NewNodeCache[*Node](opts.CacheSize, opts.Logger),
		root:       INVALID_OFFSET,
		logger:     logger,
	}, nil
}

// Do runs fn while holding the index lock. A whole tree operation (lookups,
// mutations, saves and frees) should run inside one Do call; nodes, the
// cache and the allocator do no locking of their own.
func (p *Params) Do(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return fn()
}

// GetNode returns the node at offset from the cache, loading it on a miss.
func (p *Params) GetNode(offset int64) (*Node, error) {
	return p.cache.GetOrLoad(offset, func(offset int64) (*Node, error) {
		return LoadNode(p, offset)
	})
}

// Flush writes every dirty cached node and syncs the page file.
func (p *Params) Flush() error {
	if err := p.cache.FlushAll(); err != nil {
		return err
	}
	return p.ch.Sync()
}

func (p *Params) SetRoot(offset int64) {
	p.root = offset
}

func (p *Params) Root() int64 { return p.root }
func (p *Params) MaxEntries() int { return p.maxEntries }
func (p *Params) Schema() *Schema { return p.schema }
func (p *Params) Channel() *disk.Channel { return p.ch }
func (p *Params) Allocator() *disk.Allocator { return p.alloc }
func (p *Params) Cache() *buffer.NodeCache[*Node] { return p.cache }
func (p *Params) PageLen() int { return PageLen(p.maxEntries) }
func (p *Params) LeafBlockLen() int { return LeafBlockLen(p.maxEntries, p.schema) }

type Options struct {
	Path       string
	MaxEntries int         `validate:"min=2"`
	CacheSize  int         `validate:"min=1"`
	Schema     *Schema     `validate:"required"`
	Logger     *zap.Logger `validate:"-"`
}

// Params is the state shared by all nodes of one index: fan-out, leaf
// schema, the page file, the free page allocator and the node cache.
type Params struct {
	mu         sync.Mutex
	maxEntries int
	schema     *Schema
	ch         *disk.Channel
	alloc      *disk.Allocator
	cache      *buffer.NodeCache[*Node]
	root       int64
	path       string
	saved      indexMeta
	logger     *zap.Logger
}
