// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package interpcore

import (
	"fmt"
	"os"

	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

// Category names a free-list pool owned by the runtime.
type Category string

const (
	CategoryFloat         Category = "float"
	CategoryTuple         Category = "tuple"
	CategoryList          Category = "list"
	CategoryDict          Category = "dict"
	CategoryDictKeys      Category = "dict_keys"
	CategoryFrame         Category = "frame"
	CategoryAsyncGenValue Category = "async_gen_value"
	CategoryAsyncGenASend Category = "async_gen_asend"
	CategoryContext       Category = "context"
	CategoryMemError      Category = "mem_error"
)

// Default retention bounds per category. Tuple is per length bucket.
const (
	defaultFloatCapacity         = 100
	defaultTupleBucketCapacity   = 2000
	defaultListCapacity          = 80
	defaultDictCapacity          = 80
	defaultDictKeysCapacity      = 80
	defaultFrameCapacity         = 200
	defaultAsyncGenValueCapacity = 80
	defaultAsyncGenASendCapacity = 80
	defaultContextCapacity       = 255
	defaultMemErrorCapacity      = 16

	// maxTupleSaveSize bounds the largest pooled tuple length; longer
	// tuples always go to the general allocator.
	maxTupleSaveSize = 20
)

// runtimeOptions holds resolved configuration for Runtime creation.
type runtimeOptions struct {
	logger      *logiface.Logger[logiface.Event]
	capacities  map[Category]int
	tracingHook TraceFunc
}

// Option configures a Runtime instance.
type Option interface {
	applyRuntime(*runtimeOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyRuntimeFunc func(*runtimeOptions) error
}

func (o *optionImpl) applyRuntime(opts *runtimeOptions) error {
	return o.applyRuntimeFunc(opts)
}

// WithLogger attaches a structured logger. A nil logger is valid and
// disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *runtimeOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithFreeListCapacity overrides the retention bound for one pool
// category. For CategoryTuple the bound applies per length bucket.
func WithFreeListCapacity(category Category, n int) Option {
	return &optionImpl{func(opts *runtimeOptions) error {
		if !knownCategory(category) {
			return fmt.Errorf("interpcore: unknown free list category %q", category)
		}
		if n < 0 {
			return fmt.Errorf("interpcore: negative capacity %d for category %q", n, category)
		}
		opts.capacities[category] = n
		return nil
	}}
}

// WithTracingHook installs the hook invoked at checkpoints while the
// tracing-active condition is set.
func WithTracingHook(fn TraceFunc) Option {
	return &optionImpl{func(opts *runtimeOptions) error {
		opts.tracingHook = fn
		return nil
	}}
}

// Config is the YAML-mappable runtime tuning file.
//
//	free_lists:
//	  tuple: 512
//	  frame: 64
type Config struct {
	FreeLists map[string]int `yaml:"free_lists"`
}

// WithConfig applies a tuning config.
func WithConfig(cfg Config) Option {
	return &optionImpl{func(opts *runtimeOptions) error {
		for name, n := range cfg.FreeLists {
			category := Category(name)
			if !knownCategory(category) {
				return fmt.Errorf("interpcore: config: unknown free list category %q", name)
			}
			if n < 0 {
				return fmt.Errorf("interpcore: config: negative capacity %d for category %q", n, name)
			}
			opts.capacities[category] = n
		}
		return nil
	}}
}

// WithConfigFile reads and applies a YAML tuning file.
func WithConfigFile(path string) Option {
	return &optionImpl{func(opts *runtimeOptions) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("interpcore: config: %w", err)
		}
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("interpcore: config: %w", err)
		}
		return WithConfig(cfg).applyRuntime(opts)
	}}
}

// resolveRuntimeOptions applies Option instances over the defaults.
func resolveRuntimeOptions(opts []Option) (*runtimeOptions, error) {
	cfg := &runtimeOptions{
		capacities: map[Category]int{
			CategoryFloat:         defaultFloatCapacity,
			CategoryTuple:         defaultTupleBucketCapacity,
			CategoryList:          defaultListCapacity,
			CategoryDict:          defaultDictCapacity,
			CategoryDictKeys:      defaultDictKeysCapacity,
			CategoryFrame:         defaultFrameCapacity,
			CategoryAsyncGenValue: defaultAsyncGenValueCapacity,
			CategoryAsyncGenASend: defaultAsyncGenASendCapacity,
			CategoryContext:       defaultContextCapacity,
			CategoryMemError:      defaultMemErrorCapacity,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRuntime(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func knownCategory(c Category) bool {
	switch c {
	case CategoryFloat, CategoryTuple, CategoryList, CategoryDict,
		CategoryDictKeys, CategoryFrame, CategoryAsyncGenValue,
		CategoryAsyncGenASend, CategoryContext, CategoryMemError:
		return true
	}
	return false
}
