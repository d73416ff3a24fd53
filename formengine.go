// Package formengine re-exports the reactive form core so hosts can depend
// on a single import path: element definitions and snapshots (pkg/form), the
// orchestrating engine (pkg/engine), and the native function bridge
// (pkg/bridge).
package formengine

import (
	"github.com/goliatone/go-formengine/pkg/bridge"
	"github.com/goliatone/go-formengine/pkg/engine"
	"github.com/goliatone/go-formengine/pkg/form"
)

// Core re-exported types.
type (
	Engine            = engine.Engine
	Option            = engine.Option
	Source            = engine.Source
	ConfigError       = engine.ConfigError
	ElementDefinition = form.ElementDefinition
	Snapshot          = form.Snapshot
	ValidationError   = form.ValidationError
	Choice            = form.Choice
	Rule              = form.Rule
	CrossFieldRule    = form.CrossFieldRule
	CustomRule        = form.CustomRule
	Registry          = bridge.Registry
)

const (
	SourceUser   = engine.SourceUser
	SourceSystem = engine.SourceSystem
)

// New builds an engine from parsed element definitions.
func New(defs []ElementDefinition, opts ...Option) (*Engine, error) {
	return engine.New(defs, opts...)
}

// NewRegistry builds an empty native function registry.
func NewRegistry() *Registry {
	return bridge.NewRegistry()
}

// WithRegistry, WithLogger, WithCache, and WithLenient configure New.
var (
	WithRegistry = engine.WithRegistry
	WithLogger   = engine.WithLogger
	WithCache    = engine.WithCache
	WithLenient  = engine.WithLenient
)
