// Package modules contains the domain-oriented dependency modules wired by
// the composition root.
//
// Import Path: bizportal.io/portal/internal/app/modules
package modules

import (
	"context"

	"github.com/riverqueue/river"

	"bizportal.io/portal/internal/api/handlers"
)

// Module represents a domain-specific dependency unit in the composition root.
type Module interface {
	ServerDepsContributor

	// Name returns a stable module identifier for logging/debugging.
	Name() string

	// RegisterWorkers registers module workers into a shared River worker registry.
	RegisterWorkers(*river.Workers)

	// Shutdown performs module-local graceful cleanup.
	Shutdown(context.Context) error
}

// ServerDepsContributor injects module-owned dependencies into the HTTP server deps.
type ServerDepsContributor interface {
	ContributeServerDeps(*handlers.ServerDeps)
}

// PeriodicJobContributor is implemented by modules that schedule recurring jobs.
type PeriodicJobContributor interface {
	PeriodicJobs() []*river.PeriodicJob
}

// CollectPeriodicJobs gathers the periodic jobs of every module that has any.
func CollectPeriodicJobs(mods []Module) []*river.PeriodicJob {
	var periodic []*river.PeriodicJob
	for _, mod := range mods {
		contributor, ok := mod.(PeriodicJobContributor)
		if !ok {
			continue
		}
		periodic = append(periodic, contributor.PeriodicJobs()...)
	}
	return periodic
}
