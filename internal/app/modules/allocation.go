package modules

import (
	"context"

	"github.com/riverqueue/river"

	"bizportal.io/portal/internal/api/handlers"
	"bizportal.io/portal/internal/governance/audit"
	"bizportal.io/portal/internal/jobs"
	"bizportal.io/portal/internal/pkg/worker"
	"bizportal.io/portal/internal/usecase"
)

// AllocationModule owns the port pool: the allocation engine, port
// administration, the audit export and the background sweep.
type AllocationModule struct {
	infra    *Infrastructure
	engine   *usecase.AllocationEngine
	ports    *usecase.PortAdmin
	subs     *usecase.PostgresSubscriptionGateway
	exporter *audit.Exporter
}

// NewAllocationModule builds the allocation use cases on the shared pool.
// Every change that returns a port to the pool enqueues a pending-allocation
// sweep in the same transaction.
func NewAllocationModule(infra *Infrastructure) *AllocationModule {
	cfg := infra.Config.Allocation
	m := &AllocationModule{
		infra:    infra,
		engine:   usecase.NewAllocationEngine(infra.Pool, infra.Trail, cfg.LockTimeout),
		ports:    usecase.NewPortAdmin(infra.Pool, infra.Trail, cfg.LockTimeout),
		subs:     usecase.NewSubscriptionGateway(infra.Pool),
		exporter: audit.NewExporter(infra.Trail, infra.Config.Export.MaxRows),
	}
	hook := jobs.SweepOnPortFreed(m.sweepInserter)
	m.engine.SetPortFreedHook(hook)
	m.ports.SetPortFreedHook(hook)
	return m
}

func (m *AllocationModule) Name() string { return "allocation" }

func (m *AllocationModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	deps.Engine = m.engine
	deps.PortAdmin = m.ports
	deps.Subscriptions = m.subs
	deps.Trail = m.infra.Trail
	deps.Exporter = m.exporter
}

func (m *AllocationModule) RegisterWorkers(workers *river.Workers) {
	var allocationPool *worker.Pool
	if m.infra.Pools != nil {
		allocationPool = m.infra.Pools.Allocation
	}
	river.AddWorker(workers, jobs.NewPendingAllocationWorker(m.engine, allocationPool, m.infra.Config.Allocation.SweepBatchSize))
	var generalPool *worker.Pool
	if m.infra.Pools != nil {
		generalPool = m.infra.Pools.General
	}
	river.AddWorker(workers, jobs.NewAvailabilityReportWorker(m.ports, m.engine, generalPool))
}

// PeriodicJobs schedules the pending-allocation sweep and the availability
// report. A zero interval leaves the job out.
func (m *AllocationModule) PeriodicJobs() []*river.PeriodicJob {
	cfg := m.infra.Config.Allocation
	var periodic []*river.PeriodicJob
	if cfg.SweepInterval > 0 {
		periodic = append(periodic, river.NewPeriodicJob(
			river.PeriodicInterval(cfg.SweepInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return jobs.PendingAllocationArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		))
	}
	if cfg.ReportInterval > 0 {
		periodic = append(periodic, river.NewPeriodicJob(
			river.PeriodicInterval(cfg.ReportInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return jobs.AvailabilityReportArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		))
	}
	return periodic
}

func (m *AllocationModule) Shutdown(context.Context) error { return nil }

// sweepInserter is the River client once InitRiver has run.
func (m *AllocationModule) sweepInserter() jobs.TxInserter {
	if m.infra.RiverClient == nil {
		return nil
	}
	return m.infra.RiverClient
}
