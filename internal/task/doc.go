// Package task implements supervision of the external collaborator
// processes: the per-device workflow runs and the singleton
// authentication session.
//
// Overview
// The Supervisor owns a registry of workflow runs keyed by device path.
// At most one run per key may be active; starting a busy key is an
// idempotent no-op returning the existing run's snapshot. A finished
// record stays available as history until the device is forgotten.
//
// A workflowTask wraps one collaborator invocation. It accumulates both
// output streams, scans stdout for the run-reference URL, feeds the
// progress estimator, and publishes typed events.
//
// Runner is a thin, opinionated wrapper around os/exec:
//   - starts the process
//   - streams stdout and stderr chunks through callbacks
//   - optionally exposes the child's stdin
//   - exposes a channel delivering one Result per execution
//
// Data flow:
//
//	Supervisor             workflowTask            Runner{cmd}
//	    |                      |                      |
//	StartRun(key) -> register->| start() ------------>| Start()
//	    |                      |                      | os/exec.Start + Wait() in goroutine
//	    |                      |<--- output chunks ---| pump goroutines (stdout, stderr)
//	    |<----- Event ---------| progress/url scan    |
//	    |                      |<------ Result -------| (process exits)
//	    |<- terminal Event ----|                      |
//
// Invariants:
//   - At most one live process per device key.
//   - running is published before any terminal state; exactly one
//     terminal state per run.
//   - Percentages for one run never decrease.
//   - Forget purges a key's record entirely; a later StartRun creates a
//     fresh record with empty output.
package task
