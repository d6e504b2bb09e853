/*
Package ports defines the driven ports (interfaces) of the codeflow trace engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to run programs on different host runtimes and to persist recordings
in various storage backends.

# Key Interfaces

  - Hooks: The three operations injected code reports through (implemented by the runtime recorder).
  - Executor: The execution collaborator that runs an instrumented program (goja, node).
  - RecordingStore: Persists trace results and the cursor of their replay session.
  - DistributedLocker: Provides distributed locking for concurrent replay session access.
*/
package ports
