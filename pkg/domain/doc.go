/*
Package domain contains the core domain models of the codeflow trace engine.

It defines the vocabulary shared by the instrumentation compiler, the runtime recorder,
the replay model and every adapter. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - SourceLine: One line of the submitted program together with its Classification.
  - TraceEvent: One observation recorded while the instrumented program runs.
  - CallFrame: A derived frame of the call stack, rebuilt from Call/Return events.
  - TraceResult: The outcome of a trace build (status, events, output, analytics).
  - Recording: A stored TraceResult plus the replay cursor of its session.
*/
package domain
