/*
Package codeflow records the execution of small JavaScript programs and replays
it step by step.

A trace build classifies every source line, injects tracing hooks into the
program on the same lines, runs the instrumented program on an execution
collaborator and collects an ordered log of trace events: line steps, calls,
returns, assignments and snapshots of a tracked array. A replay session moves a
cursor over that log forward and backward while deriving the call stack.

# Key Features

  - Same-line instrumentation: event line numbers are source line numbers.
  - Paired calls and returns, even on exceptions.
  - Pluggable execution (in-process goja or an external node process).
  - Recordings and replay sessions on memory, file, badger or redis stores,
    optionally sealed with AES-GCM and redacted.

# Usage

	eng := codeflow.New()

	result, err := eng.TraceSource(ctx, "let arr = [3, 1, 2];\narr.sort();")
	if err != nil {
		log.Fatal(err) // instrumentation failures and cancellation
	}
	if result.Status == domain.StatusError {
		log.Println("program failed:", result.Error)
	}

	rec, _ := eng.Record(ctx, domain.TraceRequest{SourceText: src})
	view, _ := eng.Step(ctx, rec.ID, domain.StepForward)
	fmt.Println(view.Line, view.Variables)
*/
package codeflow
