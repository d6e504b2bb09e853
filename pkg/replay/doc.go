/*
Package replay navigates a finalized trace event log.

A Model holds a cursor over the events and the call stack derived from the
Call and Return events up to that cursor. Navigation never fails: stepping past
either end is a no-op.

	m := replay.New(result.Events)
	for m.StepForward() {
		fmt.Println(m.CurrentLine(), m.CurrentCallStack())
	}

Summarize derives analytics (comparisons, swaps, call counts) from a log.
*/
package replay
