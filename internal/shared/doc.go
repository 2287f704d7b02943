// Package shared contains the canonical failure type of the job framework and
// error utilities used across the application.
//
// # Failure Facets
//
// Every failure surfaced by a future or by a synchronous run is a
// *ProcessingError carrying at most one facet:
//
//   - KindTimeout: waiting for a job elapsed without completion
//   - KindCanceled: the future was cancelled (soft or forced)
//   - KindInterrupted: the executing goroutine was interrupted by its
//     environment rather than by an explicit cancel
//   - KindRejected: the manager is shut down and refused new work
//   - KindProcessing: any other failure of the unit of work, with the
//     original error as cause
//
// A panic is the Go rendition of an unrecoverable error. It is never turned
// into a ProcessingError; a recovered panic surfaces as *PanicError.
//
// # Classification
//
// Use KindOf or HasKind to classify errors, or errors.Is with the sentinels:
//
//	v, err := future.Get(ctx)
//	switch {
//	case errors.Is(err, shared.ErrCanceled):
//	    // cancelled
//	case errors.Is(err, shared.ErrTimeout):
//	    // caller gave up waiting
//	}
//
// Or inspect the facets directly:
//
//	if pe, ok := shared.AsProcessingError(err); ok && pe.IsRejection() {
//	    // manager shut down
//	}
//
// # Kind Priority Table
//
// When several kinds are present in a chain, KindOf returns the first match:
//
//	Priority | Kind            | Description
//	---------|-----------------|---------------------------
//	1        | KindRejected    | Manager refused the work
//	2        | KindCanceled    | Future cancelled
//	3        | KindTimeout     | Wait elapsed
//	4        | KindInterrupted | Goroutine interrupted
//	5        | KindProcessing  | Failure of the unit of work
package shared
