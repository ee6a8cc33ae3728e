// Package task runs generation jobs in the background.
//
// The Runner is a fixed pool of workers that pull job ids from a queue.
// Each delivery is handed to the GenerationProcessor, which walks the job's
// titles in order, stores one article per successful title, and finally
// settles the credits reserved at submission. Deliveries are at-least-once:
// a redelivered job skips titles it already produced and settlement is
// idempotent, so duplicates cost time but never credits.
package task
