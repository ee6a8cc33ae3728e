// Package service contains the application use cases.
//
// GenerationService is the orchestrator of the generation pipeline: it
// validates submissions, prices them with the estimator, reserves credits
// through the ledger, persists the job and hands it to the queue. It also
// serves status, cancellation, listing and balance queries. Services depend
// on store interfaces and never on a specific storage implementation.
package service
