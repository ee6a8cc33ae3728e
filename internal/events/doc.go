// Package events carries job lifecycle notifications from the pipeline to
// interested handlers.
//
// The orchestrator and the worker pool emit a JobEvent whenever a job is
// submitted or reaches a terminal state. Handlers are registered on an
// emitter at startup; the Kafka publisher forwards events to a topic so
// other systems can react without polling the job API.
package events
