// Package memory provides in-process implementations of the store
// interfaces. They back local development runs and tests; state is lost
// when the process exits.
package memory
