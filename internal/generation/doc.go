// Package generation defines the boundary between the article pipeline and
// the language model services that write content. Provider adapters live in
// internal/platform; this package holds the Provider contract, the Registry
// that picks an adapter per job, and the Assembler that turns provider output
// into a finished article.
package generation
