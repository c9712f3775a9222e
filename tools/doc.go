// Package tools implements the local tool universe: tool descriptors with
// LLM-facing parameter declarations, the typed invoke-message variants a
// tool can emit, and an in-process registry that doubles as the Invoker
// collaborator consumed by the reasoning loop's dispatcher.
package tools
