// Package graph maintains the dependency graph between equations.
//
// Nodes are equation names. An Edge{From: b, To: a} records that a depends
// on b, so changes flow along edges from dependencies to dependents. Edges
// may name nodes that do not exist yet; such edges are stored but inactive
// until both endpoints are present, which lets an equation reference a name
// that is declared later.
//
// The graph is always acyclic. Every mutation is validated before it is
// committed: a change that would close a cycle is rolled back and reported
// as a *CycleError, leaving nodes, edges and insertion order untouched.
//
// A Graph is not safe for concurrent use. It is owned by one manager.
package graph
