// Package core defines the shared data model of the SDK: events submitted by
// producers, transient extraction results, and the processing contract
// between the pipeline and its per-type processors.
//
// Everything here is plain data. Behavior lives in the packages that consume
// it: extract (text -> entities), graph (entities -> nodes/edges/clusters),
// events (event -> processing result -> memory updates), memory (the dual
// fast/slow store boundary).
package core
