/*
Package domain contains the core authoring-time model of an IVR call flow.

It defines the closed set of node kinds and their typed configuration, the edges that
connect node outputs (handles) to other nodes, and the versioned Flow/FlowVersion
containers that are persisted and later read by the call-execution engine. This package
is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Node: A single step of the call script, tagged by Kind, carrying typed NodeData.
  - Edge: A directed transition from a node output (handle) to another node.
  - FlowDefinition: The self-sufficient {nodes, edges, startNode} document.
  - Flow / FlowVersion: The named container and its immutable, numbered snapshots.
  - Violation: A structural problem reported by the validator.
*/
package domain
