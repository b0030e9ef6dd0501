/*
Package ports defines the driven ports (interfaces) of the flow builder.

These interfaces decouple the version service from external implementations,
allowing flows and their versions to live in memory, on disk or in Redis.

# Key Interfaces

  - FlowRepository: persists Flow records and their append-only FlowVersion history.
  - DistributedLocker: serializes saves to one flow across replicas.
  - Authorizer: decides whether a caller may perform a mutating action.
*/
package ports
