/*
Package observability provides Prometheus instrumentation for the flow builder.

Metrics cover version saves (by outcome), validation violations (by rule and
severity), edits rejected by the graph model (by operation) and activations.
A nil *Metrics is valid and records nothing, so library types can hold one
unconditionally.
*/
package observability
