/*
Package ivrflow models IVR call flows as directed graphs: a visual editor
builds them, a validator checks their structure, and a version store keeps
every saved revision.

# Concept

A flow is a graph of typed nodes (start, play_audio, menu, conditional,
transfer, hangup and so on) joined by edges that leave a node through a named
output handle. Menu nodes branch on DTMF keys, conditionals on true/false.
The graph document saved for a version is exactly what the call-execution
engine reads at run time.

Editing never blocks on validation: every edit re-runs the validator and
reports its result. Saving is authoritative: a definition with any
error-severity violation is refused and nothing is written.

# Usage

	d := ivrflow.New()
	ctx := context.Background()

	flow, err := d.Service().CreateFlow(ctx, "acme", "Support line", "")
	if err != nil {
		log.Fatal(err)
	}

	s, _ := d.Open(ctx, flow.ID)
	start, _ := s.AddNode(domain.KindStart, domain.Position{})
	hangup, _ := s.AddNode(domain.KindHangup, domain.Position{X: 200})
	_ = s.Connect(start, "", hangup, "")

	v, err := s.Save(ctx, "first draft")

# Storage

The default repository is in memory. pkg/adapters/file stores flows as JSON
documents on disk and pkg/adapters/redis shares them between replicas, with
a Redis lock serializing saves of the same flow.
*/
package ivrflow
