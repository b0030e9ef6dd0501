/*
Package dsl provides a fluent Go builder for IVR flow graphs.

Nodes are declared under caller-chosen aliases and wired by alias. Build
replays the declarations through the graph edit operations, so a built flow
obeys the same rules as one drawn in the editor.

Example usage:

	b := dsl.New()

	b.Start().Go("welcome")

	b.Add("welcome", domain.KindPlayAudio).
		Label("Welcome").
		Set("audio_file_id", "audio-42").
		Go("menu")

	b.Add("menu", domain.KindMenu).
		Option("1", "Sales", "sales").
		Option("2", "Support", "bye").
		Invalid("bye")

	b.Add("sales", domain.KindTransfer).
		Set("destination", "+5511999990000").
		Set("transfer_type", "blind").
		Go("bye")

	b.Add("bye", domain.KindHangup)

	def, err := b.Definition()
*/
package dsl
