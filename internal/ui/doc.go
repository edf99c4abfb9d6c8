// Package ui implements the terminal surfaces of rsc.
//
// [Model] is a bubbletea program that drives a collection run and renders its progress: a spinner,
// the active stage with its "Stage n/5" position, and a single progress bar fed by [tasks.ProgressBar].
// Updates arrive from a [tasks.ChannelSink] and are consumed one message at a time, so a slow terminal
// never blocks the run. Pressing q while the run is active cancels it, which lets the run roll back.
//
// [OptionsPrompt] is a huh form for choosing the filter toggles and the playlist title before a run.
package ui
