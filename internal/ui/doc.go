// Package ui implements the live migration dashboard using bubbletea's Elm architecture.
//
// The dashboard renders one row per data type with a progress bar and
// running outcome counts, plus a short tail of recently processed items.
// Progress flows through a buffered channel of [tasks.Event] values from the
// sync engine; the producer never blocks on the UI, so a slow terminal can
// only ever drop display updates, never writes.
//
// The (view) [Model] implements bubbletea's standard Init/Update/View
// pattern. When stdout is not a terminal the [Plain] consumer logs the same
// event stream line by line instead.
package ui
