// Package task provides two scheduling primitives that run on whichever
// reactor is installed:
//
// Coalesced collapses any number of Schedule requests made before the next
// run into one call, and lets other goroutines wait for that run.
//
// Periodic repeats a function at a fixed rate until stopped.
package task
