// Package lookahead computes preview timeline objects for upcoming content.
//
// For every layer mapped with a lookahead mode, Compute returns two lists:
//
//   - Timed: objects from part instances already on the timeline (the
//     current part, and the next part when current auto-advances), chained
//     so each starts where the previous one ends.
//   - Future: speculative objects from the next part instance when it is not
//     on the timeline, then from the upcoming parts, nearest first, up to the
//     layer's target count.
//
// Compute is a pure function of its Input: it reads no clock, touches no
// store and never mutates the input, so calling it twice on the same input
// yields identical results.
//
// # Enable expressions
//
//	timed[0]    start = absolute ms
//	timed[i]    start = #timed[i-1].end (+ delay when timed[i-1] needs one)
//	future[0]   preload:   while "1"
//	            whenClear: start = #timed[last].end
//	future[i>0] preload:   while "1"
//	            whenClear: disabled
//
// Future priorities strictly decrease with position and stay below the
// timed priority.
package lookahead
