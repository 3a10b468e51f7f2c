// Package engine contains the containment simulation.
// The Engine owns the roster, the countdown and the escape system and serializes every
// mutation, whether it comes from a guard action or a timer.
package engine
