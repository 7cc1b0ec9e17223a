// Package room holds the authoritative state of one two-player word duel.
//
// A Room moves through three phases:
//
//   - waiting: created by the first player, slot B is empty;
//   - active: slot B is filled and a word is assigned, guesses are applied;
//   - finished: terminal, the outcome is fixed and nothing changes again.
//
// Guesses are applied in evaluation steps. ApplyGuess is a step of one guess;
// ApplyStep applies a batch that arrived together. Termination is evaluated
// once per step for both players, which is what makes simultaneous terminal
// conditions resolve to a draw.
//
// The package is pure: it performs no I/O and reads time only through the
// injected clock. Callers own serialization; a Room is not safe for
// concurrent use and is expected to have exactly one writer.
package room
