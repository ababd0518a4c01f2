// Package lower decides which operations must be decomposed into simpler
// primitives before reaching the accelerator, and hosts the small structural
// rewrites that run around that decision (clip elision for fusion,
// bool-to-float conversion rewriting, concat/slice cleanup, dead node
// removal).
//
// The default is to lower: anything the policy does not explicitly keep is
// handed to the generic lowering pass. This is the inverse of the
// legalization default on purpose.
package lower
