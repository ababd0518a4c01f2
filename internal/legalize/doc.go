// Package legalize answers whether an operation instance is executable on
// the accelerator.
//
// Most kinds are checked by a static type-constraint table: every non-exempt
// input and output must carry one shared element kind drawn from the kind's
// admissible set. A handful of kinds carry exact per-operand rules instead
// (quantize/dequantize direction, quantized-vs-float convolution and
// fully-connected, the sparse-lookup index width limit).
//
// Unlisted kinds are rejected. The default here is deliberately the opposite
// of the lowering policy's: legalization fails closed, lowering fails open.
package legalize
