// Package geometry provides the value types every size computation in the
// pipeline is expressed in.
//
// # Three Scale Factors
//
// A rendered size is the product of three independent factors:
//
//   - ReductionFactor: power-of-two shrink already applied by the source
//     reader when it decoded the image (factor f delivers 1/2^f per axis).
//   - ScaleConstraint: rational ceiling (n/d ≤ 1) on the resolution the
//     client is allowed to see. The client addresses a virtual image of
//     size full·n/d.
//   - The scale requested by the client, expressed by an operation.
//
// # Rounding
//
// Every conversion from a fractional size to pixels goes through Round,
// which rounds half away from zero for positive inputs (floor(x+0.5)).
// Dimension.Scaled never yields a zero axis.
//
// All types in this package are immutable values and safe for concurrent use.
package geometry
