// Package motion owns the on-device movement classification engine.
//
// Responsibilities: sample ingestion and rate limiting, one-shot noise
// calibration, median-filter denoising, the three-tier classifier chain
// (enhanced spectral, simple heuristic, magnitude-only fallback), temporal
// smoothing, the adaptive confidence gate and the fault controller that
// disables the pipeline after repeated faults.
//
// Data flow per tick:
//
//	Source -> SampleBuffer (+ Calibrator) -> MedianFilter -> Chain
//	       -> TemporalSmoother -> Gate -> MovementState
//
// The buffer and the published state each have a single writer: the
// goroutine running Engine.Run. Readers observe MovementState through an
// atomic pointer swap.
//
// No SQL, transport or UI code is allowed in this package.
package motion
