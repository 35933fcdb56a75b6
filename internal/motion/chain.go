package motion

import (
	"errors"
	"fmt"
)

// TierFailure records a tier that did not produce a usable result.
type TierFailure struct {
	Tier Tier
	Err  error
}

// Outcome is the tagged result of running the classifier chain: Tier names
// the classifier that produced Classification.
type Outcome struct {
	Tier           Tier
	Classification Classification
	Failures       []TierFailure
	// Deferred lists tiers that passed because the window was too short for
	// them. A deferral is not a fault.
	Deferred []Tier
	// Replaced is set when the producing tier returned an invalid result
	// that was swapped for Unknown(0.5).
	Replaced bool
}

// Chain runs classifiers from richest to cheapest until one succeeds.
type Chain struct {
	Enhanced Classifier
	Simple   Classifier
	Fallback Classifier
}

// NewChain builds the default Enhanced -> Simple -> Fallback chain.
func NewChain(cfg Config) *Chain {
	return &Chain{
		Enhanced: NewEnhancedClassifier(cfg.WalkingThreshold, cfg.VehicleThreshold),
		Simple:   NewSimpleClassifier(),
		Fallback: FallbackClassifier{},
	}
}

// ApplyCalibration forwards p to every calibratable tier.
func (ch *Chain) ApplyCalibration(p CalibrationProfile) {
	for _, c := range []Classifier{ch.Enhanced, ch.Simple, ch.Fallback} {
		if cc, ok := c.(Calibratable); ok {
			cc.ApplyCalibration(p)
		}
	}
}

// Run classifies samples. With simpleOnly the enhanced tier is skipped.
// Run always returns a valid classification.
func (ch *Chain) Run(samples []Sample, simpleOnly bool) Outcome {
	var out Outcome
	tiers := make([]Classifier, 0, 3)
	if !simpleOnly && ch.Enhanced != nil {
		tiers = append(tiers, ch.Enhanced)
	}
	if ch.Simple != nil {
		tiers = append(tiers, ch.Simple)
	}
	fallback := ch.Fallback
	if fallback == nil {
		fallback = FallbackClassifier{}
	}
	tiers = append(tiers, fallback)

	for _, c := range tiers {
		result, err := classifySafely(c, samples)
		if errors.Is(err, ErrInsufficientSamples) {
			out.Deferred = append(out.Deferred, c.Tier())
			continue
		}
		if err != nil {
			out.Failures = append(out.Failures, TierFailure{Tier: c.Tier(), Err: err})
			continue
		}
		out.Tier = c.Tier()
		out.Classification = result
		if !result.valid() {
			out.Classification = unknownClassification()
			out.Replaced = true
		}
		return out
	}

	// Every tier failed, including the fallback.
	out.Tier = TierFallback
	out.Classification = unknownClassification()
	out.Replaced = true
	return out
}

// Exhausted reports whether every tier in the chain failed.
func (o Outcome) Exhausted() bool {
	for _, f := range o.Failures {
		if f.Tier == TierFallback {
			return true
		}
	}
	return false
}

func (f TierFailure) String() string {
	return fmt.Sprintf("%s: %v", f.Tier, f.Err)
}
