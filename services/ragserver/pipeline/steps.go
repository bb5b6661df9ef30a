// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"fmt"
)

// StepKind tags the three generation steps of one answering pass.
type StepKind int

const (
	StepEvidence StepKind = iota
	StepDraft
	StepVerify
)

func (k StepKind) String() string {
	switch k {
	case StepEvidence:
		return "evidence"
	case StepDraft:
		return "draft"
	case StepVerify:
		return "verify"
	default:
		return fmt.Sprintf("step(%d)", int(k))
	}
}

// Step is one tagged unit of work. Run receives the outputs of the steps
// that ran before it (plus any seeded outputs) keyed by kind.
type Step struct {
	Kind StepKind
	Run  func(ctx context.Context, prior map[StepKind]string) (string, error)
}

// runSteps executes steps strictly in order, threading outputs forward.
// seed pre-populates outputs for steps that already ran in an earlier
// pass (the rebuilt Evidence Pack, typically). The first error aborts
// the sequence.
func runSteps(ctx context.Context, steps []Step, seed map[StepKind]string) (map[StepKind]string, error) {
	out := make(map[StepKind]string, len(steps)+len(seed))
	for k, v := range seed {
		out[k] = v
	}
	for _, step := range steps {
		text, err := step.Run(ctx, out)
		if err != nil {
			return nil, fmt.Errorf("%s step: %w", step.Kind, err)
		}
		out[step.Kind] = text
	}
	return out, nil
}
