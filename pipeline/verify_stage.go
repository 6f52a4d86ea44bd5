// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/blinklabs-io/webbundle/verifier"
)

// VerifyStage verifies the signatures of parsed bundles.
type VerifyStage struct {
	verifier *verifier.Verifier
}

// NewVerifyStage creates a new VerifyStage using the given verifier.
func NewVerifyStage(v *verifier.Verifier) *VerifyStage {
	return &VerifyStage{
		verifier: v,
	}
}

// Name returns the stage name.
func (s *VerifyStage) Name() string {
	return "verify"
}

// Process verifies the bundle in the item.
func (s *VerifyStage) Process(ctx context.Context, item *BundleItem) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Skip verification if parsing failed - the parse stage already reported
	// the error, so return nil to avoid generating a spurious duplicate error.
	if !item.IsParsed() {
		return nil
	}

	start := time.Now()

	if s.verifier == nil {
		configErr := fmt.Errorf("bundle %q: verifier not configured", item.Name())
		item.SetVerification(nil, configErr, time.Since(start))
		return configErr
	}

	result, err := s.verifier.Verify(ctx, item.Source(), item.Block())
	duration := time.Since(start)

	if err != nil {
		verifyErr := fmt.Errorf("bundle %q: %w", item.Name(), err)
		item.SetVerification(nil, verifyErr, duration)
		return verifyErr
	}

	item.SetVerification(result, nil, duration)
	return nil
}
