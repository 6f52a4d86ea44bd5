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

package common

import (
	"fmt"

	"github.com/blinklabs-io/webbundle/pipeline"
	"github.com/jinzhu/copier"
)

// PipelineConfig returns the default pipeline configuration with every tuning flag
// that was set on the command line applied over it. Flags left at zero keep the
// default.
func (f *GlobalFlags) PipelineConfig() (pipeline.PipelineConfig, error) {
	cfg := pipeline.DefaultPipelineConfig()
	if err := copier.CopyWithOption(&cfg, f, copier.Option{IgnoreEmpty: true}); err != nil {
		return cfg, fmt.Errorf("copy pipeline flags: %w", err)
	}
	return cfg, nil
}
