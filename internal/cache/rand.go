// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package cache

import "math/rand"

func defaultProbabilisticDraw() float64 {
	return rand.Float64()
}
