/*
Copyright 2023 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package goalstate

import (
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	goalStateFetchRetries = 6
	goalStateRetryDelay   = 500 * time.Millisecond
)

// halfJitter returns a duration in [d/2, d], the same shape as
// retryutils.NewHalfJitter in this module's teacher, so the retry loop
// below doesn't hammer the wire server in lockstep with every other role
// instance on the same host retrying at once.
func halfJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	//nolint:gosec // jitter does not need a cryptographic source
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}

// sleepWithJitter sleeps for a half-jittered d on clock.
func sleepWithJitter(clock clockwork.Clock, d time.Duration) {
	clock.Sleep(halfJitter(d))
}
