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

import "sync"

// ContainerRegister records the container ID of the most recently fetched
// goal state so other parts of an embedding agent (telemetry, logging
// context) can read it without threading a GoalState value through every
// call site. It replaces a process-wide global with an explicit,
// injectable collaborator.
type ContainerRegister interface {
	UpdateContainerID(id string)
	ContainerID() string
}

// memoryContainerRegister is the default ContainerRegister: an in-memory,
// mutex-guarded string.
type memoryContainerRegister struct {
	mu sync.RWMutex
	id string
}

// NewContainerRegister returns the default in-memory ContainerRegister.
func NewContainerRegister() ContainerRegister {
	return &memoryContainerRegister{}
}

func (r *memoryContainerRegister) UpdateContainerID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
}

func (r *memoryContainerRegister) ContainerID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.id
}
