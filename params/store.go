//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of GoETL.
//
// GoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// GoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with GoETL. If not, see https://www.gnu.org/licenses/.

// store.go - Run-scoped parameter store
package params

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrAlreadySet is returned when a parameter is written twice for the same run.
var ErrAlreadySet = errors.New("parameter already set for run")

// RunKey scopes parameters to one execution of one workflow.
type RunKey struct {
	DAGID string
	RunID string
}

func (k RunKey) String() string {
	return k.DAGID + "/" + k.RunID
}

// Store persists parameters resolved during a run so downstream steps can read
// them. Values are written once; Delete only serves clearing a failed task
// attempt before it is retried.
type Store interface {
	Put(ctx context.Context, run RunKey, key string, value any) error
	Get(ctx context.Context, run RunKey, key string) (any, bool, error)
	Delete(ctx context.Context, run RunKey, key string) error
}

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[RunKey]map[string]any
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[RunKey]map[string]any)}
}

// Put implements Store.
func (m *MemoryStore) Put(ctx context.Context, run RunKey, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	values, ok := m.values[run]
	if !ok {
		values = make(map[string]any)
		m.values[run] = values
	}
	if _, exists := values[key]; exists {
		return fmt.Errorf("%s %q: %w", run, key, ErrAlreadySet)
	}
	values[key] = value
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, run RunKey, key string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[run][key]
	return value, ok, nil
}

// Delete implements Store. Missing keys are not an error.
func (m *MemoryStore) Delete(ctx context.Context, run RunKey, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values[run], key)
	return nil
}

// Snapshot returns a copy of all parameters of a run.
func (m *MemoryStore) Snapshot(run RunKey) map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]any, len(m.values[run]))
	for k, v := range m.values[run] {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names set for a run, sorted.
func (m *MemoryStore) Keys(run RunKey) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.values[run]))
	for k := range m.values[run] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetString reads a parameter and renders it as a string.
func GetString(ctx context.Context, s Store, run RunKey, key string) (string, bool, error) {
	v, ok, err := s.Get(ctx, run, key)
	if err != nil || !ok {
		return "", ok, err
	}
	if str, isStr := v.(string); isStr {
		return str, true, nil
	}
	return fmt.Sprint(v), true, nil
}
