// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package flight

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AdvanceIsMonotonicPerSession(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, uint64(1), r.Advance("s1"))
	assert.Equal(t, uint64(2), r.Advance("s1"))
	assert.Equal(t, uint64(1), r.Advance("s2"), "sessions are independent")
	assert.Equal(t, uint64(2), r.Current("s1"))
	assert.Equal(t, uint64(0), r.Current("unknown"))
}

func TestRegistry_ArmCancelsPrevious(t *testing.T) {
	r := NewRegistry()

	ctx1, cancel1 := context.WithCancel(context.Background())
	r.Arm("s1", cancel1)

	_, cancel2 := context.WithCancel(context.Background())
	r.Arm("s1", cancel2)

	assert.Error(t, ctx1.Err(), "arming a new handle must cancel the previous one")
	assert.True(t, r.HasInflight("s1"))
}

func TestRegistry_CancelInflight(t *testing.T) {
	r := NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	r.Arm("s1", cancel)

	require.True(t, r.CancelInflight("s1"))
	assert.Error(t, ctx.Err())
	assert.False(t, r.HasInflight("s1"))
	assert.False(t, r.CancelInflight("s1"), "second cancel is a no-op")
}

func TestRegistry_DisarmIsTicketGuarded(t *testing.T) {
	r := NewRegistry()

	_, cancel1 := context.WithCancel(context.Background())
	stale := r.Arm("s1", cancel1)

	_, cancel2 := context.WithCancel(context.Background())
	live := r.Arm("s1", cancel2)

	// The overtaken call's cleanup must not clear the newer handle.
	r.Disarm("s1", stale)
	assert.True(t, r.HasInflight("s1"))

	r.Disarm("s1", live)
	assert.False(t, r.HasInflight("s1"))
}

func TestRegistry_ConcurrentAdvance(t *testing.T) {
	r := NewRegistry()

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			r.Advance("s1")
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(n), r.Current("s1"))
}
