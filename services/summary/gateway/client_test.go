// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("still failing")
	calls := 0
	err := Retry(context.Background(), 2, func(ctx context.Context) error {
		calls++
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, calls)
}

func TestRetry_ContextErrorsAbortImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, func(ctx context.Context) error {
		calls++
		return context.DeadlineExceeded
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls, "deadline errors are not transient")
}

func TestRetry_AtLeastOneAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 0, func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestMockClient_QueueAndDefault(t *testing.T) {
	mock := NewMockClient().QueueText("first").SetDefaultText("fallback")

	resp, err := mock.Complete(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Text)

	resp, err = mock.Complete(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Text)

	assert.Equal(t, 2, mock.CallCount())
	assert.NoError(t, mock.Verify())
}

func TestMockClient_FailNextRecovers(t *testing.T) {
	boom := errors.New("boom")
	mock := NewMockClient().FailNext(1, boom).SetDefaultText("ok")

	_, err := mock.Complete(context.Background(), &Request{})
	assert.ErrorIs(t, err, boom)

	resp, err := mock.Complete(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}

func TestMockClient_DelayHonorsCancellation(t *testing.T) {
	mock := NewMockClient().WithDelay(5 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := mock.Complete(ctx, &Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
