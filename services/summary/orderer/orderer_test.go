// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orderer

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VaultAI-EU/vault-code-cli/services/summary/diff"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/flight"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/gateway"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/message"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/model"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/record"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/store"
)

type fixture struct {
	orderer *Orderer
	mock    *gateway.MockClient
	kv      *store.Memory
	flights *flight.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mock := gateway.NewMockClient()
	kv := store.NewMemory()
	t.Cleanup(func() { _ = kv.Close() })
	flights := flight.NewRegistry()

	models := model.NewStaticResolver().
		SetDefault(model.Model{ProviderID: "vaultai", ID: "vault-large"}).
		SetSmall("vaultai", model.Model{ProviderID: "vaultai", ID: "vault-small"})

	return &fixture{
		orderer: New(mock, models, kv, flights, slog.Default(), NewMetrics(nil)),
		mock:    mock,
		kv:      kv,
		flights: flights,
	}
}

func history() []message.Message {
	return []message.Message{
		{ID: "u1", Role: message.RoleUser, Parts: []message.Part{{Type: message.PartText, Text: "refactor the parser"}}},
		{ID: "a1", Role: message.RoleAssistant, ParentID: "u1", ProviderID: "vaultai", ModelID: "vault-large"},
	}
}

func paths(diffs []diff.FileDiff) []string {
	out := make([]string, len(diffs))
	for i, d := range diffs {
		out[i] = d.File
	}
	return out
}

func TestOrder_ShortCircuits(t *testing.T) {
	f := newFixture(t)

	got := f.orderer.Order(context.Background(), "s1", nil, history())
	assert.Empty(t, got)

	single := []diff.FileDiff{{File: "a.ts", Additions: 1}}
	got = f.orderer.Order(context.Background(), "s1", single, history())
	assert.Equal(t, single, got)

	assert.Zero(t, f.mock.CallCount(), "short-circuit paths must not call the gateway")
}

func TestOrder_RankedResult(t *testing.T) {
	f := newFixture(t)
	f.mock.QueueText("a.ts\nb.ts")

	diffs := []diff.FileDiff{
		{File: "b.ts", Additions: 1, Before: "x", After: "y"},
		{File: "a.ts", Additions: 2, Deletions: 1, Before: "p", After: "q"},
	}

	got := f.orderer.Order(context.Background(), "s1", diffs, history())
	assert.Equal(t, []string{"a.ts", "b.ts"}, paths(got))
	assert.Equal(t, 1, f.mock.CallCount())
}

func TestOrder_UnmentionedFilesAppendedAsStableTail(t *testing.T) {
	f := newFixture(t)
	f.mock.QueueText("a.ts")

	diffs := []diff.FileDiff{
		{File: "b.ts", Additions: 1, Before: "x", After: "y"},
		{File: "a.ts", Additions: 2, Deletions: 1, Before: "p", After: "q"},
	}

	got := f.orderer.Order(context.Background(), "s1", diffs, history())
	assert.Equal(t, []string{"a.ts", "b.ts"}, paths(got))
}

func TestOrder_UnknownPathsFallBackToInputOrder(t *testing.T) {
	f := newFixture(t)
	f.mock.QueueText("c.ts")

	diffs := []diff.FileDiff{
		{File: "b.ts", Additions: 1, Before: "x", After: "y"},
		{File: "a.ts", Additions: 2, Deletions: 1, Before: "p", After: "q"},
	}

	got := f.orderer.Order(context.Background(), "s1", diffs, history())
	assert.Equal(t, []string{"b.ts", "a.ts"}, paths(got), "no valid cache existed, so raw input order wins")
}

func TestOrder_DecoratedOutputIsParsed(t *testing.T) {
	f := newFixture(t)
	f.mock.QueueText("1. a.ts\tmodified\t+2\t-1\tts\n- `b.ts`\n> a.ts\nnot/a/file.go\n")

	diffs := []diff.FileDiff{
		{File: "b.ts", Before: "x", After: "y"},
		{File: "a.ts", Before: "p", After: "q"},
	}

	got := f.orderer.Order(context.Background(), "s1", diffs, history())
	assert.Equal(t, []string{"a.ts", "b.ts"}, paths(got), "decoration stripped, duplicate and unknown lines dropped")
}

func TestOrder_CacheFastPathSkipsGateway(t *testing.T) {
	f := newFixture(t)

	diffs := []diff.FileDiff{
		{File: "b.ts", Additions: 1, Before: "x", After: "y"},
		{File: "a.ts", Additions: 2, Before: "p", After: "q"},
	}
	cached := []diff.FileDiff{diffs[1], diffs[0]} // previously ranked a.ts first
	require.NoError(t, record.WriteOrdering(context.Background(), f.kv, "s1", cached))

	first := f.orderer.Order(context.Background(), "s1", diffs, history())
	second := f.orderer.Order(context.Background(), "s1", diffs, history())

	assert.Equal(t, []string{"a.ts", "b.ts"}, paths(first))
	assert.Equal(t, paths(first), paths(second), "unchanged diff set reorders identically")
	assert.Zero(t, f.mock.CallCount(), "cache fast path must not invoke the gateway")
}

func TestOrder_ContentChangeMissesCache(t *testing.T) {
	f := newFixture(t)
	f.mock.QueueText("b.ts\na.ts")

	cached := []diff.FileDiff{
		{File: "a.ts", Additions: 2, Before: "p", After: "q"},
		{File: "b.ts", Additions: 1, Before: "x", After: "y"},
	}
	require.NoError(t, record.WriteOrdering(context.Background(), f.kv, "s1", cached))

	// Same files, but a.ts's after-content grew.
	diffs := []diff.FileDiff{
		{File: "b.ts", Additions: 1, Before: "x", After: "y"},
		{File: "a.ts", Additions: 2, Before: "p", After: "qq"},
	}

	got := f.orderer.Order(context.Background(), "s1", diffs, history())
	assert.Equal(t, []string{"b.ts", "a.ts"}, paths(got))
	assert.Equal(t, 1, f.mock.CallCount(), "signature mismatch must re-rank")
}

func TestOrder_FallbackPrefersCachedOrderFilteredToSurvivors(t *testing.T) {
	f := newFixture(t)
	f.mock.WithError(errors.New("gateway down"))

	cached := []diff.FileDiff{
		{File: "c.ts", Before: "1", After: "2"},
		{File: "a.ts", Before: "p", After: "q"},
		{File: "b.ts", Before: "x", After: "y"},
	}
	require.NoError(t, record.WriteOrdering(context.Background(), f.kv, "s1", cached))

	// c.ts disappeared; the cache no longer covers the set exactly.
	diffs := []diff.FileDiff{
		{File: "b.ts", Before: "x", After: "y"},
		{File: "a.ts", Before: "p", After: "q"},
	}

	got := f.orderer.Order(context.Background(), "s1", diffs, history())
	assert.Equal(t, []string{"a.ts", "b.ts"}, paths(got), "cached relative order survives the gateway failure")
}

func TestOrder_FallbackKeepsFilesAddedSinceCachedOrdering(t *testing.T) {
	f := newFixture(t)
	f.mock.WithError(errors.New("gateway down"))

	cached := []diff.FileDiff{
		{File: "a.ts", Before: "p", After: "q"},
	}
	require.NoError(t, record.WriteOrdering(context.Background(), f.kv, "s1", cached))

	// b.ts and c.ts appeared after the cached ordering was written.
	diffs := []diff.FileDiff{
		{File: "c.ts", Before: "m", After: "n"},
		{File: "a.ts", Before: "p", After: "q"},
		{File: "b.ts", Before: "x", After: "y"},
	}

	got := f.orderer.Order(context.Background(), "s1", diffs, history())
	assert.Equal(t, []string{"a.ts", "c.ts", "b.ts"}, paths(got),
		"cached entries lead, new files follow in input order")
}

func TestOrder_NoUserMessageSkipsGateway(t *testing.T) {
	f := newFixture(t)

	diffs := []diff.FileDiff{
		{File: "b.ts", Before: "x", After: "y"},
		{File: "a.ts", Before: "p", After: "q"},
	}
	onlyAssistant := []message.Message{{Role: message.RoleAssistant, ProviderID: "vaultai"}}

	got := f.orderer.Order(context.Background(), "s1", diffs, onlyAssistant)
	assert.Equal(t, []string{"b.ts", "a.ts"}, paths(got))
	assert.Zero(t, f.mock.CallCount())
}

func TestOrder_NoResolvableModelSkipsGateway(t *testing.T) {
	mock := gateway.NewMockClient()
	kv := store.NewMemory()
	defer kv.Close()

	// Catalog without a small model for any provider.
	models := model.NewStaticResolver().
		SetDefault(model.Model{ProviderID: "vaultai", ID: "vault-large"})

	o := New(mock, models, kv, flight.NewRegistry(), slog.Default(), NewMetrics(nil))

	diffs := []diff.FileDiff{
		{File: "b.ts", Before: "x", After: "y"},
		{File: "a.ts", Before: "p", After: "q"},
	}

	got := o.Order(context.Background(), "s1", diffs, history())
	assert.Equal(t, []string{"b.ts", "a.ts"}, paths(got))
	assert.Zero(t, mock.CallCount())
}

func TestOrder_GatewayFailureRetriesOnceThenFallsBack(t *testing.T) {
	f := newFixture(t)
	f.mock.WithError(errors.New("transient"))

	diffs := []diff.FileDiff{
		{File: "b.ts", Before: "x", After: "y"},
		{File: "a.ts", Before: "p", After: "q"},
	}

	got := f.orderer.Order(context.Background(), "s1", diffs, history())
	assert.Equal(t, []string{"b.ts", "a.ts"}, paths(got))
	assert.Equal(t, 2, f.mock.CallCount(), "one initial attempt plus one retry")
	assert.False(t, f.flights.HasInflight("s1"), "cancellation handle cleared on failure")
}

func TestOrder_RetryRecoversFromOneTransientFailure(t *testing.T) {
	f := newFixture(t)
	f.mock.FailNext(1, errors.New("transient"))
	f.mock.SetDefaultText("a.ts\nb.ts")

	diffs := []diff.FileDiff{
		{File: "b.ts", Before: "x", After: "y"},
		{File: "a.ts", Before: "p", After: "q"},
	}

	got := f.orderer.Order(context.Background(), "s1", diffs, history())
	assert.Equal(t, []string{"a.ts", "b.ts"}, paths(got))
	assert.Equal(t, 2, f.mock.CallCount())
}

func TestOrder_ExternalCancellationFallsBackAndClearsHandle(t *testing.T) {
	f := newFixture(t)
	f.mock.WithDelay(time.Hour) // the ranking call never resolves on its own

	diffs := []diff.FileDiff{
		{File: "b.ts", Before: "x", After: "y"},
		{File: "a.ts", Before: "p", After: "q"},
	}

	done := make(chan []diff.FileDiff, 1)
	go func() {
		done <- f.orderer.Order(context.Background(), "s1", diffs, history())
	}()

	// Wait for the handle to be armed, then fire it — the same signal a
	// newer summarization request would send.
	require.Eventually(t, func() bool {
		return f.flights.HasInflight("s1")
	}, 2*time.Second, time.Millisecond)
	require.True(t, f.flights.CancelInflight("s1"))

	select {
	case got := <-done:
		assert.Equal(t, []string{"b.ts", "a.ts"}, paths(got))
	case <-time.After(5 * time.Second):
		t.Fatal("order did not return after cancellation")
	}
	assert.False(t, f.flights.HasInflight("s1"))
}

func TestOrder_TimeoutFallsBackAndClearsHandle(t *testing.T) {
	f := newFixture(t)
	f.mock.WithDelay(time.Hour)
	f.orderer.timeout = 20 * time.Millisecond

	diffs := []diff.FileDiff{
		{File: "b.ts", Before: "x", After: "y"},
		{File: "a.ts", Before: "p", After: "q"},
	}

	got := f.orderer.Order(context.Background(), "s1", diffs, history())
	assert.Equal(t, []string{"b.ts", "a.ts"}, paths(got))
	assert.False(t, f.flights.HasInflight("s1"), "cancellation handle cleared on timeout")
}

func TestOrder_ResultIsAlwaysAPermutation(t *testing.T) {
	outputs := []string{
		"a.ts\nb.ts\nc.ts",
		"c.ts\na.ts",
		"garbage only",
		"",
		"a.ts\na.ts\na.ts",
	}

	diffs := []diff.FileDiff{
		{File: "b.ts", Before: "x", After: "y"},
		{File: "a.ts", Before: "p", After: "q"},
		{File: "c.ts", Before: "m", After: "n"},
	}

	for _, output := range outputs {
		f := newFixture(t)
		f.mock.SetDefaultText(output)

		got := f.orderer.Order(context.Background(), "s1", diffs, history())

		require.Len(t, got, len(diffs), "output %q", output)
		seen := make(map[string]int)
		for _, d := range got {
			seen[d.File]++
		}
		for _, d := range diffs {
			assert.Equal(t, 1, seen[d.File], "output %q must keep %s exactly once", output, d.File)
		}
	}
}

func TestOrder_GatewayReceivesSerializedRows(t *testing.T) {
	f := newFixture(t)
	f.mock.QueueText("a.ts\nnew.ts\ngone.ts\nblob.bin")

	diffs := []diff.FileDiff{
		{File: "a.ts", Additions: 2, Deletions: 1, Before: "p", After: "q"},
		{File: "new.ts", Additions: 5, Before: "", After: "body"},
		{File: "gone.ts", Deletions: 7, Before: "body", After: ""},
		{File: "blob.bin", Before: "", After: ""},
	}

	f.orderer.Order(context.Background(), "s1", diffs, history())

	req := f.mock.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "vault-small", req.Model.ID, "ranking prefers the provider's small model")
	require.Len(t, req.Messages, 1)

	content := req.Messages[0].Content
	assert.Contains(t, content, "refactor the parser")
	assert.Contains(t, content, "a.ts\tmodified\t+2\t-1\tts")
	assert.Contains(t, content, "new.ts\tadded\t+5\t-0\tts")
	assert.Contains(t, content, "gone.ts\tdeleted\t+0\t-7\tts")
	assert.Contains(t, content, "blob.bin\tbinary\t+0\t-0\tbin")
}
