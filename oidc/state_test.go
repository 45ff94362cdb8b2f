// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hashicorp/cap-entra/sdk/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFlowState(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	nowFn := func() time.Time { return now }

	t.Run("defaults", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		fs, err := NewFlowState(DefaultFlowStateTTL, WithNow(nowFn))
		require.NoError(err)
		assert.Len(fs.Verifier, verifierLen)
		assert.Len(fs.State, DefaultIDLength)
		assert.Len(fs.Nonce, DefaultIDLength)
		assert.NotEqual(fs.State, fs.Nonce)
		assert.Equal("/", fs.ReturnTo)
		assert.Equal(now.Add(DefaultFlowStateTTL), fs.ExpiresAt)
		require.NoError(fs.Validate(WithNow(nowFn)))

		v, err := fs.CodeVerifier()
		require.NoError(err)
		assert.Equal(fs.Verifier, v.Verifier())
		assert.Equal(S256, v.Method())
	})
	t.Run("return-to", func(t *testing.T) {
		fs, err := NewFlowState(time.Minute, WithReturnTo("/reports?id=1"))
		require.NoError(t, err)
		assert.Equal(t, "/reports?id=1", fs.ReturnTo)
	})
	t.Run("unique", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a, err := NewFlowState(time.Minute)
		require.NoError(err)
		b, err := NewFlowState(time.Minute)
		require.NoError(err)
		assert.NotEqual(a.State, b.State)
		assert.NotEqual(a.Nonce, b.Nonce)
		assert.NotEqual(a.Verifier, b.Verifier)
	})
	t.Run("invalid-ttl", func(t *testing.T) {
		_, err := NewFlowState(0)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("json", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		fs, err := NewFlowState(time.Minute, WithNow(nowFn))
		require.NoError(err)
		b, err := json.Marshal(fs)
		require.NoError(err)
		var got FlowState
		require.NoError(json.Unmarshal(b, &got))
		assert.Equal(*fs, got)
	})
}

func TestFlowState_Validate(t *testing.T) {
	t.Parallel()
	now := time.Now()
	nowFn := func() time.Time { return now }
	valid := func() *FlowState {
		return &FlowState{Verifier: "v", State: "s", Nonce: "n", ReturnTo: "/", ExpiresAt: now.Add(time.Minute)}
	}
	tests := []struct {
		name    string
		fs      func() *FlowState
		wantErr error
	}{
		{name: "valid", fs: valid},
		{name: "nil", fs: func() *FlowState { return nil }, wantErr: ErrStateMissing},
		{name: "no-state", fs: func() *FlowState { s := valid(); s.State = ""; return s }, wantErr: ErrStateMissing},
		{name: "no-nonce", fs: func() *FlowState { s := valid(); s.Nonce = ""; return s }, wantErr: ErrNonceMissing},
		{name: "no-verifier", fs: func() *FlowState { s := valid(); s.Verifier = ""; return s }, wantErr: ErrInvalidParameter},
		{name: "state-equals-nonce", fs: func() *FlowState { s := valid(); s.Nonce = s.State; return s }, wantErr: ErrInvalidParameter},
		{name: "expired", fs: func() *FlowState { s := valid(); s.ExpiresAt = now.Add(-time.Second); return s }, wantErr: ErrExpiredState},
		{name: "within-skew", fs: func() *FlowState { s := valid(); s.ExpiresAt = now.Add(DefaultStateExpirySkew / 2); return s }, wantErr: ErrExpiredState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.fs().Validate(WithNow(nowFn))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	t.Run("skew-override", func(t *testing.T) {
		s := valid()
		s.ExpiresAt = now.Add(time.Minute)
		assert.False(t, s.IsExpired(WithNow(nowFn)))
		assert.True(t, s.IsExpired(WithNow(nowFn), WithExpirySkew(2*time.Minute)))
	})
}

func TestValidateState(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		received string
		expected string
		wantErr  error
	}{
		{name: "match", received: "abc", expected: "abc"},
		{name: "mismatch", received: "abc", expected: "abd", wantErr: ErrStateMismatch},
		{name: "prefix", received: "ab", expected: "abc", wantErr: ErrStateMismatch},
		{name: "case", received: "ABC", expected: "abc", wantErr: ErrStateMismatch},
		{name: "missing-received", received: "", expected: "abc", wantErr: ErrStateMissing},
		{name: "missing-expected", received: "abc", expected: "", wantErr: ErrStateMissing},
		{name: "both-missing", wantErr: ErrStateMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert := assert.New(t)
			err := ValidateState(tt.received, tt.expected)
			if tt.wantErr == nil {
				assert.NoError(err)
				return
			}
			assert.ErrorIs(err, tt.wantErr)
			assert.Equal(errkind.CSRF, errkind.Of(err))
		})
	}
}

func TestValidateNonce(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		received string
		expected string
		wantErr  error
	}{
		{name: "match", received: "n-1", expected: "n-1"},
		{name: "mismatch", received: "n-1", expected: "n-2", wantErr: ErrInvalidNonce},
		{name: "missing-received", expected: "n-1", wantErr: ErrNonceMissing},
		{name: "missing-expected", received: "n-1", wantErr: ErrNonceMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert := assert.New(t)
			err := ValidateNonce(tt.received, tt.expected)
			if tt.wantErr == nil {
				assert.NoError(err)
				return
			}
			assert.ErrorIs(err, tt.wantErr)
			assert.Equal(errkind.Replay, errkind.Of(err))
		})
	}
}
