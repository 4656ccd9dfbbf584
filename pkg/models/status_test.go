package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssetStatus_String(t *testing.T) {
	tests := []struct {
		status AssetStatus
		want   string
	}{
		{AssetStatusUnset, "unset"},
		{AssetStatusSuccess, "success"},
		{AssetStatusFailure, "failure"},
		{AssetStatusSkipped, "skipped"},
		{AssetStatusNotFound, "not_found"},
		{AssetStatusDBError, "db_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestAssetStatus_IsValid(t *testing.T) {
	tests := []struct {
		status AssetStatus
		want   bool
	}{
		{AssetStatusSuccess, true},
		{AssetStatusFailure, true},
		{AssetStatusSkipped, true},
		{AssetStatusUnset, false},
		{AssetStatusNotFound, false},
		{AssetStatusDBError, false},
		{AssetStatus("arbitrary"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.IsValid(), "AssetStatus(%q).IsValid()", string(tt.status))
	}
}
