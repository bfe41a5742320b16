package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionHandler(t *testing.T) {
	original := versionInfo
	defer func() { versionInfo = original }()

	SetVersionInfo("1.4.0", "abc123", "2026-01-02")

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var info VersionInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	assert.Equal(t, VersionInfo{Version: "1.4.0", Commit: "abc123", BuildDate: "2026-01-02", GoVersion: runtime.Version()}, info)
}
