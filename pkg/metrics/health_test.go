package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealthChecker() {
	healthChecker = &HealthChecker{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
}

func TestRegisterComponent_IsNeverCritical(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("cleanup", true, "running")

	comp := healthChecker.components["cleanup"]
	assert.True(t, comp.Healthy)
	assert.Equal(t, "running", comp.Message)
	assert.False(t, comp.Critical)
}

func TestRegisterCriticalComponent_IsCritical(t *testing.T) {
	resetHealthChecker()

	RegisterCriticalComponent("storage", true, "ready")

	comp := healthChecker.components["storage"]
	assert.True(t, comp.Critical)
}

func TestGetHealth_AllHealthy(t *testing.T) {
	resetHealthChecker()
	healthChecker.version = "1.0.0"

	RegisterComponent("cleanup", true, "")
	RegisterCriticalComponent("storage", true, "")

	health := GetHealth()

	assert.Equal(t, "healthy", health.Status)
	assert.Len(t, health.Components, 2)
	assert.Equal(t, "1.0.0", health.Version)
}

func TestGetHealth_OneUnhealthy(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("cleanup", true, "")
	RegisterCriticalComponent("storage", false, "not connected")

	health := GetHealth()

	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "unhealthy: not connected", health.Components["storage"])
}

func TestGetReadiness_OnlyCriticalComponentsGateIt(t *testing.T) {
	resetHealthChecker()

	RegisterCriticalComponent("storage", true, "")
	RegisterCriticalComponent("syncloop", true, "")
	RegisterComponent("cleanup", false, "backlog") // not critical, must not affect readiness

	readiness := GetReadiness()

	assert.Equal(t, "ready", readiness.Status)
	assert.NotContains(t, readiness.Components, "cleanup")
}

func TestGetReadiness_NoCriticalComponentsRegisteredIsVacuouslyReady(t *testing.T) {
	resetHealthChecker()
	RegisterComponent("cleanup", true, "")
	// no critical component registered at all yet

	readiness := GetReadiness()

	assert.Equal(t, "ready", readiness.Status)
}

func TestGetReadiness_CriticalComponentUnhealthy(t *testing.T) {
	resetHealthChecker()

	RegisterCriticalComponent("storage", false, "database unavailable")
	RegisterCriticalComponent("syncloop", true, "")

	readiness := GetReadiness()

	assert.Equal(t, "not_ready", readiness.Status)
	assert.NotEmpty(t, readiness.Message)
	assert.Equal(t, "not ready: database unavailable", readiness.Components["storage"])
}

func TestHealthHandler(t *testing.T) {
	resetHealthChecker()
	healthChecker.version = "test"
	RegisterComponent("test", true, "")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	resetHealthChecker()
	RegisterComponent("test", false, "broken")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "unhealthy", health.Status)
}

func TestReadyHandler(t *testing.T) {
	resetHealthChecker()
	RegisterCriticalComponent("storage", true, "")
	RegisterCriticalComponent("syncloop", true, "")

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var readiness HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.Equal(t, "ready", readiness.Status)
}

func TestReadyHandler_NotReady(t *testing.T) {
	resetHealthChecker()
	RegisterCriticalComponent("storage", false, "not connected")

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var readiness HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.Equal(t, "not_ready", readiness.Status)
}

func TestLivenessHandler(t *testing.T) {
	resetHealthChecker()

	req := httptest.NewRequest("GET", "/live", nil)
	w := httptest.NewRecorder()
	LivenessHandler()(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "alive", response["status"])
	assert.NotEmpty(t, response["uptime"])
}

func TestUpdateComponent_PreservesCriticality(t *testing.T) {
	resetHealthChecker()
	RegisterCriticalComponent("storage", true, "ok")

	UpdateComponent("storage", false, "connection dropped")

	comp := healthChecker.components["storage"]
	assert.False(t, comp.Healthy)
	assert.Equal(t, "connection dropped", comp.Message)
	assert.True(t, comp.Critical, "UpdateComponent must not demote a critical component to informational")
}
