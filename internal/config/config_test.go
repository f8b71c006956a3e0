package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAYMENT_TIMEOUT", "")
	t.Setenv("ESTIMATE_TICK_INTERVAL", "")

	cfg := Load()

	assert.Equal(t, 15*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, 30*time.Second, cfg.EstimateTickInterval)
	assert.Equal(t, "http://localhost:8080/api", cfg.BackendBaseURL)
}

func TestGetDuration(t *testing.T) {
	t.Setenv("X_DURATION", "2m")
	assert.Equal(t, 2*time.Minute, getDuration("X_DURATION", time.Second))

	t.Setenv("X_DURATION", "45")
	assert.Equal(t, 45*time.Second, getDuration("X_DURATION", time.Second))

	t.Setenv("X_DURATION", "soon")
	assert.Equal(t, time.Second, getDuration("X_DURATION", time.Second))

	t.Setenv("X_DURATION", "-5s")
	assert.Equal(t, time.Second, getDuration("X_DURATION", time.Second))
}

func TestGetInt(t *testing.T) {
	t.Setenv("X_INT", "12")
	assert.Equal(t, 12, getInt("X_INT", 3))

	t.Setenv("X_INT", "twelve")
	assert.Equal(t, 3, getInt("X_INT", 3))
}
