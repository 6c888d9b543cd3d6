package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("PMSYNC_TEST_STR", "value")
	t.Setenv("PMSYNC_TEST_BOOL", "Yes")
	t.Setenv("PMSYNC_TEST_BAD_BOOL", "maybe")
	t.Setenv("PMSYNC_TEST_INT", "7")
	t.Setenv("PMSYNC_TEST_BAD_INT", "seven")
	t.Setenv("PMSYNC_TEST_DUR", "90s")

	assert.Equal(t, "value", EnvOrDefault("PMSYNC_TEST_STR", "x"))
	assert.Equal(t, "x", EnvOrDefault("PMSYNC_TEST_UNSET", "x"))
	assert.Equal(t, "value", FirstEnv("x", "PMSYNC_TEST_UNSET", "PMSYNC_TEST_STR"))
	assert.Equal(t, "x", FirstEnv("x", "PMSYNC_TEST_UNSET"))

	assert.True(t, EnvBool("PMSYNC_TEST_BOOL", false))
	assert.True(t, EnvBool("PMSYNC_TEST_BAD_BOOL", true))
	assert.False(t, EnvBool("PMSYNC_TEST_UNSET", false))

	assert.Equal(t, 7, EnvInt("PMSYNC_TEST_INT", 1))
	assert.Equal(t, 1, EnvInt("PMSYNC_TEST_BAD_INT", 1))

	assert.Equal(t, 90*time.Second, EnvDuration("PMSYNC_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, EnvDuration("PMSYNC_TEST_UNSET", time.Second))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, SplitList(" http://a, ,http://b "))
	assert.Nil(t, SplitList(""))
}
