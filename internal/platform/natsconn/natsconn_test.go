package natsconn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEnvInt(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"unset", "", 42},
		{"set", "7", 7},
		{"zero", "0", 0},
		{"garbage", "many", 42},
		{"negative", "-3", 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("NATSCONN_TEST_INT", tc.raw)
			assert.Equal(t, tc.want, envInt("NATSCONN_TEST_INT", 42))
		})
	}
}

func TestEnvDuration(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{"unset", "", 5 * time.Second},
		{"set", "3s", 3 * time.Second},
		{"padded", " 250ms ", 250 * time.Millisecond},
		{"garbage", "later", 5 * time.Second},
		{"zero", "0s", 5 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("NATSCONN_TEST_DUR", tc.raw)
			assert.Equal(t, tc.want, envDuration("NATSCONN_TEST_DUR", 5*time.Second))
		})
	}
}

func TestConnect_UnreachableFailsFast(t *testing.T) {
	start := time.Now()
	_, err := Connect(Options{
		URL:           "nats://127.0.0.1:19999",
		MaxReconnects: 1,
		ReconnectWait: 10 * time.Millisecond,
		Name:          "importer-test",
		Logger:        zaptest.NewLogger(t),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats connect nats://127.0.0.1:19999")
	assert.Less(t, time.Since(start), 10*time.Second)
}
