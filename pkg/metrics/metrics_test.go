package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("booking")
	require.NoError(t, m.Register(reg))

	m.HoldsCreated.Inc()
	m.ConfirmationFailures.WithLabelValues("conflict").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HoldsCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConfirmationFailures.WithLabelValues("conflict")))

	// registering the same collectors twice is rejected
	assert.Error(t, m.Register(reg))
}
