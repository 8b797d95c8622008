package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"voiceassist/core"
)

func TestObserveProviderError(t *testing.T) {
	before := testutil.ToFloat64(ProviderFailures.WithLabelValues("synthesize", "elevenlabs"))

	ObserveProviderError(fmt.Errorf("speak: %w", core.NewSynthesisError("elevenlabs", 429, errors.New("quota"))))
	ObserveProviderError(errors.New("unrelated"))
	ObserveProviderError(nil)

	after := testutil.ToFloat64(ProviderFailures.WithLabelValues("synthesize", "elevenlabs"))
	assert.Equal(t, before+1, after)
}
