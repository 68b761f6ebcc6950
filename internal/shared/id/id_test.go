package id

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()
	assert.NotEqual(t, gen.Generate(), gen.Generate())
}

func TestTypedIDsCarryPrefix(t *testing.T) {
	tests := []struct {
		id     string
		prefix string
	}{
		{NewReportID().String(), ReportPrefix},
		{NewRunID().String(), RunPrefix},
		{NewAttemptID().String(), AttemptPrefix},
		{NewRequestID().String(), RequestPrefix},
	}

	for _, tt := range tests {
		assert.True(t, strings.HasPrefix(tt.id, tt.prefix+"_"), tt.id)
		assert.True(t, IsValid(tt.id), tt.id)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	gen := NewGeneratorWithEntropy(bytes.NewReader(make([]byte, 1024)), func() time.Time { return at })

	ts, err := Timestamp(gen.GenerateWithPrefix(ReportPrefix))
	require.NoError(t, err)
	assert.True(t, at.Equal(ts.UTC()))
}

func TestIDsSortByCreation(t *testing.T) {
	gen := NewGenerator()
	first := gen.GenerateWithPrefix(ReportPrefix)
	time.Sleep(2 * time.Millisecond)
	second := gen.GenerateWithPrefix(ReportPrefix)
	assert.Less(t, first, second)
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	const n = 200

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := gen.GenerateWithPrefix(RunPrefix)
			mu.Lock()
			seen[s] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestParseRejectsGarbage(t *testing.T) {
	assert.False(t, IsValid("rpt_not-a-ulid"))
}
