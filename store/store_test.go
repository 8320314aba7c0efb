package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecordAndReadBack opens a fresh database, records two sessions, and
// reads them back in insertion order.
func TestRecordAndReadBack(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer s.Close()

	first := Summary{
		Products:    []string{"BTC-USD", "ETH-USD"},
		StartedNs:   1000,
		EndedNs:     2000,
		Received:    10,
		Parsed:      9,
		Logged:      8,
		Dropped:     1,
		LastPrice:   "50000.12",
		PriceEMA:    50000.5,
		MidPriceEMA: 50000.25,
	}
	require.NoError(t, s.RecordSession(first))
	require.NoError(t, s.RecordSession(Summary{Products: []string{"SOL-USD"}}))

	got, err := s.Sessions()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0])
	assert.Equal(t, []string{"SOL-USD"}, got[1].Products)
}

// TestOpenIsIdempotent: reopening an existing database keeps prior rows and
// does not trip on the already-present schema.
func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.RecordSession(Summary{Products: []string{"BTC-USD"}}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Sessions()
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
