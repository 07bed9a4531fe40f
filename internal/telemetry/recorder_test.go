package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readTicks(t *testing.T, dir string) []TickRecord {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, TicksFile))
	require.NoError(t, err)
	defer f.Close()

	var out []TickRecord
	require.NoError(t, gocsv.UnmarshalFile(f, &out))
	return out
}

func TestNilRecorder(t *testing.T) {
	r, err := NewRecorder("")
	require.NoError(t, err)
	assert.Nil(t, r)

	assert.NoError(t, r.Record(TickRecord{}))
	assert.NoError(t, r.Close())
}

func TestRecorder_AppendsAcrossSessions(t *testing.T) {
	dir := t.TempDir()

	r, err := NewRecorder(dir)
	require.NoError(t, err)
	require.NoError(t, r.Record(TickRecord{Time: "t1", Health: 90, Status: "alive", WaterLevel: "clean"}))
	require.NoError(t, r.Record(TickRecord{Time: "t2", Health: 80, Status: "alive"}))
	require.NoError(t, r.Close())

	r, err = NewRecorder(dir)
	require.NoError(t, err)
	require.NoError(t, r.Record(TickRecord{Time: "t3", Health: 15, Status: "critical", MovementPattern: "dying"}))
	require.NoError(t, r.Close())

	ticks := readTicks(t, dir)
	require.Len(t, ticks, 3, "header written once")
	assert.Equal(t, "t1", ticks[0].Time)
	assert.Equal(t, "clean", ticks[0].WaterLevel)
	assert.Equal(t, 15.0, ticks[2].Health)
	assert.Equal(t, "dying", ticks[2].MovementPattern)
}
