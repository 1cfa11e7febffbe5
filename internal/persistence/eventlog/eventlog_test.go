package eventlog

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/engine"
)

func TestWriterRotatesPerSimDay(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "signals")

	day0 := []engine.Signal{
		{Seq: 1, Time: time.Hour, ID: engine.SignalTradeFail, Reason: engine.ReasonNoPartner, Need: "thirst", Requester: 4},
		{Seq: 2, Time: 23 * time.Hour, ID: engine.SignalTradeSuccess, Need: "thirst", Resource: "water", Requester: 4, Target: agents.PoolProvider(1), Amount: 2},
	}
	day1 := engine.Signal{Seq: 3, Time: 25 * time.Hour, ID: engine.SignalTradeFail, Reason: engine.ReasonQueueFull, Target: agents.AgentProvider(9)}

	for _, s := range day0 {
		w.Emit(s)
	}
	require.NoError(t, w.Write(day1))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "closing twice is harmless")

	got, err := ReadFile(w.PathForDay(0))
	require.NoError(t, err)
	assert.Equal(t, day0, got)

	got, err = ReadFile(w.PathForDay(1))
	require.NoError(t, err)
	assert.Equal(t, []engine.Signal{day1}, got)
}

func TestWriterAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	first := engine.Signal{Seq: 1, Time: time.Minute, ID: engine.SignalTradeFail, Reason: engine.ReasonRejected}
	second := engine.Signal{Seq: 2, Time: 2 * time.Minute, ID: engine.SignalTradeFail, Reason: engine.ReasonNoResource}

	w := NewWriter(dir, "signals")
	require.NoError(t, w.Write(first))
	require.NoError(t, w.Close())

	w = NewWriter(dir, "signals")
	require.NoError(t, w.Write(second))
	require.NoError(t, w.Close())

	got, err := ReadFile(w.PathForDay(0))
	require.NoError(t, err)
	assert.Equal(t, []engine.Signal{first, second}, got, "zstd frames concatenate")
}

func TestReadFileErrors(t *testing.T) {
	_, err := ReadFile("/nonexistent/signals-day-0000.jsonl.zst")
	assert.Error(t, err)

	path := t.TempDir() + "/junk.jsonl.zst"
	require.NoError(t, os.WriteFile(path, []byte("not zstd at all"), 0o644))
	_, err = ReadFile(path)
	assert.Error(t, err)
}
