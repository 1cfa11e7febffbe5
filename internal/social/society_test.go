package social

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/config"
)

func TestGateCadence(t *testing.T) {
	var g Gate
	assert.True(t, g.Ready(0, time.Minute, false))
	assert.False(t, g.Ready(30*time.Second, time.Minute, false))
	assert.True(t, g.Ready(30*time.Second, time.Minute, true), "forced opens early")
	assert.Equal(t, 90*time.Second, g.Next, "forced opening advances the timer")
	assert.True(t, g.Ready(90*time.Second, time.Minute, false))
}

func TestSocietyGateUsesSettings(t *testing.T) {
	set := config.DefaultTradeSettings()
	set.TickIntervalSeconds = 300
	s := NewSociety(1, "Riverfolk", set)

	assert.True(t, s.Ready(0, false))
	assert.Equal(t, 5*time.Minute, s.NextTick)
	assert.False(t, s.Ready(4*time.Minute, false))
	assert.True(t, s.Ready(5*time.Minute, false))
}

func TestMembers(t *testing.T) {
	s := NewSociety(2, "Hillfolk", config.TradeSettings{})
	a := agents.NewAgent(4, "Per Dunmore", 1)
	s.AddMember(a)
	s.AddMember(a)
	assert.Equal(t, []agents.AgentID{4}, s.Members)
	assert.Equal(t, agents.SocietyID(2), a.SocietyID)
	assert.Equal(t, 60.0, s.Settings.TickIntervalSeconds, "settings normalized")

	s.RemoveMember(4)
	s.RemoveMember(4)
	assert.Empty(t, s.Members)
}
