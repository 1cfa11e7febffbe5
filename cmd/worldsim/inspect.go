package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/config"
	"github.com/talgya/worldsim/internal/engine"
	"github.com/talgya/worldsim/internal/persistence"
	"github.com/talgya/worldsim/internal/persistence/eventlog"
)

var inspectOpts struct {
	dbPath     string
	agent      uint64
	signals    int
	signalFile string
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show saved trade requests, intents and signals",
	Long: `Print every saved agent that has a live request or pending intents,
followed by the most recent signals. With --signal-file, decode a
compressed signal log instead.`,
	RunE: runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&inspectOpts.dbPath, "db", "", "SQLite path or postgres:// DSN (overrides WORLDSIM_DB)")
	f.Uint64Var(&inspectOpts.agent, "agent", 0, "Only show this agent")
	f.IntVar(&inspectOpts.signals, "signals", 20, "Number of recent signals to print")
	f.StringVar(&inspectOpts.signalFile, "signal-file", "", "Decode a .jsonl.zst signal log")
}

func runInspect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if inspectOpts.signalFile != "" {
		sigs, err := eventlog.ReadFile(inspectOpts.signalFile)
		if err != nil {
			return err
		}
		for _, s := range sigs {
			printSignal(out, s)
		}
		return nil
	}

	dsn := config.LoadEnv(".env").DB
	if inspectOpts.dbPath != "" {
		dsn = inspectOpts.dbPath
	}
	if _, err := os.Stat(dsn); err != nil && !persistence.IsPostgresDSN(dsn) {
		return fmt.Errorf("no saved world at %s", dsn)
	}
	db, err := persistence.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if !db.HasWorldState() {
		return fmt.Errorf("no saved world at %s", redact(dsn))
	}

	ws, err := db.LoadWorldState(inspectOpts.signals)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Tick %d (%s), %d agents, %d societies\n\n",
		ws.LastTick, engine.SimTime(ws.SimTime), len(ws.Agents), len(ws.Societies))

	for _, a := range ws.Agents {
		if inspectOpts.agent != 0 && uint64(a.ID) != inspectOpts.agent {
			continue
		}
		if inspectOpts.agent == 0 && !a.Request.Active() && len(a.Intents) == 0 {
			continue
		}
		printAgent(out, a)
	}

	fmt.Fprintln(out, "\nRecent signals:")
	for _, s := range ws.Signals {
		printSignal(out, s)
	}
	return nil
}

func printAgent(w io.Writer, a *agents.Agent) {
	req := a.Request
	fmt.Fprintf(w, "  %-4d %-10s %-10s", a.ID, a.Name, req.Stage)
	if req.Active() {
		fmt.Fprintf(w, "  %s → %s @ %s", req.NeedID, req.Provider, req.TargetLocation)
		if req.Stage == agents.StageQueued {
			fmt.Fprintf(w, " slot %d", req.QueueSlotIndex)
		}
	}
	fmt.Fprintln(w)
	for _, in := range a.Intents {
		fmt.Fprintf(w, "         intent %-8s urgency %.2f want %.1f %s attempts %d next %s\n",
			in.NeedID, in.Urgency, in.DesiredAmount, in.ResourceID, in.Attempts, engine.SimTime(in.NextAttempt))
	}
}

func printSignal(w io.Writer, s engine.Signal) {
	if s.Success() {
		fmt.Fprintf(w, "  #%-6d %s  agent %-4d %-8s %.2f %s from %s\n",
			s.Seq, engine.SimTime(s.Time), s.Requester, s.Need, s.Amount, s.Resource, s.Target)
		return
	}
	fmt.Fprintf(w, "  #%-6d %s  agent %-4d %-8s failed: %s (%s)\n",
		s.Seq, engine.SimTime(s.Time), s.Requester, s.Need, s.Reason, s.Target)
}
