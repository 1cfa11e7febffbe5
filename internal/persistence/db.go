// Package persistence provides SQL-backed world state storage. SQLite is the
// default; a postgres:// DSN switches to Postgres through pgx.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/config"
	"github.com/talgya/worldsim/internal/engine"
	"github.com/talgya/worldsim/internal/social"
)

// DB wraps a SQL connection for world state persistence.
type DB struct {
	conn     *sqlx.DB
	postgres bool
}

// Open opens or creates the database named by dsn: a file path for SQLite,
// or a postgres:// URL.
func Open(dsn string) (*DB, error) {
	driver, source, pg := "sqlite", dsn, false
	if IsPostgresDSN(dsn) {
		driver, pg = "pgx", true
	} else {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
		source = dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	conn, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if !pg {
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn, postgres: pg}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// IsPostgresDSN reports whether dsn names a Postgres database.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	serial := "INTEGER PRIMARY KEY"
	if db.postgres {
		serial = "BIGINT PRIMARY KEY"
	}
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id ` + serial + `,
		name TEXT NOT NULL,
		society_id BIGINT NOT NULL,
		pos_q INTEGER NOT NULL,
		pos_r INTEGER NOT NULL,
		location TEXT NOT NULL,
		alive INTEGER NOT NULL,
		intent_seq BIGINT NOT NULL,
		needs_json TEXT NOT NULL,
		inventory_json TEXT NOT NULL,
		intents_json TEXT NOT NULL,
		request_json TEXT NOT NULL,
		provider_json TEXT NOT NULL,
		rng_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS societies (
		id ` + serial + `,
		name TEXT NOT NULL,
		pool_location TEXT NOT NULL,
		next_tick BIGINT NOT NULL,
		members_json TEXT NOT NULL,
		pool_json TEXT NOT NULL,
		pool_lock_json TEXT NOT NULL,
		regen_json TEXT NOT NULL,
		cap_json TEXT NOT NULL,
		settings_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS signals (
		seq ` + serial + `,
		tick BIGINT NOT NULL,
		sim_time BIGINT NOT NULL,
		signal TEXT NOT NULL,
		reason TEXT NOT NULL,
		need TEXT NOT NULL,
		resource TEXT NOT NULL,
		requester BIGINT NOT NULL,
		target TEXT NOT NULL,
		amount REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_signals_tick ON signals(tick);
	CREATE INDEX IF NOT EXISTS idx_agents_society ON agents(society_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type agentRow struct {
	ID            uint64 `db:"id"`
	Name          string `db:"name"`
	SocietyID     uint64 `db:"society_id"`
	PosQ          int    `db:"pos_q"`
	PosR          int    `db:"pos_r"`
	Location      string `db:"location"`
	Alive         int    `db:"alive"`
	IntentSeq     uint64 `db:"intent_seq"`
	NeedsJSON     string `db:"needs_json"`
	InventoryJSON string `db:"inventory_json"`
	IntentsJSON   string `db:"intents_json"`
	RequestJSON   string `db:"request_json"`
	ProviderJSON  string `db:"provider_json"`
	RngJSON       string `db:"rng_json"`
}

type societyRow struct {
	ID           uint64 `db:"id"`
	Name         string `db:"name"`
	PoolLocation string `db:"pool_location"`
	NextTick     int64  `db:"next_tick"`
	MembersJSON  string `db:"members_json"`
	PoolJSON     string `db:"pool_json"`
	PoolLockJSON string `db:"pool_lock_json"`
	RegenJSON    string `db:"regen_json"`
	CapJSON      string `db:"cap_json"`
	SettingsJSON string `db:"settings_json"`
}

type signalRow struct {
	Seq       uint64  `db:"seq"`
	Tick      uint64  `db:"tick"`
	SimTime   int64   `db:"sim_time"`
	Signal    string  `db:"signal"`
	Reason    string  `db:"reason"`
	Need      string  `db:"need"`
	Resource  string  `db:"resource"`
	Requester uint64  `db:"requester"`
	Target    string  `db:"target"`
	Amount    float64 `db:"amount"`
}

// SaveAgents writes all agents to the database (full replace).
func (db *DB) SaveAgents(agentList []*agents.Agent) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO agents
		(id, name, society_id, pos_q, pos_r, location, alive, intent_seq,
		 needs_json, inventory_json, intents_json, request_json, provider_json, rng_json)
		VALUES (:id, :name, :society_id, :pos_q, :pos_r, :location, :alive, :intent_seq,
		 :needs_json, :inventory_json, :intents_json, :request_json, :provider_json, :rng_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range agentList {
		row, err := toAgentRow(a)
		if err != nil {
			return fmt.Errorf("encode agent %d: %w", a.ID, err)
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// SaveSocieties writes all societies to the database (full replace).
func (db *DB) SaveSocieties(socs []*social.Society) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM societies"); err != nil {
		return err
	}

	for _, s := range socs {
		row, err := toSocietyRow(s)
		if err != nil {
			return fmt.Errorf("encode society %d: %w", s.ID, err)
		}
		_, err = tx.NamedExec(`INSERT INTO societies
			(id, name, pool_location, next_tick, members_json, pool_json, pool_lock_json,
			 regen_json, cap_json, settings_json)
			VALUES (:id, :name, :pool_location, :next_tick, :members_json, :pool_json, :pool_lock_json,
			 :regen_json, :cap_json, :settings_json)`, row)
		if err != nil {
			return fmt.Errorf("insert society %d: %w", s.ID, err)
		}
	}

	return tx.Commit()
}

// SaveSignals appends signals. Signals already stored are skipped.
func (db *DB) SaveSignals(signals []engine.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range signals {
		_, err := tx.NamedExec(`INSERT INTO signals
			(seq, tick, sim_time, signal, reason, need, resource, requester, target, amount)
			VALUES (:seq, :tick, :sim_time, :signal, :reason, :need, :resource, :requester, :target, :amount)
			ON CONFLICT (seq) DO NOTHING`, signalRow{
			Seq:       s.Seq,
			Tick:      s.Tick,
			SimTime:   int64(s.Time),
			Signal:    string(s.ID),
			Reason:    string(s.Reason),
			Need:      string(s.Need),
			Resource:  string(s.Resource),
			Requester: uint64(s.Requester),
			Target:    s.Target.String(),
			Amount:    s.Amount,
		})
		if err != nil {
			return fmt.Errorf("insert signal %d: %w", s.Seq, err)
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(db.conn.Rebind(
		`INSERT INTO world_meta (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`),
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, db.conn.Rebind("SELECT value FROM world_meta WHERE key = ?"), key)
	return value, err
}

// HasWorldState reports whether a saved world exists.
func (db *DB) HasWorldState() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM agents"); err != nil {
		return false
	}
	return n > 0
}

// SaveWorldState performs a full save of all world state.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	var (
		agentList []*agents.Agent
		socs      []*social.Society
		signals   []engine.Signal
		tick      uint64
		now       time.Duration
		seq       uint64
		err       error
	)
	// Encoding happens under the read lock so a concurrent tick cannot tear the snapshot.
	sim.View(func() {
		agentList = sim.Agents
		socs = sim.Societies
		signals = append(signals, sim.Signals...)
		tick, now, seq = sim.LastTick, sim.Now, sim.SignalSeq
		slog.Info("saving world state", "agents", len(agentList), "societies", len(socs))
		if err = db.SaveAgents(agentList); err != nil {
			err = fmt.Errorf("save agents: %w", err)
			return
		}
		if err = db.SaveSocieties(socs); err != nil {
			err = fmt.Errorf("save societies: %w", err)
		}
	})
	if err != nil {
		return err
	}
	if err := db.SaveSignals(signals); err != nil {
		return fmt.Errorf("save signals: %w", err)
	}
	for k, v := range map[string]string{
		"last_tick":  strconv.FormatUint(tick, 10),
		"sim_time":   strconv.FormatInt(int64(now), 10),
		"signal_seq": strconv.FormatUint(seq, 10),
	} {
		if err := db.SaveMeta(k, v); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
	}

	slog.Info("world state saved", "tick", tick)
	return nil
}

// WorldState is everything needed to resume a saved world.
type WorldState struct {
	Agents    []*agents.Agent
	Societies []*social.Society
	Signals   []engine.Signal
	LastTick  uint64
	SimTime   time.Duration
	SignalSeq uint64
}

// LoadWorldState reads a saved world. The recent signal ring is refilled with
// up to signalLimit signals.
func (db *DB) LoadWorldState(signalLimit int) (*WorldState, error) {
	ag, err := db.LoadAgents()
	if err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	socs, err := db.LoadSocieties()
	if err != nil {
		return nil, fmt.Errorf("load societies: %w", err)
	}
	signals, err := db.RecentSignals(signalLimit)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	ws := &WorldState{Agents: ag, Societies: socs, Signals: signals}
	if ws.LastTick, err = db.metaUint("last_tick"); err != nil {
		return nil, err
	}
	t, err := db.metaUint("sim_time")
	if err != nil {
		return nil, err
	}
	ws.SimTime = time.Duration(t)
	if ws.SignalSeq, err = db.metaUint("signal_seq"); err != nil {
		return nil, err
	}
	return ws, nil
}

func (db *DB) metaUint(key string) (uint64, error) {
	v, err := db.GetMeta(key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("meta %s: %w", key, err)
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("meta %s: %w", key, err)
	}
	return n, nil
}

// LoadAgents reads every saved agent in id order.
func (db *DB) LoadAgents() ([]*agents.Agent, error) {
	var rows []agentRow
	if err := db.conn.Select(&rows, "SELECT * FROM agents ORDER BY id"); err != nil {
		return nil, err
	}
	out := make([]*agents.Agent, 0, len(rows))
	for _, r := range rows {
		a, err := r.agent()
		if err != nil {
			return nil, fmt.Errorf("decode agent %d: %w", r.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// LoadSocieties reads every saved society in id order.
func (db *DB) LoadSocieties() ([]*social.Society, error) {
	var rows []societyRow
	if err := db.conn.Select(&rows, "SELECT * FROM societies ORDER BY id"); err != nil {
		return nil, err
	}
	out := make([]*social.Society, 0, len(rows))
	for _, r := range rows {
		s, err := r.society()
		if err != nil {
			return nil, fmt.Errorf("decode society %d: %w", r.ID, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// RecentSignals returns the most recent N signals, oldest first.
func (db *DB) RecentSignals(limit int) ([]engine.Signal, error) {
	var rows []signalRow
	err := db.conn.Select(&rows,
		db.conn.Rebind("SELECT * FROM signals ORDER BY seq DESC LIMIT ?"),
		limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Signal, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = engine.Signal{
			Seq:       r.Seq,
			Tick:      r.Tick,
			Time:      time.Duration(r.SimTime),
			ID:        agents.SignalID(r.Signal),
			Reason:    engine.FailReason(r.Reason),
			Need:      agents.NeedID(r.Need),
			Resource:  agents.ResourceID(r.Resource),
			Requester: agents.AgentID(r.Requester),
			Target:    parseProvider(r.Target),
			Amount:    r.Amount,
		}
	}
	return out, nil
}

func toAgentRow(a *agents.Agent) (agentRow, error) {
	row := agentRow{
		ID:        uint64(a.ID),
		Name:      a.Name,
		SocietyID: uint64(a.SocietyID),
		PosQ:      a.Position.Q,
		PosR:      a.Position.R,
		Location:  string(a.Location),
		IntentSeq: a.IntentSeq,
	}
	if a.Alive {
		row.Alive = 1
	}
	var err error
	if row.NeedsJSON, err = encode(a.Needs); err != nil {
		return row, err
	}
	if row.InventoryJSON, err = encode(a.Inventory); err != nil {
		return row, err
	}
	if row.IntentsJSON, err = encode(a.Intents); err != nil {
		return row, err
	}
	if row.RequestJSON, err = encode(a.Request); err != nil {
		return row, err
	}
	if row.ProviderJSON, err = encode(a.Provider); err != nil {
		return row, err
	}
	if row.RngJSON, err = encode(a.Rng); err != nil {
		return row, err
	}
	return row, nil
}

func (r agentRow) agent() (*agents.Agent, error) {
	a := &agents.Agent{
		ID:        agents.AgentID(r.ID),
		Name:      r.Name,
		SocietyID: agents.SocietyID(r.SocietyID),
		Location:  agents.LocationID(r.Location),
		Alive:     r.Alive != 0,
		IntentSeq: r.IntentSeq,
		Needs:     make(agents.NeedLedger),
		Inventory: make(agents.Inventory),
		Request:   agents.NewTradeRequest(),
	}
	a.Position.Q, a.Position.R = r.PosQ, r.PosR
	for _, f := range []struct {
		raw string
		dst any
	}{
		{r.NeedsJSON, &a.Needs},
		{r.InventoryJSON, &a.Inventory},
		{r.IntentsJSON, &a.Intents},
		{r.RequestJSON, &a.Request},
		{r.ProviderJSON, &a.Provider},
		{r.RngJSON, &a.Rng},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, err
		}
	}
	if a.Needs == nil {
		a.Needs = make(agents.NeedLedger)
	}
	if a.Inventory == nil {
		a.Inventory = make(agents.Inventory)
	}
	return a, nil
}

func toSocietyRow(s *social.Society) (societyRow, error) {
	row := societyRow{
		ID:           uint64(s.ID),
		Name:         s.Name,
		PoolLocation: string(s.PoolLocation),
		NextTick:     int64(s.NextTick),
	}
	var err error
	if row.MembersJSON, err = encode(s.Members); err != nil {
		return row, err
	}
	if row.PoolJSON, err = encode(s.Pool); err != nil {
		return row, err
	}
	if row.PoolLockJSON, err = encode(s.PoolLock); err != nil {
		return row, err
	}
	if row.RegenJSON, err = encode(s.PoolRegen); err != nil {
		return row, err
	}
	if row.CapJSON, err = encode(s.PoolCap); err != nil {
		return row, err
	}
	if row.SettingsJSON, err = encode(s.Settings); err != nil {
		return row, err
	}
	return row, nil
}

func (r societyRow) society() (*social.Society, error) {
	var settings config.TradeSettings
	if err := json.Unmarshal([]byte(r.SettingsJSON), &settings); err != nil {
		return nil, err
	}
	s := social.NewSociety(social.SocietyID(r.ID), r.Name, settings)
	s.PoolLocation = agents.LocationID(r.PoolLocation)
	s.NextTick = time.Duration(r.NextTick)
	for _, f := range []struct {
		raw string
		dst any
	}{
		{r.MembersJSON, &s.Members},
		{r.PoolJSON, &s.Pool},
		{r.PoolLockJSON, &s.PoolLock},
		{r.RegenJSON, &s.PoolRegen},
		{r.CapJSON, &s.PoolCap},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, err
		}
	}
	if s.Pool == nil {
		s.Pool = make(agents.Inventory)
	}
	return s, nil
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

// parseProvider reverses ProviderRef.String.
func parseProvider(s string) agents.ProviderRef {
	kind, id, _ := strings.Cut(s, ":")
	n, _ := strconv.ParseUint(id, 10, 64)
	switch kind {
	case "agent":
		return agents.AgentProvider(agents.AgentID(n))
	case "pool":
		return agents.PoolProvider(agents.SocietyID(n))
	case "self":
		return agents.ProviderRef{Kind: agents.ProviderSelf}
	}
	return agents.ProviderRef{}
}
