//go:build e2e

// Package e2e runs the persistence backends against real containers:
// Postgres for the archive, Redis for the event bus and Neo4j for the
// memory graph. Run with `go test -tags e2e ./internal/e2e/` and a Docker
// daemon available.
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	tcneo4j "github.com/testcontainers/testcontainers-go/modules/neo4j"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"github.com/redskulldevv/omni-agi/internal/eventbus"
	"github.com/redskulldevv/omni-agi/internal/goal"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/store"
)

var (
	testLogger  *zap.Logger
	testArchive *store.Store
	testBus     *eventbus.Bus
	testGraph   *memory.GraphStore
)

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()
	testLogger, _ = zap.NewDevelopment()

	dsn, pgCleanup, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres: %v\n", err)
		return 1
	}
	defer pgCleanup()

	testArchive, err = store.New(ctx, dsn, testLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "archive: %v\n", err)
		return 1
	}
	defer testArchive.Close()
	// The second run finds nothing pending.
	for i := 0; i < 2; i++ {
		if err := testArchive.Migrate(ctx, "../../migrations"); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			return 1
		}
	}

	redisURL, redisCleanup, err := startRedis(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		return 1
	}
	defer redisCleanup()

	testBus, err = eventbus.New(ctx, redisURL, testLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "event bus: %v\n", err)
		return 1
	}
	defer testBus.Close()

	boltURL, neoCleanup, err := startNeo4j(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "neo4j: %v\n", err)
		return 1
	}
	defer neoCleanup()

	testGraph, err = memory.NewGraphStore(boltURL, "", "", testLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "graph: %v\n", err)
		return 1
	}
	defer testGraph.Close(ctx)

	return m.Run()
}

func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("omni_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start postgres: %w", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("pg connection string: %w", err)
	}
	return dsn, func() { container.Terminate(ctx) }, nil
}

func startRedis(ctx context.Context) (string, func(), error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return "", nil, fmt.Errorf("start redis: %w", err)
	}
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("redis endpoint: %w", err)
	}
	return "redis://" + endpoint, func() { container.Terminate(ctx) }, nil
}

func startNeo4j(ctx context.Context) (string, func(), error) {
	container, err := tcneo4j.Run(ctx, "neo4j:5-community", tcneo4j.WithoutAuthentication())
	if err != nil {
		return "", nil, fmt.Errorf("start neo4j: %w", err)
	}
	uri, err := container.BoltUrl(ctx)
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("neo4j bolt url: %w", err)
	}
	return uri, func() { container.Terminate(ctx) }, nil
}

func TestArchiveTrades(t *testing.T) {
	ctx := context.Background()

	goals := goal.NewManager(testLogger)
	g, err := goals.Create(goal.NewGoal{Type: goal.MarketAnalysis, Description: "Track ETH", Priority: 0.7})
	if err != nil {
		t.Fatal(err)
	}
	if err := testArchive.SaveGoal(ctx, g); err != nil {
		t.Fatalf("save goal: %v", err)
	}
	// A second save is an upsert.
	g, _ = goals.UpdateProgress(g.ID, 0.5, nil)
	if err := testArchive.SaveGoal(ctx, g); err != nil {
		t.Fatalf("upsert goal: %v", err)
	}

	base := time.Now().Add(-time.Minute)
	for i, action := range []string{"buy", "sell"} {
		err := testArchive.RecordTrade(ctx, store.Trade{
			Chain: "ethereum", Action: action, Asset: "ETH", Amount: 1.5,
			Status: "filled", TxHash: fmt.Sprintf("paper-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("record %s: %v", action, err)
		}
	}

	trades, err := testArchive.RecentTrades(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) < 2 {
		t.Fatalf("got %d trades, want 2", len(trades))
	}
	if trades[0].Action != "sell" || trades[1].Action != "buy" {
		t.Errorf("trades not newest first: %s, %s", trades[0].Action, trades[1].Action)
	}
}

func TestEventBusRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events := testBus.Subscribe(ctx, "investment")
	// XREAD with "$" only sees entries added after the first call blocks.
	time.Sleep(500 * time.Millisecond)

	err := testBus.Publish(ctx, eventbus.Event{
		Loop: "investment",
		Kind: eventbus.TradeExecuted,
		Data: map[string]interface{}{"asset": "ETH"},
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Kind != eventbus.TradeExecuted || ev.Data["asset"] != "ETH" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}

	recent, err := testBus.Recent(ctx, "investment", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) == 0 || recent[0].Kind != eventbus.TradeExecuted {
		t.Errorf("recent = %+v", recent)
	}

	if err := testBus.Publish(ctx, eventbus.Event{Kind: eventbus.CycleCompleted}); err == nil {
		t.Error("expected error publishing an event without a loop")
	}
}

func TestGraphRelatedTags(t *testing.T) {
	ctx := context.Background()
	if err := testGraph.Ping(ctx); err != nil {
		t.Fatal(err)
	}

	mems := memory.NewStore(memory.DefaultConfig(), testLogger)
	for _, tags := range [][]string{
		{"eth", "gas", "fees"},
		{"eth", "gas"},
		{"eth", "staking"},
	} {
		m := mems.Store("note about "+tags[len(tags)-1], memory.Semantic, memory.Medium, tags, nil)
		if err := testGraph.SaveMemory(ctx, m); err != nil {
			t.Fatalf("save memory: %v", err)
		}
	}

	related, err := testGraph.RelatedTags(ctx, "eth", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(related) != 3 || related[0] != "gas" {
		t.Errorf("related = %v, want gas first of 3", related)
	}
}
