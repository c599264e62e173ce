package neo4jexport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/dd0wney/microbekg/pkg/config"
	"github.com/dd0wney/microbekg/pkg/kg"
	"github.com/dd0wney/microbekg/pkg/logging"
	"github.com/dd0wney/microbekg/pkg/metrics"
)

// DefaultBatchSize is the number of rows sent per UNWIND statement.
const DefaultBatchSize = 1000

// Executor runs Cypher. Each call is its own transaction.
type Executor interface {
	Write(ctx context.Context, cypher string, params map[string]any) error
	Read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Client is an Executor backed by the Neo4j Go driver.
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
}

// Connect opens a driver for cfg and verifies the server is reachable.
func Connect(ctx context.Context, cfg config.Neo4jConfig) (*Client, error) {
	if err := cfg.Require(); err != nil {
		return nil, err
	}
	driver, err := neo4j.NewDriverWithContext(cfg.Bolt,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.SocketConnectTimeout = 10 * time.Second
		})
	if err != nil {
		return nil, fmt.Errorf("neo4jexport: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4jexport: verify connectivity: %w", err)
	}
	return &Client{Driver: driver, Database: cfg.Database}, nil
}

// Close releases the driver.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}

func (c *Client) Write(ctx context.Context, cypher string, params map[string]any) error {
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

func (c *Client) Read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(records))
		for _, r := range records {
			rows = append(rows, r.AsMap())
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]map[string]any), nil
}

// Loader pushes a graph into a live Neo4j database. Nodes get their biolink
// category as label; each predicate becomes its own relationship type.
type Loader struct {
	Exec      Executor
	BatchSize int
	Logger    logging.Logger
	Metrics   *metrics.Registry
}

func (l *Loader) batchSize() int {
	if l.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return l.BatchSize
}

func (l *Loader) logger() logging.Logger {
	if l.Logger == nil {
		return logging.NewNopLogger()
	}
	return l.Logger
}

// Load merges every node and then every edge of g.
func (l *Loader) Load(ctx context.Context, g Graph) error {
	byLabel := map[string][]map[string]any{}
	g.ForEachNode(func(n *kg.Node) bool {
		label := n.Type.Category()
		byLabel[label] = append(byLabel[label], nodeProperties(n))
		return true
	})
	nodes, err := l.loadGroups(ctx, byLabel, nodeStatement)
	if err != nil {
		return err
	}
	l.logger().Info("loaded nodes into neo4j", logging.Count(nodes))
	l.Metrics.RecordExport("node", "neo4j_driver", nodes)

	byType := map[string][]map[string]any{}
	g.ForEachEdge(func(e *kg.Edge) bool {
		byType[e.Predicate] = append(byType[e.Predicate], map[string]any{
			"source":           e.Source,
			"target":           e.Target,
			"predicate":        e.Predicate,
			"knowledge_source": e.KnowledgeSources.Slice(),
		})
		return true
	})
	edges, err := l.loadGroups(ctx, byType, edgeStatement)
	if err != nil {
		return err
	}
	l.logger().Info("loaded edges into neo4j", logging.Count(edges))
	l.Metrics.RecordExport("edge", "neo4j_driver", edges)
	return nil
}

func (l *Loader) loadGroups(ctx context.Context, groups map[string][]map[string]any, stmt func(string) string) (int, error) {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := 0
	size := l.batchSize()
	for _, key := range keys {
		rows := groups[key]
		cypher := stmt(key)
		for start := 0; start < len(rows); start += size {
			end := min(start+size, len(rows))
			if err := l.Exec.Write(ctx, cypher, map[string]any{"rows": rows[start:end]}); err != nil {
				return total, fmt.Errorf("neo4jexport: load %s rows %d-%d: %w", key, start, end, err)
			}
			total += end - start
		}
	}
	return total, nil
}

func nodeProperties(n *kg.Node) map[string]any {
	return map[string]any{
		"node_id":          n.ID,
		"node_type":        n.Type.Category(),
		"all_names":        n.Names.Slice(),
		"description":      FlattenDescription(n.Description),
		"knowledge_source": n.KnowledgeSources.Slice(),
		"link":             n.Links.Slice(),
		"synonyms":         n.Synonyms.Slice(),
		"is_pathogen":      n.IsPathogen,
	}
}

func nodeStatement(label string) string {
	return fmt.Sprintf(`UNWIND $rows AS row
MERGE (n:%s {node_id: row.node_id})
SET n += row`, quoteName(label))
}

func edgeStatement(relType string) string {
	return fmt.Sprintf(`UNWIND $rows AS row
MATCH (s {node_id: row.source})
MATCH (t {node_id: row.target})
MERGE (s)-[r:%s]->(t)
SET r.source_node = row.source, r.target_node = row.target,
    r.predicate = row.predicate, r.knowledge_source = row.knowledge_source`, quoteName(relType))
}

// quoteName escapes a label or relationship type for direct interpolation.
func quoteName(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
