package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// GraphStore mirrors memories into Neo4j as Memory nodes linked to Tag
// nodes. It is optional; the in-process Store stays authoritative.
type GraphStore struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewGraphStore opens a Neo4j driver.
func NewGraphStore(uri, user, password string, logger *zap.Logger) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &GraphStore{driver: driver, logger: logger}, nil
}

// Close shuts down the Neo4j driver.
func (g *GraphStore) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// Ping verifies the Neo4j connection.
func (g *GraphStore) Ping(ctx context.Context) error {
	return g.driver.VerifyConnectivity(ctx)
}

// SaveMemory upserts the memory node and a TAGGED edge per tag.
func (g *GraphStore) SaveMemory(ctx context.Context, m Memory) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = session.Run(ctx,
		`MERGE (m:Memory {id: $id})
		 SET m.content = $content, m.type = $type, m.priority = $priority,
		     m.metadata = $metadata, m.created_at = datetime($createdAt)
		 WITH m
		 UNWIND $tags AS tag
		 MERGE (t:Tag {name: tag})
		 MERGE (m)-[:TAGGED]->(t)`,
		map[string]interface{}{
			"id":        m.ID,
			"content":   m.Text(),
			"type":      string(m.Type),
			"priority":  int64(m.Priority),
			"metadata":  string(meta),
			"createdAt": m.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
			"tags":      m.Tags,
		})
	if err != nil {
		return fmt.Errorf("save memory %s: %w", m.ID, err)
	}
	return nil
}

// RelatedTags returns tags that co-occur with tag, most shared memories first.
func (g *GraphStore) RelatedTags(ctx context.Context, tag string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (:Tag {name: $tag})<-[:TAGGED]-(m:Memory)-[:TAGGED]->(other:Tag)
		 WHERE other.name <> $tag
		 RETURN other.name AS name, count(m) AS shared
		 ORDER BY shared DESC, name ASC LIMIT $limit`,
		map[string]interface{}{"tag": tag, "limit": int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("related tags %s: %w", tag, err)
	}

	var tags []string
	for result.Next(ctx) {
		name, _ := result.Record().Get("name")
		if s, ok := name.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags, result.Err()
}
