package neo4j

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/internal/extract"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/circuitbreaker"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/retry"
)

// ContextEntity is one graph node reached during path expansion, annotated
// with its hop distance from the seed (0 at the seed itself).
type ContextEntity struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties,omitempty"`
	Distance   int            `json:"distance"`
}

type CommunityMember struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Labels []string `json:"labels"`
}

// Community is a cluster computed by the store's Louvain procedure.
type Community struct {
	ID      int64             `json:"id"`
	Members []CommunityMember `json:"members"`
}

// GraphStats summarizes one BuildAccountGraph run.
type GraphStats struct {
	Account              string `json:"account"`
	PeopleWritten        int    `json:"people_written"`
	OrganizationsWritten int    `json:"organizations_written"`
	TopicsWritten        int    `json:"topics_written"`
	EventsWritten        int    `json:"events_written"`
	RelationshipsWritten int    `json:"relationships_written"`
	RelationshipsSkipped int    `json:"relationships_skipped,omitempty"`
	TotalNodes           int64  `json:"total_nodes"`
	TotalRelationships   int64  `json:"total_relationships"`
}

// traversalFilter restricts path expansion to the reasoning edges. Account
// anchor edges are not traversed, so hops stay within the entity graph
// rather than bouncing through the Account node.
var traversalFilter = strings.Join([]string{
	extract.RelParticipatedIn.String(),
	extract.RelDiscussed.String(),
	extract.RelWorksFor.String(),
	extract.RelMentionedIn.String(),
}, "|")

const (
	writeTimeout = 30 * time.Second
	readTimeout  = 15 * time.Second
)

type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.Breaker
	writePolicy retry.Policy
	log         *zap.Logger
}

func NewClient(uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	log := logger.Named("neo4j")

	cb := circuitbreaker.New("neo4j", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         20 * time.Second,
		MaxProbes:        3,
		Logger:           log,
	})

	// Graph writes are idempotent upserts, so retrying them is safe. Reads
	// never retry; their callers degrade instead.
	writePolicy := retry.Policy{
		Attempts:   3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   3 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
		Logger:     log,
	}

	log.Info("Neo4j client initialized", zap.String("uri", uri), zap.String("database", database))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		writePolicy: writePolicy,
		log:         log,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func (c *Client) newSession(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
}

// InitSchema applies uniqueness constraints and lookup indexes. Individual
// statement failures are logged and skipped so a partially provisioned
// store does not block startup.
func (c *Client) InitSchema(ctx context.Context) error {
	statements := []string{
		"CREATE CONSTRAINT person_id IF NOT EXISTS FOR (p:Person) REQUIRE p.id IS UNIQUE",
		"CREATE CONSTRAINT organization_id IF NOT EXISTS FOR (o:Organization) REQUIRE o.id IS UNIQUE",
		"CREATE CONSTRAINT topic_id IF NOT EXISTS FOR (t:Topic) REQUIRE t.id IS UNIQUE",
		"CREATE CONSTRAINT event_id IF NOT EXISTS FOR (e:Event) REQUIRE e.id IS UNIQUE",
		"CREATE CONSTRAINT account_id IF NOT EXISTS FOR (a:Account) REQUIRE a.id IS UNIQUE",
		"CREATE INDEX person_name IF NOT EXISTS FOR (p:Person) ON (p.name)",
		"CREATE INDEX organization_name IF NOT EXISTS FOR (o:Organization) ON (o.name)",
		"CREATE INDEX topic_name IF NOT EXISTS FOR (t:Topic) ON (t.name)",
		"CREATE INDEX event_date IF NOT EXISTS FOR (e:Event) ON (e.date)",
		"CREATE INDEX account_name IF NOT EXISTS FOR (a:Account) ON (a.name)",
	}

	session := c.newSession(ctx)
	defer session.Close(ctx)

	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			c.log.Warn("Schema statement skipped", zap.Error(err))
		}
	}

	c.log.Info("Neo4j schema initialized")
	return nil
}

// BuildAccountGraph upserts the extracted entity set under the account node
// in one transaction. Every node and edge write is a MERGE keyed by id, so
// replaying the same set converges and the whole call is safe to retry.
func (c *Client) BuildAccountGraph(ctx context.Context, account string, set extract.EntitySet) (*GraphStats, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	stats := &GraphStats{Account: account}

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.writePolicy, func() error {
			session := c.newSession(ctx)
			defer session.Close(ctx)

			_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
				written, err := c.writeAccountGraph(ctx, tx, account, set)
				if err != nil {
					return nil, err
				}
				*stats = *written
				return nil, nil
			})
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build account graph: %w", err)
	}

	c.log.Info("Account graph built",
		zap.String("account", account),
		zap.Int("people", stats.PeopleWritten),
		zap.Int("organizations", stats.OrganizationsWritten),
		zap.Int("topics", stats.TopicsWritten),
		zap.Int("events", stats.EventsWritten),
		zap.Int("relationships", stats.RelationshipsWritten),
		zap.Int64("total_nodes", stats.TotalNodes),
	)

	return stats, nil
}

func (c *Client) writeAccountGraph(ctx context.Context, tx neo4j.ManagedTransaction, account string, set extract.EntitySet) (*GraphStats, error) {
	stats := &GraphStats{Account: account}

	if _, err := tx.Run(ctx,
		`MERGE (a:Account {id: $account})
		 SET a.name = $account, a.updated_at = datetime()`,
		map[string]any{"account": account},
	); err != nil {
		return nil, fmt.Errorf("failed to upsert account node: %w", err)
	}

	for _, person := range set.People {
		_, err := tx.Run(ctx,
			`MERGE (p:Person {id: $id})
			 SET p.name = $name, p.email = $email, p.role = $role,
			     p.department = $department, p.organization = $organization,
			     p.influence = $influence, p.updated_at = datetime()
			 WITH p
			 MATCH (a:Account {id: $account})
			 MERGE (p)-[:ASSOCIATED_WITH]->(a)`,
			map[string]any{
				"id":           person.ID,
				"name":         person.Name,
				"email":        person.Email,
				"role":         person.Role,
				"department":   person.Department,
				"organization": person.Organization,
				"influence":    person.Influence,
				"account":      account,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert person %s: %w", person.ID, err)
		}
		stats.PeopleWritten++
	}

	for _, org := range set.Organizations {
		_, err := tx.Run(ctx,
			`MERGE (o:Organization {id: $id})
			 SET o.name = $name, o.type = $type, o.industry = $industry,
			     o.updated_at = datetime()
			 WITH o
			 MATCH (a:Account {id: $account})
			 MERGE (o)-[:RELATED_TO]->(a)`,
			map[string]any{
				"id":       org.ID,
				"name":     org.Name,
				"type":     org.Type,
				"industry": org.Industry,
				"account":  account,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert organization %s: %w", org.ID, err)
		}
		stats.OrganizationsWritten++
	}

	for _, topic := range set.Topics {
		_, err := tx.Run(ctx,
			`MERGE (t:Topic {id: $id})
			 SET t.name = $name, t.category = $category,
			     t.importance = $importance, t.updated_at = datetime()
			 WITH t
			 MATCH (a:Account {id: $account})
			 MERGE (t)-[:DISCUSSED_IN]->(a)`,
			map[string]any{
				"id":         topic.ID,
				"name":       topic.Name,
				"category":   topic.Category,
				"importance": topic.Importance,
				"account":    account,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert topic %s: %w", topic.ID, err)
		}
		stats.TopicsWritten++
	}

	for _, event := range set.Events {
		_, err := tx.Run(ctx,
			`MERGE (e:Event {id: $id})
			 SET e.type = $type, e.date = $date, e.subject = $subject,
			     e.summary = $summary, e.sentiment = $sentiment,
			     e.updated_at = datetime()
			 WITH e
			 MATCH (a:Account {id: $account})
			 MERGE (e)-[:OCCURRED_IN]->(a)`,
			map[string]any{
				"id":        event.ID,
				"type":      event.Type,
				"date":      event.Date,
				"subject":   event.Subject,
				"summary":   event.Summary,
				"sentiment": event.Sentiment,
				"account":   account,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert event %s: %w", event.ID, err)
		}
		stats.EventsWritten++
	}

	for _, rel := range set.Relationships {
		if !rel.Type.Valid() {
			c.log.Warn("Skipping relationship with invalid type",
				zap.String("type", rel.Type.String()),
				zap.String("source", rel.Source),
			)
			stats.RelationshipsSkipped++
			continue
		}
		// The edge type is validated against the closed vocabulary above;
		// only then is it interpolated, since Cypher cannot parameterize
		// relationship types.
		query := fmt.Sprintf(
			`MATCH (source {id: $source_id}), (target {id: $target_id})
			 MERGE (source)-[r:%s]->(target)
			 SET r.strength = $strength, r.context = $context, r.updated_at = datetime()`,
			rel.Type,
		)
		_, err := tx.Run(ctx, query, map[string]any{
			"source_id": rel.Source,
			"target_id": rel.Target,
			"strength":  rel.Strength,
			"context":   rel.Context,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upsert relationship %s->%s: %w", rel.Source, rel.Target, err)
		}
		stats.RelationshipsWritten++
	}

	result, err := tx.Run(ctx,
		`MATCH (a:Account {id: $account})
		 OPTIONAL MATCH (a)<-[r1]-(n)
		 OPTIONAL MATCH (n)-[r2]-(m)
		 RETURN count(DISTINCT n) AS node_count,
		        count(DISTINCT r1) + count(DISTINCT r2) AS relationship_count`,
		map[string]any{"account": account},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute graph stats: %w", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph stats: %w", err)
	}
	if nodes, ok := record.Get("node_count"); ok {
		stats.TotalNodes, _ = nodes.(int64)
	}
	if rels, ok := record.Get("relationship_count"); ok {
		stats.TotalRelationships, _ = rels.(int64)
	}

	return stats, nil
}

// PathContext returns every entity reachable from the seed within maxHops
// over the traversal filter, breadth-first, annotated with hop distance.
// The seed itself is included at distance 0. Requires the APOC plugin.
func (c *Client) PathContext(ctx context.Context, account, seedID string, maxHops int) ([]ContextEntity, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	query := `
		MATCH (a:Account {id: $account})<-[:ASSOCIATED_WITH|RELATED_TO|DISCUSSED_IN|OCCURRED_IN]-(start)
		WHERE start.id = $seed_id
		CALL apoc.path.expandConfig(start, {
			relationshipFilter: $rel_filter,
			minLevel: 0,
			maxLevel: $max_hops,
			bfs: true
		}) YIELD path
		RETURN last(nodes(path)) AS entity, length(path) AS distance
		ORDER BY distance
	`

	var entities []ContextEntity
	err := c.cb.Execute(ctx, func() error {
		session := c.newSession(ctx)
		defer session.Close(ctx)

		result, err := session.Run(ctx, query, map[string]any{
			"account":    account,
			"seed_id":    seedID,
			"rel_filter": traversalFilter,
			"max_hops":   maxHops,
		})
		if err != nil {
			return fmt.Errorf("path expansion failed: %w", err)
		}

		seen := make(map[string]bool)
		for result.Next(ctx) {
			record := result.Record()
			rawNode, _ := record.Get("entity")
			rawDistance, _ := record.Get("distance")

			node, ok := rawNode.(dbtype.Node)
			if !ok {
				continue
			}
			entity := nodeToContextEntity(node)
			if entity.ID == "" || seen[entity.ID] {
				continue
			}
			seen[entity.ID] = true
			if distance, ok := rawDistance.(int64); ok {
				entity.Distance = int(distance)
			}
			entities = append(entities, entity)
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}

	return entities, nil
}

// DetectCommunities projects the account's entity graph, streams Louvain
// assignments, and drops the projection. Requires the GDS plugin; callers
// degrade to no communities when it is unavailable.
func (c *Client) DetectCommunities(ctx context.Context, account string) ([]Community, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	graphName := "account-graph-" + account

	var communities []Community
	err := c.cb.Execute(ctx, func() error {
		session := c.newSession(ctx)
		defer session.Close(ctx)

		_, err := session.Run(ctx,
			`CALL gds.graph.project($graph_name,
				['Person', 'Organization', 'Topic'],
				['PARTICIPATED_IN', 'DISCUSSED', 'WORKS_FOR', 'MENTIONED_IN'])`,
			map[string]any{"graph_name": graphName},
		)
		if err != nil {
			return fmt.Errorf("graph projection failed: %w", err)
		}
		defer c.dropProjection(ctx, session, graphName)

		result, err := session.Run(ctx,
			`CALL gds.louvain.stream($graph_name)
			 YIELD nodeId, communityId
			 RETURN gds.util.asNode(nodeId) AS node, communityId`,
			map[string]any{"graph_name": graphName},
		)
		if err != nil {
			return fmt.Errorf("community detection failed: %w", err)
		}

		grouped := make(map[int64]*Community)
		var order []int64
		for result.Next(ctx) {
			record := result.Record()
			rawNode, _ := record.Get("node")
			rawID, _ := record.Get("communityId")

			node, ok := rawNode.(dbtype.Node)
			if !ok {
				continue
			}
			communityID, ok := rawID.(int64)
			if !ok {
				continue
			}

			community, exists := grouped[communityID]
			if !exists {
				community = &Community{ID: communityID}
				grouped[communityID] = community
				order = append(order, communityID)
			}
			community.Members = append(community.Members, CommunityMember{
				ID:     stringProp(node, "id"),
				Name:   stringProp(node, "name"),
				Labels: node.Labels,
			})
		}
		if err := result.Err(); err != nil {
			return fmt.Errorf("community stream failed: %w", err)
		}

		communities = make([]Community, 0, len(order))
		for _, id := range order {
			communities = append(communities, *grouped[id])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug("Communities detected",
		zap.String("account", account),
		zap.Int("communities", len(communities)),
	)

	return communities, nil
}

func (c *Client) dropProjection(ctx context.Context, session neo4j.SessionWithContext, graphName string) {
	if _, err := session.Run(ctx,
		"CALL gds.graph.drop($graph_name, false)",
		map[string]any{"graph_name": graphName},
	); err != nil {
		c.log.Warn("Failed to drop graph projection", zap.String("graph", graphName), zap.Error(err))
	}
}

func nodeToContextEntity(node dbtype.Node) ContextEntity {
	return ContextEntity{
		ID:         stringProp(node, "id"),
		Name:       stringProp(node, "name"),
		Labels:     node.Labels,
		Properties: node.Props,
	}
}

func stringProp(node dbtype.Node, key string) string {
	if value, ok := node.Props[key].(string); ok {
		return value
	}
	return ""
}
