// Package neo4j publishes a diagram to a Neo4j database.
//
// Each node becomes a (:Person) keyed by project and id. Parent links become
// (:Person)-[:PARENT_OF]->(:Person) and the remaining edges become
// [:CONNECTED] relationships carrying their style. Publishing replaces the
// project's previous graph in a single write transaction, so readers never
// see a half-written tree.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	apperr "github.com/ammusto/tafarru3/pkg/errors"
	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/retry"
)

// connectAttempts and connectDelay bound how long Open waits for a server
// that is still starting.
const (
	connectAttempts = 3
	connectDelay    = 500 * time.Millisecond
)

// Config configures [Open].
type Config struct {
	URI      string
	Username string
	Password string
	// Database selects the target database. Empty uses the server default.
	Database string
}

// Stats summarizes one publish.
type Stats struct {
	People      int
	Parents     int
	Connections int
	Removed     int
}

// Sink writes diagrams to Neo4j.
type Sink struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *log.Logger
}

// Open connects to Neo4j and verifies the server is reachable.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Sink, error) {
	if cfg.URI == "" {
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "neo4j uri is required")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "neo4j driver")
	}
	err = retry.Do(ctx, connectAttempts, connectDelay, func() error {
		return retry.Transient(driver.VerifyConnectivity(ctx))
	})
	if err != nil {
		driver.Close(ctx)
		return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "neo4j connectivity")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Sink{driver: driver, database: cfg.Database, logger: logger}, nil
}

// Close releases the driver.
func (s *Sink) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

const (
	deleteProject = `MATCH (p:Person {project: $project}) DETACH DELETE p`

	mergePeople = `UNWIND $rows AS row
MERGE (p:Person {project: $project, id: row.id})
SET p += row.props`

	mergeParents = `UNWIND $rows AS row
MATCH (a:Person {project: $project, id: row.parent})
MATCH (b:Person {project: $project, id: row.child})
MERGE (a)-[r:PARENT_OF]->(b)
SET r += row.props`

	mergeConnections = `UNWIND $rows AS row
MATCH (a:Person {project: $project, id: row.source})
MATCH (b:Person {project: $project, id: row.target})
MERGE (a)-[r:CONNECTED {id: row.id}]->(b)
SET r += row.props`
)

type statement struct {
	cypher string
	params map[string]any
}

// Publish replaces the project's graph with doc.
func (s *Sink) Publish(ctx context.Context, project string, doc graph.Document) (Stats, error) {
	if err := apperr.ValidateProjectName(project); err != nil {
		return Stats{}, err
	}
	stmts := statements(project, doc)

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	res, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		var removed int
		for i, st := range stmts {
			result, err := tx.Run(ctx, st.cypher, st.params)
			if err != nil {
				return nil, err
			}
			summary, err := result.Consume(ctx)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				removed = summary.Counters().NodesDeleted()
			}
		}
		return removed, nil
	})
	if err != nil {
		return Stats{}, apperr.Wrap(apperr.ErrCodeStorage, err, "publish %s", project)
	}

	stats := countRows(stmts)
	stats.Removed = res.(int)
	s.logger.Info("published to neo4j",
		"project", project,
		"people", stats.People,
		"parents", stats.Parents,
		"connections", stats.Connections,
		"removed", stats.Removed)
	return stats, nil
}

// statements builds the delete and merge statements for a publish. The
// delete always comes first.
func statements(project string, doc graph.Document) []statement {
	people := make([]any, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		people = append(people, map[string]any{"id": n.ID, "props": personProps(n)})
	}

	var parents, connections []any
	for _, e := range doc.Edges {
		if parent, child, ok := e.ParentChild(); ok {
			parents = append(parents, map[string]any{
				"parent": parent,
				"child":  child,
				"props":  edgeProps(e),
			})
			continue
		}
		connections = append(connections, map[string]any{
			"id":     e.ID,
			"source": e.Source,
			"target": e.Target,
			"props":  edgeProps(e),
		})
	}

	base := func(rows []any) map[string]any {
		if rows == nil {
			rows = []any{}
		}
		return map[string]any{"project": project, "rows": rows}
	}
	return []statement{
		{cypher: deleteProject, params: map[string]any{"project": project}},
		{cypher: mergePeople, params: base(people)},
		{cypher: mergeParents, params: base(parents)},
		{cypher: mergeConnections, params: base(connections)},
	}
}

func personProps(n graph.Node) map[string]any {
	d := n.Data
	props := map[string]any{
		"name":        d.DisplayName(),
		"x":           n.Position.X,
		"y":           n.Position.Y,
		"shape":       string(d.Shape),
		"fillColor":   d.FillColor,
		"borderStyle": string(d.BorderStyle),
		"borderWidth": d.BorderWidth,
		"borderColor": d.BorderColor,
	}
	optional := map[string]string{
		"label":     d.Label,
		"kunya":     d.Kunya,
		"nasab":     d.Nasab,
		"nisba":     d.Nisba,
		"shuhra":    d.Shuhra,
		"deathDate": d.DeathDate,
		"biography": d.Biography,
	}
	for k, v := range optional {
		if v != "" {
			props[k] = v
		}
	}
	if n.Size != nil {
		props["width"] = n.Size.Width
		props["height"] = n.Size.Height
	}
	return props
}

func edgeProps(e graph.Edge) map[string]any {
	d := e.Data
	props := map[string]any{
		"sourceHandle": string(e.SourceHandle),
		"targetHandle": string(e.TargetHandle),
		"lineStyle":    string(d.LineStyle),
		"lineWidth":    d.LineWidth,
		"lineColor":    d.LineColor,
		"arrowStyle":   string(d.ArrowStyle),
		"curveStyle":   string(d.CurveStyle),
	}
	if d.Label != "" {
		props["label"] = d.Label
	}
	return props
}

func countRows(stmts []statement) Stats {
	n := func(i int) int { return len(stmts[i].params["rows"].([]any)) }
	return Stats{People: n(1), Parents: n(2), Connections: n(3)}
}

func (s Stats) String() string {
	return fmt.Sprintf("%d people, %d parent links, %d connections", s.People, s.Parents, s.Connections)
}
