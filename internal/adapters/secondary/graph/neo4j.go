package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/jupiterclapton/relation-service/internal/core/domain"
)

// Neo4jProjection maintient la vue graphe des relations de follow, alimentée
// par les événements relations.changed. Le store Postgres reste autoritatif ;
// le graphe sert les requêtes de voisinage (suggestions par follows mutuels).
type Neo4jProjection struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jProjection(driver neo4j.DriverWithContext) *Neo4jProjection {
	return &Neo4jProjection{driver: driver}
}

// EnsureSchema crée la contrainte d'unicité sur User.id (crée aussi un index).
func (r *Neo4jProjection) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`
		_, err := tx.Run(ctx, query, nil)
		return nil, err
	})
	return err
}

// ApplyRelationChanged rejoue un événement dans le graphe. MERGE côté follow
// rend le replay idempotent ; l'unfollow supprime la flèche si elle existe.
func (r *Neo4jProjection) ApplyRelationChanged(ctx context.Context, ev domain.RelationChanged) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if ev.Following {
			query := `
				MERGE (a:User {id: $actorId})
				MERGE (b:User {id: $targetId})
				MERGE (a)-[r:FOLLOWS]->(b)
				ON CREATE SET r.created_at = datetime()
			`
			_, err := tx.Run(ctx, query, map[string]any{
				"actorId":  ev.ActorID,
				"targetId": ev.TargetID,
			})
			return nil, err
		}

		query := `
			MATCH (a:User {id: $actorId})-[r:FOLLOWS]->(b:User {id: $targetId})
			DELETE r
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"actorId":  ev.ActorID,
			"targetId": ev.TargetID,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: apply relation changed: %w", err)
	}
	return nil
}

// SuggestedCreators classe les comptes non encore suivis par nombre de
// follows mutuels (les comptes suivis par ceux que je suis déjà).
func (r *Neo4jProjection) SuggestedCreators(ctx context.Context, userID string, limit int) ([]domain.Suggestion, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (me:User {id: $userId})-[:FOLLOWS]->(mid:User)-[:FOLLOWS]->(rec:User)
			WHERE rec.id <> $userId AND NOT (me)-[:FOLLOWS]->(rec)
			RETURN rec.id AS userId, count(DISTINCT mid) AS mutual
			ORDER BY mutual DESC, userId
			LIMIT $limit
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"userId": userID,
			"limit":  limit,
		})
		if err != nil {
			return nil, err
		}

		var out []domain.Suggestion
		for res.Next(ctx) {
			rec := res.Record()
			id, _ := rec.Get("userId")
			mutual, _ := rec.Get("mutual")
			out = append(out, domain.Suggestion{
				UserID: id.(string),
				Mutual: mutual.(int64),
			})
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("graph: suggested creators: %w", err)
	}

	return result.([]domain.Suggestion), nil
}
