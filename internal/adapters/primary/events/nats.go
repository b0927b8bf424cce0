package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/relation-service/internal/core/domain"
	"github.com/jupiterclapton/relation-service/internal/core/ports"
)

// RelationEventHandler consomme relations.changed et alimente les deux
// projections : le graphe Neo4j et le fil de notifications Redis.
type RelationEventHandler struct {
	graph    ports.GraphProjection
	notifier ports.NotificationFeed
}

func NewRelationEventHandler(graph ports.GraphProjection, notifier ports.NotificationFeed) *RelationEventHandler {
	return &RelationEventHandler{graph: graph, notifier: notifier}
}

func (h *RelationEventHandler) HandleRelationChanged(msg *nats.Msg) {
	// Extraction du contexte de trace depuis les headers NATS
	ctx := context.Background()
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(msg.Header))

	tracer := otel.Tracer("relation-service")
	ctx, span := tracer.Start(ctx, "process_relation_changed", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var ev domain.RelationChanged
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		span.RecordError(err)
		slog.Error("❌ Invalid event format", "error", err)
		return
	}

	slog.Info("📨 Relation event received", "actor", ev.ActorID, "target", ev.TargetID, "following", ev.Following)

	if err := h.graph.ApplyRelationChanged(ctx, ev); err != nil {
		span.RecordError(err)
		slog.Error("❌ Graph projection failed", "error", err)
		// La projection rejouera depuis le stream : on ne bloque pas la suite
	}

	// Notification uniquement sur un follow (pas sur un unfollow)
	if ev.Following {
		if err := h.notifier.PushFollow(ctx, ev.TargetID, ev.ActorID, ev); err != nil {
			span.RecordError(err)
			slog.Error("❌ Failed to push notification", "error", err)
		}
	}
}
