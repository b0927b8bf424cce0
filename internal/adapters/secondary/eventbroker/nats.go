package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jupiterclapton/relation-service/internal/core/domain"
)

const (
	StreamName     = "RELATIONS"
	SubjectPattern = "relations.>"

	SubjectRelationChanged = "relations.changed"
)

type NatsBroker struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// NewNatsBroker initialise la connexion et s'assure que le Stream existe (idempotent).
func NewNatsBroker(url string) (*NatsBroker, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage, // persistance disque : les projections peuvent rattraper
		Replicas: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return &NatsBroker{conn: nc, js: js}, nil
}

// Conn expose la connexion brute pour les subscribers (adapters primaires).
func (n *NatsBroker) Conn() *nats.Conn {
	return n.conn
}

func (n *NatsBroker) Close() {
	n.conn.Drain()
}

func (n *NatsBroker) PublishRelationChanged(ctx context.Context, ev domain.RelationChanged) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: SubjectRelationChanged,
		Header:  traceHeaders(ctx), // le consumer ré-extrait le contexte de trace
		Data:    data,
	}

	// JetStream garantit que le serveur a bien reçu et persisté le message
	if _, err := n.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	return nil
}

// traceHeaders propage le contexte de trace dans les headers NATS pour que
// la projection graphe et le feed de notifications rejoignent la même trace.
func traceHeaders(ctx context.Context) nats.Header {
	h := nats.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
	return h
}

// NoopPublisher sert quand le broker est absent (tests, dev sans NATS).
type NoopPublisher struct{}

func (NoopPublisher) PublishRelationChanged(ctx context.Context, ev domain.RelationChanged) error {
	return nil
}
