package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"cardanoScope/internal/model"
)

const (
	// OutputStreamName is the JetStream stream carrying normalized outputs.
	OutputStreamName = "OUTPUTS"

	// OutputSubjectPrefix is followed by the era name, e.g. outputs.babbage.
	OutputSubjectPrefix = "outputs."

	outputStreamRetention = 7 * 24 * time.Hour
)

// Publisher is the subset of jetstream.JetStream used by NatsSink.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NatsSink publishes each normalized output to JetStream.
type NatsSink struct {
	nc     *nats.Conn
	js     Publisher
	logger *zap.Logger
}

// NewNatsSink connects to url and ensures the output stream exists.
func NewNatsSink(ctx context.Context, url string, logger *zap.Logger) (*NatsSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("cardano-indexer"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	if err := ensureOutputStream(ctx, js, logger); err != nil {
		nc.Close()
		return nil, err
	}

	logger.Info("nats sink ready", zap.String("stream", OutputStreamName))
	return &NatsSink{nc: nc, js: js, logger: logger}, nil
}

// NewNatsSinkWithPublisher builds a sink on top of an existing publisher.
func NewNatsSinkWithPublisher(js Publisher, logger *zap.Logger) *NatsSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NatsSink{js: js, logger: logger}
}

func ensureOutputStream(ctx context.Context, js jetstream.JetStream, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := js.Stream(ctx, OutputStreamName); err == nil {
		return nil
	}

	logger.Info("creating jetstream stream", zap.String("stream", OutputStreamName))
	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        OutputStreamName,
		Description: "Normalized Cardano transaction outputs",
		Subjects:    []string{OutputSubjectPrefix + "*"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      outputStreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	return nil
}

// OutputSubject returns the subject an output is published on.
func OutputSubject(output model.NormalizedOutput) string {
	era := strings.ToLower(output.Era)
	if era == "" {
		era = "unknown"
	}
	return OutputSubjectPrefix + era
}

// PutOutputBatch publishes outputs in order and stops at the first failure,
// so the caller does not checkpoint a partially published batch.
func (s *NatsSink) PutOutputBatch(ctx context.Context, outputs []model.NormalizedOutput) error {
	for _, output := range outputs {
		data, err := json.Marshal(output)
		if err != nil {
			return fmt.Errorf("marshal output %s#%d: %w", output.TxHash, output.OutputIndex, err)
		}
		subject := OutputSubject(output)
		// Deduplicate redeliveries of the same output within the stream window.
		msgID := fmt.Sprintf("%s#%d", output.TxHash, output.OutputIndex)
		if _, err := s.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID)); err != nil {
			return fmt.Errorf("publish %s: %w", subject, err)
		}
	}
	if len(outputs) > 0 {
		s.logger.Debug("published output batch", zap.Int("count", len(outputs)))
	}
	return nil
}

func (s *NatsSink) Close() error {
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}
