package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardanoScope/internal/model"
)

type publishedMsg struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMsg
	failAt   int
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil && len(f.messages) == f.failAt {
		return nil, f.err
	}
	f.messages = append(f.messages, publishedMsg{subject: subject, data: data})
	return &jetstream.PubAck{Stream: OutputStreamName, Sequence: uint64(len(f.messages))}, nil
}

func sampleOutputs() []model.NormalizedOutput {
	return []model.NormalizedOutput{
		{Slot: 10, TxHash: "aa", OutputIndex: 0, Era: "babbage", Lovelace: 2000000},
		{Slot: 11, TxHash: "bb", OutputIndex: 1, Era: "mary", Lovelace: 1500000, PaymentCred: "cc"},
	}
}

func readLines(t *testing.T, path string) []model.NormalizedOutput {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var out []model.NormalizedOutput
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var output model.NormalizedOutput
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &output))
		out = append(out, output)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestJsonlSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "outputs.jsonl")
	sink := NewJsonlSink(path)
	ctx := context.Background()

	require.NoError(t, sink.PutOutputBatch(ctx, sampleOutputs()))
	require.NoError(t, sink.PutOutputBatch(ctx, nil))
	require.NoError(t, sink.PutOutputBatch(ctx, sampleOutputs()[:1]))
	require.NoError(t, sink.Close())

	got := readLines(t, path)
	require.Len(t, got, 3)
	assert.Equal(t, "aa", got[0].TxHash)
	assert.Equal(t, "cc", got[1].PaymentCred)
	assert.Equal(t, uint64(2000000), got[2].Lovelace)
}

func TestJsonlSinkCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outputs.jsonl")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewJsonlSink(path).PutOutputBatch(ctx, sampleOutputs())
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNatsSinkSubjects(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewNatsSinkWithPublisher(pub, nil)

	require.NoError(t, sink.PutOutputBatch(context.Background(), sampleOutputs()))
	require.Len(t, pub.messages, 2)
	assert.Equal(t, "outputs.babbage", pub.messages[0].subject)
	assert.Equal(t, "outputs.mary", pub.messages[1].subject)

	var decoded model.NormalizedOutput
	require.NoError(t, json.Unmarshal(pub.messages[1].data, &decoded))
	assert.Equal(t, "bb", decoded.TxHash)
	require.NoError(t, sink.Close())
}

func TestNatsSinkStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("no responders")
	pub := &fakePublisher{failAt: 1, err: boom}
	sink := NewNatsSinkWithPublisher(pub, nil)

	outputs := append(sampleOutputs(), model.NormalizedOutput{TxHash: "dd", Era: "conway"})
	err := sink.PutOutputBatch(context.Background(), outputs)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, pub.messages, 1)
}

func TestOutputSubjectUnknownEra(t *testing.T) {
	assert.Equal(t, "outputs.unknown", OutputSubject(model.NormalizedOutput{}))
	assert.Equal(t, "outputs.alonzo", OutputSubject(model.NormalizedOutput{Era: "Alonzo"}))
}
