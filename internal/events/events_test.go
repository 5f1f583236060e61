package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"plantshot/internal/infra"
)

func TestSSEWriterFramesEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)

	success, failed := 2, 1
	w.Send(Event{Type: TypeBatchStart, BatchID: "b1", TotalJobs: 3})
	w.Send(Event{Type: TypeBatchComplete, BatchID: "b1", SuccessCount: &success, FailedCount: &failed})

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}
	if !rec.Flushed {
		t.Fatalf("expected flush")
	}
	frames := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	if len(frames) != 2 {
		t.Fatalf("frames = %q", rec.Body.String())
	}
	if !strings.HasPrefix(frames[0], "event: batch-start\ndata: ") {
		t.Fatalf("frame[0] = %q", frames[0])
	}
	var got Event
	if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.SplitN(frames[1], "\n", 2)[1], "data: ")), &got); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if got.SuccessCount == nil || *got.SuccessCount != 2 || *got.FailedCount != 1 {
		t.Fatalf("event = %+v", got)
	}
}

type brokenWriter struct {
	http.ResponseWriter
	writes int
}

func (b *brokenWriter) Write(p []byte) (int, error) {
	b.writes++
	return 0, errors.New("client gone")
}

func TestSSEWriterStopsAfterWriteError(t *testing.T) {
	bw := &brokenWriter{ResponseWriter: httptest.NewRecorder()}
	w := NewSSEWriter(bw)

	w.Send(Event{Type: TypeJobStart})
	w.Send(Event{Type: TypeJobComplete})

	if bw.writes != 1 {
		t.Fatalf("writes = %d, want 1", bw.writes)
	}
	if w.Err() == nil {
		t.Fatalf("expected stored error")
	}
}

func TestFanoutPreservesOrderAndSkipsNil(t *testing.T) {
	var seen []string
	h := Fanout(
		func(ev Event) { seen = append(seen, "a:"+string(ev.Type)) },
		nil,
		func(ev Event) { seen = append(seen, "b:"+string(ev.Type)) },
	)
	h(Event{Type: TypeJobStart})
	h(Event{Type: TypeJobError})

	want := "a:job-start,b:job-start,a:job-error,b:job-error"
	if got := strings.Join(seen, ","); got != want {
		t.Fatalf("order = %s, want %s", got, want)
	}
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysByBatch(t *testing.T) {
	fw := &fakeWriter{}
	p := newKafkaPublisher(fw, nil)
	ts := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	p.Handler()(Event{Type: TypeJobComplete, BatchID: "batch-9", ImageType: "tray", Timestamp: ts})

	if len(fw.msgs) != 1 {
		t.Fatalf("messages = %d", len(fw.msgs))
	}
	msg := fw.msgs[0]
	if string(msg.Key) != "batch-9" || !msg.Time.Equal(ts) {
		t.Fatalf("message = %+v", msg)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "job-complete" {
		t.Fatalf("headers = %+v", msg.Headers)
	}
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil || ev.ImageType != "tray" {
		t.Fatalf("value = %s err = %v", msg.Value, err)
	}
}

func TestKafkaPublisherLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := infra.Logger(zerolog.New(&buf))
	p := newKafkaPublisher(&fakeWriter{err: errors.New("broker down")}, &logger)

	p.Publish(Event{Type: TypeBatchStart, BatchID: "b"})

	if !strings.Contains(buf.String(), "kafka publish failed") {
		t.Fatalf("log = %q", buf.String())
	}
}
