package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// drain collects the frames already buffered on ch.
func drain(ch <-chan []byte) []string {
	var out []string
	for {
		select {
		case raw, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, string(raw))
		default:
			return out
		}
	}
}

func TestSubscribeCancel(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.Clients() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch, cancel := b.Subscribe("")
	if b.Clients() != 1 {
		t.Fatalf("expected 1 client")
	}
	cancel()
	cancel()
	if b.Clients() != 0 {
		t.Fatalf("expected 0 clients after cancel")
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after cancel")
	}
}

func TestPublishGrade_QuestionThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch, cancel := b.Subscribe("")
	defer cancel()

	b.PublishGrade(GradeEvent{Kind: GradeRecorded, ID: "1", QuestionID: "q1", Score: 75})
	b.PublishGrade(GradeEvent{Kind: GradeRecorded, ID: "2", QuestionID: "q1", Score: 100})
	b.PublishGrade(GradeEvent{Kind: GradeDeleted, ID: "3", QuestionID: "q2"})

	questionCount, gradeCount := 0, 0
	var sawDeleted bool
	for _, s := range drain(ch) {
		switch {
		case strings.Contains(s, "event: "+QuestionUpdated):
			questionCount++
		default:
			gradeCount++
			if strings.Contains(s, "event: "+GradeDeleted) {
				sawDeleted = true
			}
		}
	}

	if gradeCount != 3 {
		t.Errorf("grade events = %d, want 3", gradeCount)
	}
	if questionCount != 2 {
		t.Errorf("question events = %d, want 2 (one per question)", questionCount)
	}
	if !sawDeleted {
		t.Error("missing grade.deleted event")
	}
}

func TestSubscribe_QuestionFilter(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	q1, cancel := b.Subscribe("q1")
	defer cancel()

	b.PublishGrade(GradeEvent{Kind: GradeRecorded, ID: "a", QuestionID: "q2", Score: 10})
	b.PublishGrade(GradeEvent{Kind: GradeRecorded, ID: "b", QuestionID: "q1", Score: 90})

	frames := drain(q1)
	if len(frames) != 2 {
		t.Fatalf("frames = %q, want grade + question.updated for q1", frames)
	}
	for _, f := range frames {
		if strings.Contains(f, `"q2"`) {
			t.Errorf("q1 subscriber received %q", f)
		}
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events?questionId=q1", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.Clients() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishGrade(GradeEvent{Kind: GradeRecorded, ID: "g1", QuestionID: "q1", Score: 50})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: grade.recorded") || !strings.Contains(body, `"score":50`) {
		t.Errorf("handler output missing event: %q", body)
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}
	if b.Clients() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch, cancel := b.Subscribe("")
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.PublishGrade(GradeEvent{Kind: GradeRecorded, QuestionID: "q"})
	}
	if n := len(drain(ch)); n != subscriberBuffer {
		t.Errorf("buffered frames = %d, want %d", n, subscriberBuffer)
	}
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch, _ := b.Subscribe("")

	b.Close()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if b.Clients() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	late, _ := b.Subscribe("")
	if _, ok := <-late; ok {
		t.Error("subscribe after close should return a closed channel")
	}
	b.PublishGrade(GradeEvent{Kind: GradeRecorded, QuestionID: "q"})
}
