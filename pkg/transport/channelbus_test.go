package transport

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestChannelBusPublishDeliversToSubscriber(t *testing.T) {
	bus := NewChannelBus(zap.NewNop())
	ctx := context.Background()

	ch, err := bus.Subscribe(ctx, []string{PublishPrefixQuote + "AUD/USD.FXCM"})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	env := NewEnvelope([]byte("tick"), ContentTypeJSON, EncodingUTF8, "")
	if err := bus.Publish(ctx, PublishPrefixQuote+"AUD/USD.FXCM", env); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-ch:
		if string(got.Payload) != "tick" {
			t.Errorf("expected payload 'tick', got %s", got.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestChannelBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewChannelBus(zap.NewNop())
	ctx := context.Background()

	topic := PublishPrefixBar + "AUD/USD.FXCM-1-MINUTE-MID"
	ch, err := bus.Subscribe(ctx, []string{topic})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Unsubscribe(ctx, []string{topic}); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	if err := bus.Publish(ctx, topic, NewEnvelope([]byte("x"), ContentTypeJSON, EncodingUTF8, "")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected no delivery after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
		// no delivery, as expected
	}
}

func TestChannelBusRequestResponse(t *testing.T) {
	bus := NewChannelBus(zap.NewNop())
	ctx := context.Background()

	reqCh, err := bus.Subscribe(ctx, []string{TopicRequestQuoteTicks})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	go func() {
		req := <-reqCh
		reply := NewEnvelope([]byte("quote-tick-payload"), ContentTypeJSON, EncodingUTF8, req.MessageId)
		_ = bus.Respond(ctx, req.MessageId, reply)
	}()

	request := NewEnvelope([]byte("AUD/USD.FXCM"), ContentTypeJSON, EncodingUTF8, "")
	reqCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	reply, err := bus.Request(reqCtx, TopicRequestQuoteTicks, request)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if string(reply.Payload) != "quote-tick-payload" {
		t.Errorf("expected reply payload, got %s", reply.Payload)
	}
}

func TestChannelBusRequestTimesOutWithNoResponder(t *testing.T) {
	bus := NewChannelBus(zap.NewNop())

	reqCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	request := NewEnvelope([]byte("x"), ContentTypeJSON, EncodingUTF8, "")
	_, err := bus.Request(reqCtx, TopicRequestBars, request)
	if err == nil {
		t.Fatal("expected a timeout error with no responder")
	}
}

func TestChannelBusPublishAfterCloseFails(t *testing.T) {
	bus := NewChannelBus(zap.NewNop())
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	err := bus.Publish(context.Background(), PublishPrefixQuote+"X", NewEnvelope(nil, ContentTypeJSON, EncodingUTF8, ""))
	if err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
