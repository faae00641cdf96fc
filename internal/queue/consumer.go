package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Recorder persists consumed events durably. The MySQL audit
// repository satisfies it; a nil Recorder disables the ledger and
// leaves only the log file.
type Recorder interface {
	Record(ctx context.Context, ev GateEvent) error
}

// StartGateConsumer connects to RabbitMQ, declares the durable
// gate.events queue and consumes it forever. Every event is
// appended to logs/gate.log in a single-line format and, when a
// Recorder is configured, written to the audit ledger. The function
// runs a reconnect loop with capped backoff and keeps the server
// alive by rejecting messages it cannot process instead of
// crashing.
func StartGateConsumer(url string, recorder Recorder, log *zap.Logger) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("broker dial failed, retrying",
				zap.Duration("backoff", backoff), zap.Error(err))
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, recorder, log); err != nil {
			log.Warn("consume loop ended, reconnecting", zap.Error(err))
			_ = conn.Close()
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, recorder Recorder, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", zap.Error(err))
	}

	if _, err := ch.QueueDeclare(EventsQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(EventsQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, recorder); err != nil {
			log.Warn("handle message failed", zap.Error(err))
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, recorder Recorder) error {
	var ev GateEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := appendLogLine(ev); err != nil {
		return err
	}
	if recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := recorder.Record(ctx, ev); err != nil {
			return fmt.Errorf("audit record: %w", err)
		}
	}
	return nil
}

func appendLogLine(ev GateEvent) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "gate.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var line string
	switch ev.Type {
	case EventSystemReset:
		line = fmt.Sprintf("[%s] %s | seats_reset=%d | tickets_cleared=%d\n",
			ev.OccurredAt, ev.Type, ev.SeatsReset, ev.TicketsCleared)
	default:
		line = fmt.Sprintf("[%s] %s | ticket_id=%s | name=%q | seat_id=%s\n",
			ev.OccurredAt, ev.Type, ev.TicketID, ev.Name, ev.SeatID)
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
