package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"ms-railbooking/internal/models"
)

// Producer streams booking events. Every publish is best-effort: the
// engine logs and swallows failures, a booking never rolls back because
// a broker was down.
type Producer struct {
	bookedWriter    *kafka.Writer
	cancelledWriter *kafka.Writer
}

func NewProducer(brokers []string, bookedTopic, cancelledTopic string) *Producer {
	if bookedTopic == "" {
		bookedTopic = TopicTicketBooked
	}
	if cancelledTopic == "" {
		cancelledTopic = TopicTicketCancelled
	}
	return &Producer{
		bookedWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   bookedTopic,
		}),
		cancelledWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   cancelledTopic,
		}),
	}
}

type ticketEvent struct {
	EventID string        `json:"event_id"`
	Ticket  models.Ticket `json:"ticket"`
	At      time.Time     `json:"at"`
}

func (p *Producer) PublishTicketBooked(ticket models.Ticket) error {
	return publish(p.bookedWriter, ticket)
}

func (p *Producer) PublishTicketCancelled(ticket models.Ticket) error {
	return publish(p.cancelledWriter, ticket)
}

func publish(w *kafka.Writer, ticket models.Ticket) error {
	msg, err := json.Marshal(ticketEvent{
		EventID: uuid.NewString(),
		Ticket:  ticket,
		At:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return w.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(ticket.PNR),
		Value: msg,
	})
}

func (p *Producer) Close() error {
	if err := p.bookedWriter.Close(); err != nil {
		return err
	}
	return p.cancelledWriter.Close()
}
