package kafka

// Topics for the booking event stream. Downstream consumers (email,
// analytics) subscribe to these; the booking path never depends on them.
const (
	TopicTicketBooked    = "ticket-booked"
	TopicTicketCancelled = "ticket-cancelled"
)
