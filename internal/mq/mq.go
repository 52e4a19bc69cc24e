/*
Package mq manages the RabbitMQ connection through which the room CRUD
service publishes moderation actions to the relay.
*/
package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

// Dialer wraps a single AMQP connection.  One connection is enough for the
// relay's single consumer.
type Dialer struct {
	Connection *amqp091.Connection
}

// Dial connects to RabbitMQ.
func Dial(url string) (Dialer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return Dialer{}, fmt.Errorf("cannot connect to RabbitMQ: %w", err)
	}
	return Dialer{Connection: conn}, nil
}

// Release closes the underlying connection.
func (d Dialer) Release() {
	d.Connection.Close()
}

/*
DeclareActionQueue declares the "relay" topic exchange and the
"relay.actions" queue bound to it.  The CRUD service publishes already
authorized kick and delete actions to this queue; the relay only consumes.
Returns the queue name.
*/
func DeclareActionQueue(ch *amqp091.Channel) (string, error) {
	err := ch.ExchangeDeclare("relay", "topic", false, true, false, false, nil)
	if err != nil {
		return "", fmt.Errorf("cannot declare the relay exchange: %w", err)
	}

	q, err := ch.QueueDeclare("relay.actions", false, true, true, false, nil)
	if err != nil {
		return "", fmt.Errorf("cannot declare the actions queue: %w", err)
	}

	if err = ch.QueueBind(q.Name, q.Name, "relay", false, nil); err != nil {
		return "", fmt.Errorf("cannot bind %q to the relay exchange: %w", q.Name, err)
	}
	return q.Name, nil
}

/*
Consume consumes the named queue forever and forwards each delivery body to
the handle channel, acknowledging after the forward.  Returns when the
channel or connection is closed.
*/
func Consume(ch *amqp091.Channel, name string, handle chan<- []byte) error {
	deliveries, err := ch.Consume(name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("cannot consume queue %q: %w", name, err)
	}

	for d := range deliveries {
		handle <- d.Body
		d.Ack(false)
	}
	return nil
}
