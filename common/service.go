// common/service.go
package common

import (
	"github.com/ntulenev/KafkaSnapshot-sub000/common/backoff"
	consumer "github.com/ntulenev/KafkaSnapshot-sub000/common/kafka/consumer"
	producer "github.com/ntulenev/KafkaSnapshot-sub000/common/kafka/producer"
)

// ServiceNameKey is the metric label shared by all subsystems.
const ServiceNameKey = "service"

// InitServiceName sets one service name for the back-off, Kafka producer and
// Kafka connection metrics. Call it from main() before any work starts.
func InitServiceName(name string) {
	backoff.SetServiceLabel(name)
	producer.SetServiceLabel(name)
	consumer.SetServiceLabel(name)
}
