// Package kafka holds the shared Kafka configuration, broker transport
// (TLS and SASL), the job event envelope and the lifecycle component.
//
//   - kafka/producer publishes job events with retries.
//   - kafka/consumer fetches and commits messages for the Kafka job queue.
//
//	kafka:
//	  enabled: true
//	  brokers: ["localhost:9092"]
//	  group_id: "meetingflow-workers"
package kafka
