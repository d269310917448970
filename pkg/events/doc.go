/*
Package events provides an in-memory event broker for Skiff's pub/sub messaging.

The events package implements a lightweight event bus for broadcasting cluster
events to interested subscribers. It supports asynchronous event delivery with
buffered channels, enabling loose coupling between Skiff components for state
changes, notifications, and monitoring.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                           │
	│  Publisher → Event Channel (buffer: 100)                  │
	│       ↓                                                   │
	│  Broadcast Loop                                           │
	│       ↓                                                   │
	│  Subscriber Channels (buffer: 50 each)                    │
	│                                                           │
	│  Event Types:                                             │
	│    Volume:  volume.created, volume.deleted,               │
	│             volume.downloaded, volume.download_failed     │
	│    Node:    node.connected, node.disconnected             │
	│    Pod:     pod.created, pod.deleted                      │
	│    Service: service.created, service.deleted              │
	└───────────────────────────────────────────────────────────┘

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Non-blocking publish (buffered channel)
  - Graceful shutdown via stop channel

Event:
  - ID: Unique event identifier
  - Type: Event type (volume.created, node.connected, etc.)
  - Timestamp: When event occurred
  - Message: Human-readable description
  - Metadata: Key-value pairs for additional context

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(events.NewEvent(events.EventVolumeCreated,
		"volume created", map[string]string{"volume": "data"}))

	for event := range sub {
		fmt.Printf("%s: %s\n", event.Type, event.Message)
	}

Slow subscribers do not block the broker: when a subscriber's buffer is
full, events for that subscriber are dropped.
*/
package events
