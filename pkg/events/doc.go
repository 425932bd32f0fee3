/*
Package events provides an in-memory event broker for change notification.

The broker broadcasts post-commit notifications to subscribers: entry
lifecycle events and cache reload announcements. Delivery is best effort
over buffered channels; a subscriber with a full buffer is skipped rather
than blocking the write path. Consumers that must not miss a change read
the replication change log instead.

# Usage

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	for ev := range sub {
		// invalidate caches keyed by ev.Metadata["cid"]
	}

Payloads carry uuids and flag names, never attribute values.
*/
package events
