package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	AttrPlatform = attribute.Key("platform")
	AttrOutcome  = attribute.Key("outcome")
	AttrStatus   = attribute.Key("status")
)

// BridgeMetrics records the activity of the sync, webhook and send paths.
// A nil *BridgeMetrics is valid and records nothing.
type BridgeMetrics struct {
	chatsSynced      *Counter
	chatsFailed      *Counter
	messagesRelayed  *Counter
	webhookEvents    *Counter
	messagesSent     *Counter
	tokenRefreshes   *Counter
	syncDuration     *Histogram
	platformRequests *Histogram
}

// NewBridgeMetrics creates the bridge instruments on meter
func NewBridgeMetrics(meter metric.Meter) (*BridgeMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	bm := &BridgeMetrics{}
	var err error

	if bm.chatsSynced, err = NewCounter(meter, "bridge_chats_synced_total",
		"Chats upserted by pull sync", "{chats}"); err != nil {
		return nil, err
	}
	if bm.chatsFailed, err = NewCounter(meter, "bridge_chats_failed_total",
		"Chats a pull sync could not store", "{chats}"); err != nil {
		return nil, err
	}
	if bm.messagesRelayed, err = NewCounter(meter, "bridge_messages_relayed_total",
		"Messages upserted by the message relay", "{messages}"); err != nil {
		return nil, err
	}
	if bm.webhookEvents, err = NewCounter(meter, "bridge_webhook_events_total",
		"Webhook deliveries by outcome", "{events}"); err != nil {
		return nil, err
	}
	if bm.messagesSent, err = NewCounter(meter, "bridge_messages_sent_total",
		"Outbound messages by status", "{messages}"); err != nil {
		return nil, err
	}
	if bm.tokenRefreshes, err = NewCounter(meter, "bridge_token_refresh_total",
		"Access token exchanges against the platform", "{tokens}"); err != nil {
		return nil, err
	}
	if bm.syncDuration, err = NewHistogram(meter, "bridge_sync_duration_seconds",
		"Duration of a full chat sync", "s", 0.1, 0.5, 1, 2.5, 5, 10, 30, 60); err != nil {
		return nil, err
	}
	if bm.platformRequests, err = NewHistogram(meter, "bridge_platform_request_duration_seconds",
		"Duration of platform API calls", "s", 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15); err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordSync records the outcome of one chat sync run
func (bm *BridgeMetrics) RecordSync(ctx context.Context, platform, status string, synced, failed int, d time.Duration) {
	if bm == nil {
		return
	}
	p := AttrPlatform.String(platform)
	bm.chatsSynced.Add(ctx, int64(synced), p)
	bm.chatsFailed.Add(ctx, int64(failed), p)
	bm.syncDuration.RecordDuration(ctx, d, p, AttrStatus.String(status))
}

// RecordMessagesRelayed counts messages stored for one chat
func (bm *BridgeMetrics) RecordMessagesRelayed(ctx context.Context, platform string, count int) {
	if bm == nil || count == 0 {
		return
	}
	bm.messagesRelayed.Add(ctx, int64(count), AttrPlatform.String(platform))
}

// RecordWebhookEvent counts one webhook delivery
func (bm *BridgeMetrics) RecordWebhookEvent(ctx context.Context, platform, outcome string) {
	if bm == nil {
		return
	}
	bm.webhookEvents.Inc(ctx, AttrPlatform.String(platform), AttrOutcome.String(outcome))
}

// RecordMessageSent counts one outbound send attempt
func (bm *BridgeMetrics) RecordMessageSent(ctx context.Context, platform string, ok bool) {
	if bm == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failed"
	}
	bm.messagesSent.Inc(ctx, AttrPlatform.String(platform), AttrStatus.String(status))
}

// RecordTokenRefresh counts one token exchange
func (bm *BridgeMetrics) RecordTokenRefresh(ctx context.Context, platform string, ok bool) {
	if bm == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failed"
	}
	bm.tokenRefreshes.Inc(ctx, AttrPlatform.String(platform), AttrStatus.String(status))
}

// RecordPlatformRequest records the latency of one platform API call
func (bm *BridgeMetrics) RecordPlatformRequest(ctx context.Context, operation string, d time.Duration, ok bool) {
	if bm == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failed"
	}
	bm.platformRequests.RecordDuration(ctx, d,
		attribute.String("operation", operation), AttrStatus.String(status))
}
