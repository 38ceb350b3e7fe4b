package model

// RateReason explains a RateLimiter decision.
type RateReason string

const (
	RateReasonNone          RateReason = "none"
	RateReasonCooldown      RateReason = "cooldown"
	RateReasonLimitExceeded RateReason = "limit_exceeded"
)

type TicketEventType string

const (
	TicketEventOpened         TicketEventType = "opened"
	TicketEventClosed         TicketEventType = "closed"
	TicketEventCloseFailed    TicketEventType = "close_failed"
	TicketEventRateLimited    TicketEventType = "rate_limited"
	TicketEventFiltered       TicketEventType = "filtered"
	TicketEventStaffReply     TicketEventType = "staff_reply"
	TicketEventDeliveryFailed TicketEventType = "delivery_failed"
	TicketEventBroadcast      TicketEventType = "broadcast"
)

// Relay directions, used as metric labels.
const (
	DirectionUserToStaff = "user_to_staff"
	DirectionStaffToUser = "staff_to_user"
)
