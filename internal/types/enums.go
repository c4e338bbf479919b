package types

// TopUpType distinguishes airtime purchases from data bundle purchases.
type TopUpType string

const (
	TopUpAirtime TopUpType = "airtime"
	TopUpData    TopUpType = "data"
)

// Network identifies a Nigerian mobile carrier.
type Network string

const (
	NetworkMTN     Network = "MTN"
	NetworkAirtel  Network = "Airtel"
	NetworkGlo     Network = "Glo"
	Network9Mobile Network = "9mobile"
)

// NetworkUnknown is the zero value returned when no prefix matches.
const NetworkUnknown Network = ""

// ScheduleType identifies the recurrence kind of a scheduled top-up.
type ScheduleType string

const (
	ScheduleOneTime ScheduleType = "one_time"
	ScheduleDaily   ScheduleType = "daily"
	ScheduleWeekly  ScheduleType = "weekly"
	ScheduleMonthly ScheduleType = "monthly"
)

// ScheduleStatus represents the lifecycle state of a ScheduledTopUp.
// Completed and cancelled are terminal; they are entered once and never reverted.
type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "active"
	SchedulePaused    ScheduleStatus = "paused"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s ScheduleStatus) Terminal() bool {
	return s == ScheduleCompleted || s == ScheduleCancelled
}

// PurchaseKind distinguishes an airtime/data purchase from a wallet funding
// top-up. The two carry different minimum amounts.
type PurchaseKind string

const (
	KindPurchase      PurchaseKind = "purchase"
	KindWalletFunding PurchaseKind = "wallet_funding"
)

// TransactionStatus is the gateway-reported outcome of a purchase.
type TransactionStatus string

const (
	TxCompleted TransactionStatus = "completed"
	TxPending   TransactionStatus = "pending"
	TxFailed    TransactionStatus = "failed"
)

// EventType identifies the kind of notification event dispatched to users.
type EventType string

const (
	EventBudgetThresholdCrossed EventType = "budget_threshold_crossed"
	EventScheduleExecuted       EventType = "schedule_executed"
	EventScheduleFailed         EventType = "schedule_failed"
	EventScheduleCompleted      EventType = "schedule_completed"
	EventAutoTopUpTriggered     EventType = "auto_topup_triggered"
)

// IntentSource identifies which engine produced a purchase intent.
type IntentSource string

const (
	IntentSourceSchedule IntentSource = "schedule"
	IntentSourceRule     IntentSource = "auto_topup_rule"
	IntentSourceManual   IntentSource = "manual"
)

// BudgetThresholds are the percentage marks that fire a threshold-crossed
// event when cumulative monthly spend passes them upward. Must stay sorted
// ascending; crossing logic emits events in this order.
var BudgetThresholds = []float64{50, 75, 90, 100}

// Currency limits, in naira.
const (
	MinPurchaseAmount      int64 = 100
	MinWalletFundingAmount int64 = 5_000
	MaxWalletBalance       int64 = 8_000_000
	MaxBudgetAmount        int64 = 10_000_000
)

// MaxPhoneNumbers is the per-user cap: one primary plus three additional.
const MaxPhoneNumbers = 4
