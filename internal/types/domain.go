package types

import (
	"time"
)

// PhoneNumber is a user's saved recipient number. Exactly one number per
// user is primary; the primary number cannot be edited or deleted. A user
// may hold at most MaxPhoneNumbers numbers in total.
type PhoneNumber struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Number    string    `json:"number" db:"number"` // 11 digits, digits only
	Label     string    `json:"label,omitempty" db:"label"`
	IsPrimary bool      `json:"is_primary" db:"is_primary"`
	Network   Network   `json:"network,omitempty" db:"network"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AutoTopUpRule triggers a purchase when remaining balance/data usage for a
// phone number drops to or below (100 - ThresholdPercentage) percent.
// At most one rule exists per (user, type, phone) tuple; a nil PhoneNumberID
// binds the rule to the user's primary number and occupies that slot.
type AutoTopUpRule struct {
	ID                  string    `json:"id" db:"id"`
	UserID              string    `json:"user_id" db:"user_id"`
	Type                TopUpType `json:"type" db:"type"`
	ThresholdPercentage int       `json:"threshold_percentage" db:"threshold_percentage"`
	TopUpAmount         int64     `json:"topup_amount" db:"topup_amount"` // naira
	IsEnabled           bool      `json:"is_enabled" db:"is_enabled"`
	PhoneNumberID       *string   `json:"phone_number_id,omitempty" db:"phone_number_id"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// ScheduledTopUp is a recurring or one-time top-up owned by a user and
// mutated only by the schedule manager.
type ScheduledTopUp struct {
	ID            string         `json:"id" db:"id"`
	UserID        string         `json:"user_id" db:"user_id"`
	Type          TopUpType      `json:"type" db:"type"`
	Network       Network        `json:"network" db:"network"`
	Amount        int64          `json:"amount" db:"amount"` // naira
	PhoneNumberID string         `json:"phone_number_id" db:"phone_number_id"`
	ScheduleType  ScheduleType   `json:"schedule_type" db:"schedule_type"`
	Recurrence    RecurrenceSpec `json:"recurrence" db:"recurrence"`
	Timezone      string         `json:"timezone" db:"timezone"`

	Status          ScheduleStatus `json:"status" db:"status"`
	NextExecutionAt *time.Time     `json:"next_execution_at,omitempty" db:"next_execution_at"`
	TotalExecutions int            `json:"total_executions" db:"total_executions"`
	MaxExecutions   *int           `json:"max_executions,omitempty" db:"max_executions"` // nil = unbounded

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Budget is the per-(user, calendar month) spending budget. A row is
// created implicitly on first write for a month via an explicit
// get-or-create guarded by a uniqueness constraint on (user_id, month_year).
type Budget struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	MonthYear    string    `json:"month_year" db:"month_year"` // "2026-09"
	BudgetAmount int64     `json:"budget_amount" db:"budget_amount"` // naira
	AmountSpent  int64     `json:"amount_spent" db:"amount_spent"`   // naira
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Remaining returns budget_amount - amount_spent. May be negative once the
// budget is exceeded.
func (b *Budget) Remaining() int64 {
	return b.BudgetAmount - b.AmountSpent
}

// PercentUsed returns amount_spent / budget_amount * 100, unbounded above
// 100. A zero budget amount yields 0 to avoid division by zero; no
// threshold events can fire until a budget is actually set.
func (b *Budget) PercentUsed() float64 {
	if b.BudgetAmount <= 0 {
		return 0
	}
	return float64(b.AmountSpent) / float64(b.BudgetAmount) * 100
}

// BudgetStatus is the derived view returned by the budget tracker.
type BudgetStatus struct {
	BudgetAmount   int64   `json:"budget_amount"`
	AmountSpent    int64   `json:"amount_spent"`
	Remaining      int64   `json:"remaining"`
	PercentageUsed float64 `json:"percentage_used"`
	MonthYear      string  `json:"month_year"`
}

// Transaction records a purchase attempt and its gateway outcome. Only
// completed transactions accumulate into the monthly budget.
type Transaction struct {
	ID          string            `json:"id" db:"id"`
	UserID      string            `json:"user_id" db:"user_id"`
	Type        TopUpType         `json:"type" db:"type"`
	Network     Network           `json:"network" db:"network"`
	PhoneNumber string            `json:"phone_number" db:"phone_number"`
	Amount      int64             `json:"amount" db:"amount"` // naira
	Reference   string            `json:"reference" db:"reference"`
	Status      TransactionStatus `json:"status" db:"status"`
	Source      IntentSource      `json:"source" db:"source"`
	SourceID    string            `json:"source_id,omitempty" db:"source_id"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
}

// PurchaseIntent is the handoff contract between the schedule/rule engines
// and the purchase pipeline. Every intent passes through the purchase
// validator before it reaches the gateway.
type PurchaseIntent struct {
	UserID        string       `json:"user_id"`
	Type          TopUpType    `json:"type"`
	Network       Network      `json:"network,omitempty"`
	Amount        int64        `json:"amount"` // naira
	PhoneNumberID *string      `json:"phone_number_id,omitempty"` // nil = primary
	Source        IntentSource `json:"source"`
	SourceID      string       `json:"source_id"`
}

// Event is a user-facing notification dispatched for threshold crossings
// and schedule outcomes.
type Event struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// PurchaseResult is the gateway's response to a purchase call.
type PurchaseResult struct {
	Reference string            `json:"reference"`
	Status    TransactionStatus `json:"status"`
}

// UsageReport is the input from the external usage-monitoring collaborator
// that drives auto top-up rule evaluation. RemainingPercentage is how much
// of the balance/data allotment is left, 0-100.
type UsageReport struct {
	UserID              string    `json:"user_id"`
	PhoneNumberID       *string   `json:"phone_number_id,omitempty"` // nil = primary
	Type                TopUpType `json:"type"`
	RemainingPercentage float64   `json:"remaining_percentage"`
}
