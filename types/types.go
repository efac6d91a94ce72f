package types

import "strings"

// =============================================================================
// Core shared contracts
// =============================================================================
// These types define the smallest common vocabulary shared by the bot engine,
// the code allocator, the session store and the transport handlers.
//
// The types package is the lowest-level package with no internal dependencies,
// so placing these contracts here avoids circular imports.
// =============================================================================

// Category classifies an employee record. Each category owns its own table in
// the row store and its own sequential code namespace.
type Category string

const (
	// CategoryDaily is the daily-rate employee category.
	CategoryDaily Category = "daily"

	// CategoryMonthly is the monthly-rate employee category.
	CategoryMonthly Category = "monthly"
)

// Categories lists all known categories in lookup order. Transfer resolution
// scans tables in this order and stops at the first match.
var Categories = []Category{CategoryDaily, CategoryMonthly}

// ParseCategory resolves a user-supplied category label case-insensitively.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(CategoryDaily):
		return CategoryDaily, true
	case string(CategoryMonthly):
		return CategoryMonthly, true
	}
	return "", false
}

// Table returns the row-store table backing the category.
func (c Category) Table() string {
	if c == CategoryMonthly {
		return TableMonthlyEmployee
	}
	return TableDailyEmployee
}

// Seed returns the base of the category's code namespace. The first code
// issued into an empty table is Seed()+1.
func (c Category) Seed() int {
	if c == CategoryMonthly {
		return SeedMonthly
	}
	return SeedDaily
}

// Code namespace seeds. Monthly and daily codes must never collide, so the
// namespaces start far apart.
const (
	SeedMonthly = 20000
	SeedDaily   = 90000
)

// Row-store table names. These are part of the consumed storage contract and
// must match the deployed sheet/table layout.
const (
	TableDailyEmployee   = "DailyEmployee"
	TableMonthlyEmployee = "MonthlyEmployee"
	TableTransferHistory = "TransferHistory"
)

// Workflow identifies the multi-turn conversation a user is in.
type Workflow string

const (
	// WorkflowNone means the user is idle at the menu.
	WorkflowNone Workflow = ""

	// WorkflowRegistration is the employee registration conversation.
	WorkflowRegistration Workflow = "registration"

	// WorkflowTransfer is the category transfer conversation.
	WorkflowTransfer Workflow = "transfer"
)

// Inbound is one chat message delivered by the transport adapter.
type Inbound struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// Outbound is one chat message the engine wants delivered back to a user.
// The first outbound of a turn is the reply bound to the inbound event;
// messages with Push set are additional follow-up pushes.
type Outbound struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	Push   bool   `json:"push,omitempty"`
}
