package engine

import (
	"fmt"
	"strings"

	"github.com/BaSui01/staffline/bot/parser"
	"github.com/BaSui01/staffline/types"
)

// =============================================================================
// Outbound message templates
// =============================================================================
// Every user-facing string lives here so the conversational surface can be
// reviewed in one place. Handlers format, they never phrase.
// =============================================================================

const (
	msgMaintenance = "🔧 The system is under maintenance. Please try again later."

	msgCancelled = "❌ Operation cancelled."

	msgStorageFailure = "⚠️ Something went wrong while saving your request. " +
		"Nothing was lost — please send your message again."

	msgRegistrationPrompt = "📝 New employee registration.\n" +
		"Please send the details in this format:\n\n" +
		"name: Somchai P.\n" +
		"department: Accounting\n" +
		"branch: Bangkok\n" +
		"position: Clerk\n" +
		"start date: 01-09-2026\n" +
		"category: daily"

	msgTransferPrompt = "🔁 Employee category transfer.\n" +
		"Please send the details in this format:\n\n" +
		"code: 90001\n" +
		"name: Somchai P.\n" +
		"position: Senior Clerk\n" +
		"category: monthly\n" +
		"effective date: 01-09-2026"
)

// menu renders the idle-state menu with the configured cancel word.
func (e *Engine) menu() string {
	return fmt.Sprintf(
		"👋 What would you like to do?\n"+
			"1. Register a new employee\n"+
			"2. Transfer an employee between categories\n\n"+
			"Reply with 1 or 2. Send %q at any time to abort.",
		e.cfg.CancelWord,
	)
}

// validationMessage picks the corrective reply for a rejected form message.
func validationMessage(verr *parser.ValidationError) string {
	switch verr.Kind {
	case parser.KindMissingSeparator:
		return "⚠️ Each line must look like \"field: value\". " +
			"Please check the format and send the whole message again."
	case parser.KindKeySetMismatch:
		return fmt.Sprintf(
			"⚠️ The fields don't match what I need (%s). "+
				"Please send the complete message again with exactly the listed fields.",
			verr.Detail,
		)
	case parser.KindInvalidDate:
		return fmt.Sprintf(
			"⚠️ %q is not a valid date. Please use DD-MM-YYYY, e.g. 01-09-2026, "+
				"and send the whole message again.",
			verr.Field,
		)
	case parser.KindInvalidCategory:
		return "⚠️ Category must be \"daily\" or \"monthly\". " +
			"Please correct it and send the whole message again."
	default:
		return "⚠️ I couldn't read that message. Please check the format and try again."
	}
}

// lookupFailedMessage reports an unknown employee code. The session survives
// so the user can resend with a corrected code.
func lookupFailedMessage(code string) string {
	return fmt.Sprintf(
		"🔍 No employee found with code %s. "+
			"Please check the code and send the message again, or cancel.",
		code,
	)
}

// registrationSuccessMessage confirms a registration with the issued code.
func registrationSuccessMessage(code int, values map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Registration complete! Employee code: %d\n\n", code)
	fmt.Fprintf(&b, "Name: %s\n", values["name"])
	fmt.Fprintf(&b, "Department: %s\n", values["department"])
	fmt.Fprintf(&b, "Branch: %s\n", values["branch"])
	fmt.Fprintf(&b, "Position: %s\n", values["position"])
	fmt.Fprintf(&b, "Start date: %s\n", values["start date"])
	fmt.Fprintf(&b, "Category: %s", values["category"])
	return b.String()
}

// transferSuccessMessage confirms a transfer with the newly issued code.
func transferSuccessMessage(oldCode string, newCode int, target types.Category) string {
	return fmt.Sprintf(
		"✅ Transfer complete!\nOld code %s is retired; the new %s code is %d.",
		oldCode, target, newCode,
	)
}

// transferSummaryPush is the follow-up push with the audit summary.
func transferSummaryPush(name, oldCode string, newCode int, source, target types.Category, effective string) string {
	return fmt.Sprintf(
		"📋 Transfer recorded\nEmployee: %s\n%s (%s) → %d (%s)\nEffective: %s",
		name, oldCode, source, newCode, target, effective,
	)
}
