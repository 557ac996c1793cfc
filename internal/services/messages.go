package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ananth-NQI/lycapay-backend/internal/models"
	"github.com/Ananth-NQI/lycapay-backend/internal/utils"
)

// Fixed replies
const (
	MsgCancelled         = "❌ Operation cancelled. Send 'menu' to start over."
	MsgPurchaseCancelled = "❌ Purchase cancelled. Send 'menu' to start over."
	MsgApology           = "Sorry, I encountered an error. Please try again later or contact support."
	MsgStartOver         = "❌ Something went wrong. Please start over by sending 'menu'."
	MsgBundlesFailed     = "❌ Could not load bundles. Please try again later or contact support."
	MsgNoBundles         = "❌ Sorry, no data bundles are available at the moment. Please try again later."
	MsgBalanceFailed     = "❌ Could not retrieve the wallet balance right now. Please try again later."
	MsgHistoryFailed     = "❌ Could not load your transaction history. Please try again later."
	MsgProfileFailed     = "❌ Could not load your profile. Please try again later."
	MsgConfirmChoice     = "❓ Please send:\n1️⃣ *YES* to confirm\n2️⃣ *NO* to cancel\n\nOr send 'cancel' to abort."
	MsgNoHistory         = "📊 You have no transactions yet.\n\nSend *1* to buy a bundle or *2* to buy airtime."
)

const numberFormats = "📝 *Format Examples:*\n" +
	"• 0772123456\n" +
	"• 256772123456\n" +
	"• +256772123456"

const dateLayout = "2006-01-02 15:04:05"

var unknownCommandReplies = []string{
	"🤔 I didn't understand that. Send *menu* to see what I can do.",
	"😅 Sorry, I'm not sure what you mean. Send *menu* for options or *help* for assistance.",
	"❓ That command isn't recognised. Try *menu*, *bundles* or *airtime*.",
}

func welcomeMessage(botName, displayName string) string {
	name := ""
	if displayName != "" {
		name = " " + displayName
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🎉 *Welcome to %s%s!*\n\n", botName, name)
	b.WriteString("Your one-stop solution for:\n")
	b.WriteString("📱 Data Bundle Purchases\n")
	b.WriteString("💰 Airtime Top-ups\n")
	b.WriteString("📊 Balance & History Checking\n\n")
	b.WriteString("💡 *Quick Start:*\n")
	b.WriteString("• Send 'menu' to see all options\n")
	b.WriteString("• Send any Uganda number to check info\n")
	b.WriteString("• Send 'balance' to check your wallet\n\n")
	b.WriteString("Ready to get started? Send *menu* 🚀")
	return b.String()
}

func mainMenu(botName string) string {
	return "🏠 *" + botName + " Main Menu*\n\n" +
		"1️⃣ Buy Data Bundles\n" +
		"2️⃣ Buy Airtime\n" +
		"3️⃣ Transaction History\n" +
		"4️⃣ Support\n" +
		"5️⃣ My Profile\n\n" +
		"💡 *Quick Tips:*\n" +
		"• Send any Uganda number to check subscriber info\n" +
		"• Send 'balance' to check your wallet\n" +
		"• Send 'cancel' anytime to stop current operation\n\n" +
		"What would you like to do? 🤔"
}

func balanceMessage(b *WalletBalance) string {
	return "💳 *Wallet Balance*\n\n" +
		"💰 " + utils.FormatPrice(b.Balance) + "\n\n" +
		"Send 'menu' to continue 🏠"
}

func renderPlans(b *strings.Builder, plans []models.Plan) {
	for i, p := range plans {
		fmt.Fprintf(b, "%d️⃣ *%s*\n", i+1, p.Name)
		fmt.Fprintf(b, "   💰 %s\n", utils.FormatPrice(p.Price))
		if p.Description != "" {
			fmt.Fprintf(b, "   📄 %s\n", p.Description)
		}
		b.WriteString("\n")
	}
}

func bundleListMessage(plans []models.Plan) string {
	var b strings.Builder
	b.WriteString("📱 *Available Data Bundles*\n\n")
	renderPlans(&b, plans)
	b.WriteString("📝 *How to Purchase:*\n")
	fmt.Fprintf(&b, "Select bundle number (1-%d)\n\n", len(plans))
	b.WriteString("💡 *Tip:* You can also send a phone number first to pre-select the recipient\n\n")
	b.WriteString("Send 'menu' to go back 🔙")
	return b.String()
}

func bundleListForNumberMessage(phone string, plans []models.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📱 *Data Bundles for %s*\n\n", phone)
	renderPlans(&b, plans)
	fmt.Fprintf(&b, "Select bundle number (1-%d)\n\n", len(plans))
	b.WriteString("Send 'cancel' to abort 🚫")
	return b.String()
}

func invalidSelectionMessage(count int) string {
	return fmt.Sprintf("❌ Invalid selection. Please choose a number between 1 and %d\n\nSend 'menu' to start over.", count)
}

func invalidSavedNumberMessage(count int) string {
	return fmt.Sprintf("❌ Invalid selection. Please choose a number between 1 and %d or enter 'new' for a different number.", count)
}

func planSummary(p *models.Plan) string {
	return "📱 *Bundle Selected:* " + p.Name + "\n" +
		"💰 *Price:* " + utils.FormatPrice(p.Price) + "\n\n"
}

func amountSummary(amount int64) string {
	return "💰 *Amount:* " + utils.FormatCurrency(amount) + "\n\n"
}

func askNumberMessage(header string) string {
	return header +
		"📱 Please enter the Uganda mobile number to recharge:\n\n" +
		numberFormats + "\n\n" +
		"Send 'cancel' to abort 🚫"
}

func askNewNumberMessage() string {
	return "📱 Please enter the new Uganda mobile number:\n\n" + numberFormats
}

func invalidNumberMessage() string {
	return "❌ Invalid Uganda mobile number format.\n\n" +
		"📝 *Please use one of these formats:*\n" +
		"• 0772123456\n" +
		"• 256772123456\n" +
		"• +256772123456\n\n" +
		"Try again or send 'cancel' to abort."
}

func savedNumbersMessage(header string, numbers []models.SavedNumberRef) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("Select recipient number:\n\n")
	for i, n := range numbers {
		name := n.SubscriberName
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&b, "%d️⃣ %s (%s)\n", i+1, n.SubscriptionID, name)
	}
	b.WriteString("\n🆕 Enter 'new' for different number\n")
	b.WriteString("Send 'cancel' to abort 🚫")
	return b.String()
}

func airtimeOptionsMessage(min, max int64) string {
	var b strings.Builder
	b.WriteString("💰 *Airtime Top-up*\n\n")
	b.WriteString("🎯 *How it works:*\n")
	fmt.Fprintf(&b, "1️⃣ Enter the amount (Min: %s, Max: %s)\n", utils.FormatCurrency(min), utils.FormatCurrency(max))
	b.WriteString("2️⃣ Enter the phone number\n")
	b.WriteString("3️⃣ Confirm and purchase\n\n")
	b.WriteString("💡 *Popular amounts:*\n")
	for _, a := range []int64{1000, 2000, 5000, 10000} {
		fmt.Fprintf(&b, "• %s\n", utils.FormatCurrency(a))
	}
	b.WriteString("\n💵 Please enter the amount you want to top up:")
	return b.String()
}

func airtimeForNumberMessage(phone string, min, max int64) string {
	return fmt.Sprintf("💰 *Airtime for %s*\n\n", phone) +
		fmt.Sprintf("Enter the amount to top up (Min: %s, Max: %s)\n\n", utils.FormatCurrency(min), utils.FormatCurrency(max)) +
		"Send 'cancel' to abort 🚫"
}

func minAmountMessage(min int64) string {
	return "❌ Minimum airtime amount is " + utils.FormatCurrency(min) +
		"\n\nPlease enter a valid amount or send 'cancel' to abort."
}

func maxAmountMessage(max int64) string {
	return "❌ Maximum airtime amount is " + utils.FormatCurrency(max) + " per transaction." +
		"\n\nPlease enter a valid amount or send 'cancel' to abort."
}

func confirmationMessage(conf models.PurchaseConfirmation) string {
	var b strings.Builder
	if conf.Plan != nil {
		b.WriteString("🔍 *Purchase Confirmation*\n\n")
		fmt.Fprintf(&b, "📱 *Bundle:* %s\n", conf.Plan.Name)
		fmt.Fprintf(&b, "💰 *Price:* %s\n", utils.FormatPrice(conf.Plan.Price))
	} else {
		b.WriteString("🔍 *Airtime Purchase Confirmation*\n\n")
		fmt.Fprintf(&b, "💰 *Amount:* %s\n", utils.FormatCurrency(conf.Amount))
	}
	fmt.Fprintf(&b, "📞 *Number:* %s\n", conf.PhoneNumber)
	if conf.SubscriberName != "" {
		fmt.Fprintf(&b, "👤 *Subscriber:* %s\n", conf.SubscriberName)
	}
	if conf.Plan != nil && conf.Plan.Description != "" {
		fmt.Fprintf(&b, "\n📋 *Bundle Details:*\n%s\n", conf.Plan.Description)
	}
	if conf.Plan != nil {
		b.WriteString("\n✅ Confirm purchase?\n\n")
	} else {
		b.WriteString("\n✅ Confirm airtime top-up?\n\n")
	}
	b.WriteString("1️⃣ *YES* - Proceed with purchase\n")
	b.WriteString("2️⃣ *NO* - Cancel and go back\n\n")
	b.WriteString("Send your choice (1 or 2)")
	return b.String()
}

func successMessage(conf models.PurchaseConfirmation, txnID string, at time.Time) string {
	var b strings.Builder
	if conf.Plan != nil {
		b.WriteString("✅ *Purchase Successful!* 🎉\n\n")
		fmt.Fprintf(&b, "📱 *Bundle:* %s\n", conf.Plan.Name)
		fmt.Fprintf(&b, "💰 *Amount:* %s\n", utils.FormatPrice(conf.Plan.Price))
	} else {
		b.WriteString("✅ *Airtime Top-up Successful!* 🎉\n\n")
		fmt.Fprintf(&b, "💰 *Amount:* %s\n", utils.FormatCurrency(conf.Amount))
	}
	fmt.Fprintf(&b, "📞 *Number:* %s\n", conf.PhoneNumber)
	if conf.SubscriberName != "" {
		fmt.Fprintf(&b, "👤 *Subscriber:* %s\n", conf.SubscriberName)
	}
	fmt.Fprintf(&b, "🔢 *Transaction ID:* %s\n", txnID)
	fmt.Fprintf(&b, "📅 *Date:* %s\n\n", at.Format(dateLayout))
	if conf.Plan != nil {
		b.WriteString("🎯 The bundle has been successfully activated!\n\n")
	} else {
		b.WriteString("🎯 Airtime has been successfully credited!\n\n")
	}
	b.WriteString("Need anything else? Send 'menu' 🏠")
	return b.String()
}

func failureMessage(txnID, reason string) string {
	return "❌ *Purchase Failed*\n\n" +
		"🔢 *Transaction ID:* " + txnID + "\n" +
		"📄 *Reason:* " + reason + "\n\n" +
		"💡 You can try again or contact support if the issue persists.\n\n" +
		"Send 'menu' to try again or 'support' for help."
}

func alreadyProcessingMessage(txnID string) string {
	return "⏳ Transaction " + txnID + " is already being processed.\n\n" +
		"Send 'history' to check its status or 'menu' to start over."
}

func rechargeLimitMessage(phone string, limit int) string {
	return fmt.Sprintf("⏱️ %s has reached the limit of %d recharges per hour.\n\nPlease try again later or send 'menu' to start over.", phone, limit)
}

func historyMessage(txns []*models.Transaction) string {
	var b strings.Builder
	b.WriteString("📊 *Recent Transactions*\n\n")
	for _, t := range txns {
		icon := "⏳"
		switch t.Status {
		case models.TransactionStatusSuccess:
			icon = "✅"
		case models.TransactionStatusFailed:
			icon = "❌"
		}
		label := "Airtime"
		if t.Type == models.TransactionTypeBundle {
			label = "Bundle"
			if meta := Metadata(t); meta.BundleName != "" {
				label = "Bundle (" + meta.BundleName + ")"
			}
		}
		fmt.Fprintf(&b, "%s *%s* %s\n", icon, label, utils.FormatCurrency(t.Amount))
		fmt.Fprintf(&b, "   📞 %s\n", t.SubscriptionID)
		fmt.Fprintf(&b, "   🔢 %s\n", t.TransactionID)
		fmt.Fprintf(&b, "   📅 %s\n\n", t.CreatedAt.Format(dateLayout))
	}
	b.WriteString("Send 'menu' to go back 🔙")
	return b.String()
}

func supportMessage(botName, email, phone string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆘 *%s Support*\n\n", botName)
	b.WriteString("Need help with a purchase? Our team is here for you.\n\n")
	if email != "" {
		fmt.Fprintf(&b, "📧 *Email:* %s\n", email)
	}
	if phone != "" {
		fmt.Fprintf(&b, "📞 *Phone:* %s\n", phone)
	}
	b.WriteString("\n💡 Please include your transaction ID when reporting a problem.\n\n")
	b.WriteString("Send 'menu' to go back 🔙")
	return b.String()
}

func profileMessage(user *models.User, stats *models.TransactionStats, saved int64) string {
	var b strings.Builder
	b.WriteString("👤 *My Profile*\n\n")
	fmt.Fprintf(&b, "📞 *Phone:* %s\n", user.Phone)
	if !user.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "📅 *Member since:* %s\n", user.CreatedAt.Format("2006-01-02"))
	}
	b.WriteString("\n📊 *Statistics:*\n")
	fmt.Fprintf(&b, "• Total transactions: %d\n", stats.TotalTransactions)
	fmt.Fprintf(&b, "• Successful: %d\n", stats.SuccessfulTransactions)
	fmt.Fprintf(&b, "• Total spent: %s\n", utils.FormatCurrency(stats.TotalSpent))
	fmt.Fprintf(&b, "• Saved numbers: %d\n\n", saved)
	b.WriteString("Send 'menu' to go back 🔙")
	return b.String()
}

func numberInfoMessage(phone, name string) string {
	var b strings.Builder
	b.WriteString("🔍 *Subscriber Info*\n\n")
	fmt.Fprintf(&b, "📞 *Number:* %s\n", phone)
	if name != "" {
		fmt.Fprintf(&b, "👤 *Subscriber:* %s\n", name)
	}
	b.WriteString("\nWhat would you like to buy for this number?\n\n")
	b.WriteString("1️⃣ Data Bundle\n")
	b.WriteString("2️⃣ Airtime\n")
	b.WriteString("3️⃣ Main Menu")
	return b.String()
}

func numberLookupFailedMessage(phone, reason string) string {
	return "❌ Could not look up " + phone + ".\n\n" +
		"📄 *Reason:* " + reason + "\n\n" +
		"Send 'menu' to see all options."
}
