package services

import "fmt"

const confirmationMessage = "✅ Payment received successfully! Thank you for your purchase."

const notGeneratedYet = "Not Generated Yet"

func invoiceNotice(number, amount, paymentURL, documentURL string) string {
	return fmt.Sprintf("🧾 Invoice #%s\n💰 Amount: ₹%s\n🔗 Pay here: %s\n📄 Invoice PDF: %s",
		number, amount, paymentURL, documentURL)
}

func reminderMessage(number, amount, paymentURL string) string {
	return fmt.Sprintf("🔔 Payment Reminder\n\nInvoice: #%s\nAmount due: ₹%s\n\nPay now: %s",
		number, amount, paymentURL)
}
