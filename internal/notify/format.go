package notify

import (
	"strings"

	"solana-surge-lab/internal/domain"
)

// AlertHeader opens every alert message.
const AlertHeader = "🚀 Promising New Tokens Detected:\n\n"

// FormatAlert builds one message listing every prediction, in order.
// It returns "" when preds is empty.
func FormatAlert(preds []*domain.Prediction) string {
	if len(preds) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(AlertHeader)
	for _, p := range preds {
		sb.WriteString("Token: ")
		sb.WriteString(p.DisplayName())
		sb.WriteString("\nAddress: ")
		sb.WriteString(p.Address)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
