package shared

// PaymentMethod represents how a document or cash movement was settled
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodUPI          PaymentMethod = "upi"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodCredit       PaymentMethod = "credit"
	PaymentMethodOther        PaymentMethod = "other"
)

// PaymentMethods lists every storable payment method
var PaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodUPI,
	PaymentMethodBankTransfer,
	PaymentMethodCheque,
	PaymentMethodCredit,
	PaymentMethodOther,
}

// IsValid reports whether m is a known method. The empty method is not valid.
func (m PaymentMethod) IsValid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}
