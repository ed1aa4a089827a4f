package cardgen

// Card networks reported by Network.
const (
	NetworkVisa       = "visa"
	NetworkMastercard = "mastercard"
	NetworkAmex       = "amex"
	NetworkDiscover   = "discover"
	NetworkJCB        = "jcb"
	NetworkDiners     = "diners"
	NetworkUnionPay   = "unionpay"
	NetworkUnknown    = "unknown"
)

// Network classifies a digits-only PAN by IIN prefix and length.
func Network(pan string) string {
	n := len(pan)
	if n < MinPANLength || !IsDigits(pan) {
		return NetworkUnknown
	}
	p2, p3, p4, p6 := pan[:2], pan[:3], pan[:4], pan[:6]

	switch {
	case pan[0] == '4':
		return NetworkVisa
	case (p2 >= "51" && p2 <= "55") || (p4 >= "2221" && p4 <= "2720"):
		if n == 16 {
			return NetworkMastercard
		}
	case p2 == "34" || p2 == "37":
		if n == 15 {
			return NetworkAmex
		}
	case p4 == "6011" || p2 == "65" || (p3 >= "644" && p3 <= "649") || (p6 >= "622126" && p6 <= "622925"):
		return NetworkDiscover
	case p4 >= "3528" && p4 <= "3589":
		return NetworkJCB
	case (p3 >= "300" && p3 <= "305") || p2 == "36" || p2 == "38":
		return NetworkDiners
	case p2 == "62":
		return NetworkUnionPay
	}
	return NetworkUnknown
}
