package razorpay

import "testing"

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"payment.captured","payload":{}}`)
	valid := SignHMAC(secret, body)

	cases := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		want      bool
	}{
		{"valid", secret, body, valid, true},
		{"uppercase hex accepted", secret, body, upper(valid), true},
		{"tampered body", secret, []byte(`{"event":"payment.captured","payload":{"x":1}}`), valid, false},
		{"wrong secret", "other", body, valid, false},
		{"empty signature", secret, body, "", false},
		{"empty secret", "", body, valid, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := VerifyWebhookSignature(tc.secret, tc.body, tc.signature); got != tc.want {
				t.Fatalf("VerifyWebhookSignature() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVerifyCheckoutSignature(t *testing.T) {
	secret := "key_secret_test"
	orderID := "order_Nxq1v7hC3kP0ab"
	paymentID := "pay_Nxq2y8jD4lQ1cd"
	valid := SignHMAC(secret, []byte(orderID+"|"+paymentID))

	if !VerifyCheckoutSignature(secret, orderID, paymentID, valid) {
		t.Fatal("expected valid checkout signature to verify")
	}
	if VerifyCheckoutSignature(secret, orderID, "pay_other", valid) {
		t.Fatal("expected signature for a different payment to fail")
	}
	if VerifyCheckoutSignature(secret, orderID, paymentID, "") {
		t.Fatal("expected empty signature to fail")
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
