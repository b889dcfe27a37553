package provider

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVNPay(t *testing.T) *VNPay {
	t.Helper()
	v, err := NewVNPay(VNPayConfig{
		TmnCode:    "TESTCODE",
		HashSecret: "secret",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "http://localhost:8083/payments/vnpay/return",
	})
	require.NoError(t, err)
	return v
}

func signVNPayParams(params url.Values, secret string) url.Values {
	signed := url.Values{}
	for key, values := range params {
		for _, value := range values {
			signed.Add(key, value)
		}
	}
	signed.Set("vnp_SecureHash", hmacSHA512(secret, canonicalQuery(params)))
	return signed
}

func TestNewVNPay_RequiresConfig(t *testing.T) {
	_, err := NewVNPay(VNPayConfig{TmnCode: "x", PayURL: "y"})
	require.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestVNPayBuildRedirectURL(t *testing.T) {
	v := newTestVNPay(t)

	raw, err := v.BuildRedirectURL(PaymentRequest{
		OrderID:   "o1",
		Amount:    900000,
		OrderInfo: "Thanh toan don hang o1",
		ClientIP:  "203.0.113.7",
		CreatedAt: time.Date(2025, 3, 14, 10, 30, 0, 0, time.Local),
	})
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	query := parsed.Query()

	// VNPAY wants the amount multiplied by 100.
	assert.Equal(t, "90000000", query.Get("vnp_Amount"))
	assert.Equal(t, "o1", query.Get("vnp_TxnRef"))
	assert.Equal(t, "TESTCODE", query.Get("vnp_TmnCode"))
	assert.Equal(t, "20250314103000", query.Get("vnp_CreateDate"))
	require.NotEmpty(t, query.Get("vnp_SecureHash"))

	// The emitted URL must verify with the same secret.
	require.NoError(t, v.VerifyCallback(query))
}

func TestVNPayVerifyCallback(t *testing.T) {
	v := newTestVNPay(t)

	params := url.Values{}
	params.Set("vnp_TxnRef", "o1")
	params.Set("vnp_Amount", "90000000")
	params.Set("vnp_ResponseCode", "00")
	params.Set("vnp_TransactionNo", "14417392")

	t.Run("valid signature", func(t *testing.T) {
		signed := signVNPayParams(params, "secret")
		require.NoError(t, v.VerifyCallback(signed))
	})

	t.Run("tampered amount", func(t *testing.T) {
		signed := signVNPayParams(params, "secret")
		signed.Set("vnp_Amount", "100")
		require.ErrorIs(t, v.VerifyCallback(signed), ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		signed := signVNPayParams(params, "other-secret")
		require.ErrorIs(t, v.VerifyCallback(signed), ErrInvalidSignature)
	})

	t.Run("missing hash", func(t *testing.T) {
		require.ErrorIs(t, v.VerifyCallback(params), ErrMalformedCallback)
	})

	t.Run("hash type field is excluded from signing", func(t *testing.T) {
		signed := signVNPayParams(params, "secret")
		signed.Set("vnp_SecureHashType", "HMACSHA512")
		require.NoError(t, v.VerifyCallback(signed))
	})
}

func TestVNPayParseCallback(t *testing.T) {
	v := newTestVNPay(t)

	params := url.Values{}
	params.Set("vnp_TxnRef", "o1")
	params.Set("vnp_Amount", "90000000")
	params.Set("vnp_ResponseCode", "00")
	params.Set("vnp_TransactionNo", "14417392")
	params.Set("vnp_PayDate", "20250314103245")

	result, err := v.ParseCallback(params)
	require.NoError(t, err)
	assert.Equal(t, "o1", result.OrderID)
	assert.True(t, result.Success)
	assert.Equal(t, int64(900000), result.Amount)
	assert.Equal(t, "14417392", result.TransactionNo)
	assert.Equal(t, time.Date(2025, 3, 14, 10, 32, 45, 0, time.Local), result.PayDate)
}

func TestVNPayParseCallback_Failure(t *testing.T) {
	v := newTestVNPay(t)

	params := url.Values{}
	params.Set("vnp_TxnRef", "o1")
	params.Set("vnp_ResponseCode", "24") // customer cancelled

	result, err := v.ParseCallback(params)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "24", result.Code)
}

func TestVNPayParseCallback_Malformed(t *testing.T) {
	v := newTestVNPay(t)

	_, err := v.ParseCallback(url.Values{})
	require.ErrorIs(t, err, ErrMalformedCallback)

	params := url.Values{}
	params.Set("vnp_TxnRef", "o1")
	params.Set("vnp_Amount", "not-a-number")
	_, err = v.ParseCallback(params)
	require.ErrorIs(t, err, ErrMalformedCallback)
}
