package provider

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMoMo(t *testing.T) *MoMo {
	t.Helper()
	m, err := NewMoMo(MoMoConfig{
		PartnerCode: "MOMOTEST",
		AccessKey:   "access",
		SecretKey:   "secret",
		PayURL:      "https://test-payment.momo.vn/v2/gateway/api/create",
		RedirectURL: "http://localhost:8083/payments/momo/return",
		IPNURL:      "http://localhost:8083/payments/momo/ipn",
	})
	require.NoError(t, err)
	return m
}

// signMoMoCallback reproduces the gateway's fixed-order signature.
func signMoMoCallback(params url.Values, accessKey, secret string) url.Values {
	raw := "accessKey=" + accessKey +
		"&amount=" + params.Get("amount") +
		"&extraData=" + params.Get("extraData") +
		"&message=" + params.Get("message") +
		"&orderId=" + params.Get("orderId") +
		"&orderInfo=" + params.Get("orderInfo") +
		"&orderType=" + params.Get("orderType") +
		"&partnerCode=" + params.Get("partnerCode") +
		"&payType=" + params.Get("payType") +
		"&requestId=" + params.Get("requestId") +
		"&responseTime=" + params.Get("responseTime") +
		"&resultCode=" + params.Get("resultCode") +
		"&transId=" + params.Get("transId")
	params.Set("signature", hmacSHA256(secret, raw))
	return params
}

func momoCallbackParams() url.Values {
	params := url.Values{}
	params.Set("partnerCode", "MOMOTEST")
	params.Set("orderId", "o1")
	params.Set("requestId", "o1-1741946400000")
	params.Set("amount", "900000")
	params.Set("orderInfo", "Thanh toan don hang o1")
	params.Set("orderType", "momo_wallet")
	params.Set("transId", "4088878653")
	params.Set("resultCode", "0")
	params.Set("message", "Successful.")
	params.Set("payType", "qr")
	params.Set("responseTime", "1741946460000")
	params.Set("extraData", "")
	return params
}

func TestNewMoMo_RequiresConfig(t *testing.T) {
	_, err := NewMoMo(MoMoConfig{PartnerCode: "x"})
	require.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestMoMoBuildRedirectURL(t *testing.T) {
	m := newTestMoMo(t)

	raw, err := m.BuildRedirectURL(PaymentRequest{
		OrderID:   "o1",
		Amount:    900000,
		OrderInfo: "Thanh toan don hang o1",
		CreatedAt: time.UnixMilli(1741946400000),
	})
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	query := parsed.Query()

	assert.Equal(t, "MOMOTEST", query.Get("partnerCode"))
	assert.Equal(t, "900000", query.Get("amount"))
	assert.Equal(t, "o1", query.Get("orderId"))
	assert.Equal(t, "o1-1741946400000", query.Get("requestId"))
	assert.Equal(t, momoRequestType, query.Get("requestType"))
	assert.NotEmpty(t, query.Get("signature"))
}

func TestMoMoVerifyCallback(t *testing.T) {
	m := newTestMoMo(t)

	t.Run("valid signature", func(t *testing.T) {
		params := signMoMoCallback(momoCallbackParams(), "access", "secret")
		require.NoError(t, m.VerifyCallback(params))
	})

	t.Run("tampered result code", func(t *testing.T) {
		params := signMoMoCallback(momoCallbackParams(), "access", "secret")
		params.Set("resultCode", "0")
		params.Set("amount", "1")
		require.ErrorIs(t, m.VerifyCallback(params), ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		params := signMoMoCallback(momoCallbackParams(), "access", "other")
		require.ErrorIs(t, m.VerifyCallback(params), ErrInvalidSignature)
	})

	t.Run("missing signature", func(t *testing.T) {
		require.ErrorIs(t, m.VerifyCallback(momoCallbackParams()), ErrMalformedCallback)
	})
}

func TestMoMoParseCallback(t *testing.T) {
	m := newTestMoMo(t)

	result, err := m.ParseCallback(momoCallbackParams())
	require.NoError(t, err)
	assert.Equal(t, "o1", result.OrderID)
	assert.True(t, result.Success)
	assert.Equal(t, int64(900000), result.Amount)
	assert.Equal(t, "4088878653", result.TransactionNo)
	assert.Equal(t, time.UnixMilli(1741946460000), result.PayDate)
}

func TestMoMoParseCallback_Failure(t *testing.T) {
	m := newTestMoMo(t)

	params := momoCallbackParams()
	params.Set("resultCode", "1006") // user declined
	result, err := m.ParseCallback(params)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "1006", result.Code)
}

func TestMoMoParseCallback_Malformed(t *testing.T) {
	m := newTestMoMo(t)

	_, err := m.ParseCallback(url.Values{})
	require.ErrorIs(t, err, ErrMalformedCallback)
}

func TestRegistry(t *testing.T) {
	m := newTestMoMo(t)
	registry := NewRegistry(m)

	got, err := registry.Get(MoMoName)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = registry.Get("zalopay")
	require.ErrorIs(t, err, ErrUnknownProvider)
}
