package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	MoMoName = "momo"

	momoSuccessCode = "0"
	momoRequestType = "captureWallet"
)

type MoMoConfig struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	PayURL      string
	RedirectURL string
	IPNURL      string
}

// MoMo signs a fixed-order key=value concatenation with HMAC-SHA256.
// The field order is part of the protocol, not lexicographic.
type MoMo struct {
	cfg MoMoConfig
}

func NewMoMo(cfg MoMoConfig) (*MoMo, error) {
	if cfg.PartnerCode == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.PayURL == "" {
		return nil, fmt.Errorf("%w: momo requires partner code, access key, secret key and pay url", ErrProviderNotConfigured)
	}
	return &MoMo{cfg: cfg}, nil
}

func (m *MoMo) Name() string { return MoMoName }

func (m *MoMo) BuildRedirectURL(req PaymentRequest) (string, error) {
	requestID := req.OrderID + "-" + strconv.FormatInt(reqTime(req).UnixMilli(), 10)
	amount := strconv.FormatInt(req.Amount, 10)

	raw := "accessKey=" + m.cfg.AccessKey +
		"&amount=" + amount +
		"&extraData=" +
		"&ipnUrl=" + m.cfg.IPNURL +
		"&orderId=" + req.OrderID +
		"&orderInfo=" + req.OrderInfo +
		"&partnerCode=" + m.cfg.PartnerCode +
		"&redirectUrl=" + m.cfg.RedirectURL +
		"&requestId=" + requestID +
		"&requestType=" + momoRequestType
	signature := hmacSHA256(m.cfg.SecretKey, raw)

	params := url.Values{}
	params.Set("partnerCode", m.cfg.PartnerCode)
	params.Set("accessKey", m.cfg.AccessKey)
	params.Set("requestId", requestID)
	params.Set("amount", amount)
	params.Set("orderId", req.OrderID)
	params.Set("orderInfo", req.OrderInfo)
	params.Set("redirectUrl", m.cfg.RedirectURL)
	params.Set("ipnUrl", m.cfg.IPNURL)
	params.Set("extraData", "")
	params.Set("requestType", momoRequestType)
	params.Set("signature", signature)

	return m.cfg.PayURL + "?" + params.Encode(), nil
}

func (m *MoMo) VerifyCallback(params url.Values) error {
	received := params.Get("signature")
	if received == "" {
		return fmt.Errorf("%w: missing signature", ErrMalformedCallback)
	}

	raw := "accessKey=" + m.cfg.AccessKey +
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
	expected := hmacSHA256(m.cfg.SecretKey, raw)

	if !hmac.Equal([]byte(expected), []byte(received)) {
		return ErrInvalidSignature
	}
	return nil
}

func (m *MoMo) ParseCallback(params url.Values) (*CallbackResult, error) {
	orderID := params.Get("orderId")
	if orderID == "" {
		return nil, fmt.Errorf("%w: missing orderId", ErrMalformedCallback)
	}

	code := params.Get("resultCode")
	result := &CallbackResult{
		OrderID:       orderID,
		Success:       code == momoSuccessCode,
		Code:          code,
		TransactionNo: params.Get("transId"),
	}

	if amount := params.Get("amount"); amount != "" {
		raw, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad amount %q", ErrMalformedCallback, amount)
		}
		result.Amount = raw
	}
	if responseTime := params.Get("responseTime"); responseTime != "" {
		if millis, err := strconv.ParseInt(responseTime, 10, 64); err == nil {
			result.PayDate = time.UnixMilli(millis)
		}
	}

	return result, nil
}

func reqTime(req PaymentRequest) time.Time {
	if req.CreatedAt.IsZero() {
		return time.Now()
	}
	return req.CreatedAt
}

func hmacSHA256(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
