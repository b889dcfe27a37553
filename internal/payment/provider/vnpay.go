package provider

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	VNPayName = "vnpay"

	vnpaySuccessCode = "00"
	vnpayVersion     = "2.1.0"
	vnpayDateLayout  = "20060102150405"
)

type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

// VNPay signs a lexicographically sorted, URL-encoded query string with
// HMAC-SHA512 and appends the digest as vnp_SecureHash.
type VNPay struct {
	cfg VNPayConfig
}

func NewVNPay(cfg VNPayConfig) (*VNPay, error) {
	if cfg.TmnCode == "" || cfg.HashSecret == "" || cfg.PayURL == "" {
		return nil, fmt.Errorf("%w: vnpay requires tmn code, hash secret and pay url", ErrProviderNotConfigured)
	}
	return &VNPay{cfg: cfg}, nil
}

func (v *VNPay) Name() string { return VNPayName }

func (v *VNPay) BuildRedirectURL(req PaymentRequest) (string, error) {
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	params := url.Values{}
	params.Set("vnp_Version", vnpayVersion)
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", v.cfg.TmnCode)
	// VNPAY expects the amount multiplied by 100.
	params.Set("vnp_Amount", strconv.FormatInt(req.Amount*100, 10))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", req.OrderID)
	params.Set("vnp_OrderInfo", req.OrderInfo)
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_ReturnUrl", v.cfg.ReturnURL)
	params.Set("vnp_IpAddr", req.ClientIP)
	params.Set("vnp_CreateDate", createdAt.Format(vnpayDateLayout))

	canonical := canonicalQuery(params)
	signature := hmacSHA512(v.cfg.HashSecret, canonical)

	return fmt.Sprintf("%s?%s&vnp_SecureHash=%s", v.cfg.PayURL, canonical, signature), nil
}

func (v *VNPay) VerifyCallback(params url.Values) error {
	received := params.Get("vnp_SecureHash")
	if received == "" {
		return fmt.Errorf("%w: missing vnp_SecureHash", ErrMalformedCallback)
	}

	signed := url.Values{}
	for key, values := range params {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		for _, value := range values {
			signed.Add(key, value)
		}
	}

	expected := hmacSHA512(v.cfg.HashSecret, canonicalQuery(signed))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(received))) {
		return ErrInvalidSignature
	}
	return nil
}

func (v *VNPay) ParseCallback(params url.Values) (*CallbackResult, error) {
	orderID := params.Get("vnp_TxnRef")
	if orderID == "" {
		return nil, fmt.Errorf("%w: missing vnp_TxnRef", ErrMalformedCallback)
	}

	code := params.Get("vnp_ResponseCode")
	result := &CallbackResult{
		OrderID:       orderID,
		Success:       code == vnpaySuccessCode,
		Code:          code,
		TransactionNo: params.Get("vnp_TransactionNo"),
	}

	if amount := params.Get("vnp_Amount"); amount != "" {
		raw, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad vnp_Amount %q", ErrMalformedCallback, amount)
		}
		result.Amount = raw / 100
	}
	if payDate := params.Get("vnp_PayDate"); payDate != "" {
		if t, err := time.ParseInLocation(vnpayDateLayout, payDate, time.Local); err == nil {
			result.PayDate = t
		}
	}

	return result, nil
}

// canonicalQuery sorts parameter names and URL-encodes the values, the
// exact string VNPAY hashes on both sides.
func canonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(key)))
	}
	return b.String()
}

func hmacSHA512(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
