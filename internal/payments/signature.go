package payments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// SortedJSON пересобирает JSON с ключами, отсортированными на всех уровнях.
// NowPayments подписывает именно такую форму тела. Числа сохраняются
// в исходной записи.
func SortedJSON(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	// encoding/json сортирует ключи map при маршалинге
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Sign возвращает hex(HMAC-SHA512(secret, SortedJSON(body))).
func Sign(secret string, body []byte) (string, error) {
	sorted, err := SortedJSON(body)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(sorted)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify сравнивает подпись из заголовка x-nowpayments-sig.
func Verify(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return false
	}
	decoded, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	expected, err := Sign(secret, body)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(expected)
	return hmac.Equal(decoded, want)
}
