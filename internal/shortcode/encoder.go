package shortcode

import (
	"errors"
	"math"
	"strings"
)

// Alphabet 短码字符集：0-9, A-Z, a-z，顺序即数值
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const base = uint64(len(Alphabet))

var (
	// ErrInvalidEncoding 字符串为空或包含字符集以外的字符
	ErrInvalidEncoding = errors.New("invalid base62 encoding")
	// ErrOverflow 解码结果超出 uint64 范围
	ErrOverflow = errors.New("decoded value exceeds uint64 range")
)

// charToValue 字符到数值的查找表，-1 表示非法字符
var charToValue [256]int8

func init() {
	for i := range charToValue {
		charToValue[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		charToValue[Alphabet[i]] = int8(i)
	}
}

// Encode 将非负整数编码为最短的 Base62 字符串
//
//	Encode(0)  → "0"
//	Encode(61) → "z"
//	Encode(62) → "10"
func Encode(num uint64) string {
	if num == 0 {
		return Alphabet[:1]
	}

	// uint64 最多 11 位
	var buf [11]byte
	i := len(buf)
	for num > 0 {
		i--
		buf[i] = Alphabet[num%base]
		num /= base
	}
	return string(buf[i:])
}

// Decode 将 Base62 字符串还原为整数
func Decode(s string) (uint64, error) {
	if s == "" {
		return 0, ErrInvalidEncoding
	}

	var result uint64
	for i := 0; i < len(s); i++ {
		v := charToValue[s[i]]
		if v < 0 {
			return 0, ErrInvalidEncoding
		}
		if result > (math.MaxUint64-uint64(v))/base {
			return 0, ErrOverflow
		}
		result = result*base + uint64(v)
	}
	return result, nil
}

// IsValid 检查字符串是否只包含字符集内的字符
func IsValid(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if charToValue[s[i]] < 0 {
			return false
		}
	}
	return true
}

// Fit 将编码结果调整到固定长度：过长保留前 n 位，过短在右侧补字符集第一个字符
func Fit(encoded string, n int) string {
	if len(encoded) >= n {
		return encoded[:n]
	}
	return encoded + strings.Repeat(Alphabet[:1], n-len(encoded))
}
