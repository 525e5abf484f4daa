package shortcode

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/google/uuid"
)

// DefaultLength 默认短码长度，62^7 约 3.5 万亿
const DefaultLength = 7

// Generator 根据输入和重试次数推导候选短码
//
// attempt == 0 时结果只取决于输入；attempt > 0 时混入新的随机 nonce，
// 避免冲突后反复得到同一个候选。
type Generator struct {
	length int
	nonce  func() string
}

// GeneratorOption 生成器选项
type GeneratorOption func(*Generator)

// WithNonceSource 替换 nonce 来源，测试时用于得到可复现的候选
func WithNonceSource(fn func() string) GeneratorOption {
	return func(g *Generator) {
		g.nonce = fn
	}
}

// NewGenerator 创建生成器，length <= 0 时使用 DefaultLength
func NewGenerator(length int, opts ...GeneratorOption) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	g := &Generator{
		length: length,
		nonce:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Length 返回生成的短码长度
func (g *Generator) Length() int {
	return g.length
}

// Generate 计算 sha256(input + nonce)，取前 8 字节作为整数编码后调整到固定长度
func (g *Generator) Generate(input string, attempt int) string {
	payload := input
	if attempt > 0 {
		payload += g.nonce()
	}

	sum := sha256.Sum256([]byte(payload))
	n := binary.BigEndian.Uint64(sum[:8])
	return Fit(Encode(n), g.length)
}
