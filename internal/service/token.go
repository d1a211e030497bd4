package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

type TokenGenerator interface {
	Generate(typeName, seed string) string
}

type tokenGeneratorImpl struct {
	prefix string
	now    func() time.Time
}

// NewTokenGenerator builds tokens of the form PREFIX-TYPE-HASH6. A nil clock
// means time.Now.
func NewTokenGenerator(prefix string, now func() time.Time) TokenGenerator {
	if now == nil {
		now = time.Now
	}
	return &tokenGeneratorImpl{
		prefix: prefix,
		now:    now,
	}
}

func (g *tokenGeneratorImpl) Generate(typeName, seed string) string {
	typ := strings.ToUpper(strings.Join(strings.Fields(typeName), ""))

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%d", seed, g.now().UnixMilli())))
	hash := strings.ToUpper(hex.EncodeToString(sum[:])[:6])

	return g.prefix + "-" + typ + "-" + hash
}
