// Package money は金額の入出力変換を提供する。
// 内部では最小通貨単位（セント）のint64で扱い、浮動小数点は使わない。
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// Scale は最小通貨単位の桁数（小数点以下2桁）。
	Scale = 2

	// MaxAmount は1回の操作で扱える上限（最小通貨単位）。10億の主単位に相当する。
	// 残高の加算がint64をあふれないよう十分小さく取っている。
	MaxAmount int64 = 100_000_000_000
)

var maxMinor = decimal.NewFromInt(MaxAmount)

// Parse は主単位の金額（例: 12.34）を最小通貨単位に変換する。
// 0以下、小数点以下3桁以上、MaxAmountを超える値はエラーを返す。
func Parse(d decimal.Decimal) (int64, error) {
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount must be greater than zero")
	}

	minor := d.Shift(Scale)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount must have at most %d decimal places", Scale)
	}
	if minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("amount is too large")
	}

	return minor.IntPart(), nil
}

// ParseString は文字列表現の金額を最小通貨単位に変換する。
func ParseString(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("amount is not a number: %w", err)
	}
	return Parse(d)
}

// Format は最小通貨単位の金額を小数点以下2桁固定の文字列にする。
func Format(minor int64) string {
	return decimal.New(minor, -Scale).StringFixed(Scale)
}
