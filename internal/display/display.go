// Package display 负责把链上整数与状态转换成展示用的字符串，全部为无状态的纯函数。
package display

import (
	"errors"
	"math/big"
	"strings"
	"time"
)

// EtherDecimals 原生币精度
const EtherDecimals = 18

// CampaignState 合约返回的活动状态
type CampaignState uint8

const (
	StateActive     CampaignState = 0
	StateSuccessful CampaignState = 1
	StateFailed     CampaignState = 2
)

// DisplayState 页面展示状态，过期优先于合约状态
type DisplayState string

const (
	DisplayActive     DisplayState = "active"
	DisplaySuccessful DisplayState = "successful"
	DisplayFailed     DisplayState = "failed"
	DisplayExpired    DisplayState = "expired"
	DisplayUnknown    DisplayState = "unknown"
)

var stateLabels = map[DisplayState]string{
	DisplayActive:     "进行中",
	DisplaySuccessful: "成功",
	DisplayFailed:     "失败",
	DisplayExpired:    "已过期",
	DisplayUnknown:    "未知",
}

// Label 状态的中文文案
func (s DisplayState) Label() string {
	if l, ok := stateLabels[s]; ok {
		return l
	}
	return stateLabels[DisplayUnknown]
}

var ErrInvalidAmount = errors.New("invalid amount")

// FormatEther 将 wei 转换为保留4位小数的字符串
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(wei, pow10(EtherDecimals))
	// FloatString 对最后一位做四舍五入（.5 远离零）
	return r.FloatString(4)
}

// FormatUnits 按精度完整输出金额，去掉多余的尾随0但至少保留一位小数
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0.0"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	base := pow10(int(decimals))

	whole, frac := new(big.Int).QuoRem(abs, base, new(big.Int))
	fracStr := ""
	if decimals > 0 {
		fracStr = frac.String()
		fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
		fracStr = strings.TrimRight(fracStr, "0")
	}
	if fracStr == "" {
		fracStr = "0"
	}

	out := whole.String() + "." + fracStr
	if neg {
		out = "-" + out
	}
	return out
}

// ParseEther 把十进制 ETH 字符串转换为 wei
func ParseEther(s string) (*big.Int, error) {
	return ParseUnits(s, EtherDecimals)
}

// ParseUnits 精确解析十进制金额，不接受负数、科学计数法或超过精度的小数位
func ParseUnits(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidAmount
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if hasDot && frac == "" && whole == "" {
		return nil, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return nil, ErrInvalidAmount
	}
	if len(frac) > int(decimals) {
		return nil, ErrInvalidAmount
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, ErrInvalidAmount
	}
	return v, nil
}

// Progress 募集进度百分比，范围 [0, 100]
func Progress(balance, goal *big.Int) float64 {
	if goal == nil || goal.Sign() <= 0 || balance == nil || balance.Sign() <= 0 {
		return 0
	}
	pct := new(big.Rat).SetFrac(new(big.Int).Mul(balance, big.NewInt(100)), goal)
	if pct.Cmp(big.NewRat(100, 1)) >= 0 {
		return 100
	}
	f, _ := pct.Float64()
	return f
}

// IsExpired 截止时间（秒）早于 now 时返回 true，截止时间为0表示未知
func IsExpired(deadline uint64, now time.Time) bool {
	if deadline == 0 {
		return false
	}
	return now.After(time.Unix(int64(deadline), 0))
}

// StateOf 计算展示状态
func StateOf(state CampaignState, expired bool) DisplayState {
	if expired {
		return DisplayExpired
	}
	switch state {
	case StateActive:
		return DisplayActive
	case StateSuccessful:
		return DisplaySuccessful
	case StateFailed:
		return DisplayFailed
	default:
		return DisplayUnknown
	}
}

// CanFund 只有进行中且未过期的活动可以继续支持
func CanFund(state CampaignState, expired bool) bool {
	return state == StateActive && !expired
}

// TruncateAddress 0x1234...abcd
func TruncateAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// FormatTimestamp 以本地时间格式化秒级时间戳
func FormatTimestamp(ts uint64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(int64(ts), 0).Local().Format("2006-01-02 15:04:05")
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
