package readstate

import "time"

// NeverRead “从没读过”的哨兵水位（epoch）。
var NeverRead = time.Unix(0, 0).UTC()

// NormalizeStamp 把水位的各种在途表示归一成 time.Time：
// 服务端时间对象（time.Time）、RFC3339 字符串、Unix 毫秒数、
// 以及服务端时间还没落下来时的瞬时 null。
// 对消费方的契约只有一种：UTC 时间；认不出来返回 ok=false。
func NormalizeStamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t.UTC(), true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		if t == "" {
			return time.Time{}, false
		}
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC(), true
		}
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts.UTC(), true
		}
		return time.Time{}, false
	case float64: // JSON 数字默认解出来是它
		return time.UnixMilli(int64(t)).UTC(), true
	case int64:
		return time.UnixMilli(t).UTC(), true
	case int:
		return time.UnixMilli(int64(t)).UTC(), true
	default:
		return time.Time{}, false
	}
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
