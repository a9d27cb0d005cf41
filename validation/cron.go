package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	_const "github.com/TimeWtr/notify_scheduler/const"
)

var ErrInvalidCronExpression = errors.New("invalid cron expression")

type fieldBounds struct {
	name     string
	min, max int
}

// 分 时 日 月 周
var cronFields = [5]fieldBounds{
	{name: "minute", min: 0, max: 59},
	{name: "hour", min: 0, max: 23},
	{name: "day", min: 1, max: 31},
	{name: "month", min: 1, max: 12},
	{name: "weekday", min: 0, max: 6},
}

// ValidateCronExpression 校验5段cron表达式，每段只能是 字面量、*、*/n、a-b 或 a,b[,c...]
func ValidateCronExpression(expr string) error {
	parts := strings.Fields(expr)
	if len(parts) != len(cronFields) {
		return fmt.Errorf("%w: must have exactly 5 parts (minute hour day month weekday)", ErrInvalidCronExpression)
	}

	for i, part := range parts {
		if err := validateField(part, cronFields[i]); err != nil {
			return fmt.Errorf("%w: %s field %q: %v", ErrInvalidCronExpression, cronFields[i].name, part, err)
		}
	}

	if _, err := _const.Parser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCronExpression, err)
	}
	return nil
}

func validateField(part string, b fieldBounds) error {
	switch {
	case part == "*":
		return nil
	case strings.HasPrefix(part, "*/"):
		step, err := number(strings.TrimPrefix(part, "*/"))
		if err != nil {
			return err
		}
		if step < 1 || step > b.max {
			return fmt.Errorf("step must be between 1 and %d", b.max)
		}
		return nil
	case strings.Contains(part, ","):
		for _, item := range strings.Split(part, ",") {
			if err := literal(item, b); err != nil {
				return err
			}
		}
		return nil
	case strings.Contains(part, "-"):
		lo, hi, ok := strings.Cut(part, "-")
		if !ok {
			return errors.New("malformed range")
		}
		if err := literal(lo, b); err != nil {
			return err
		}
		if err := literal(hi, b); err != nil {
			return err
		}
		l, _ := strconv.Atoi(lo)
		h, _ := strconv.Atoi(hi)
		if l > h {
			return fmt.Errorf("range start %d beyond end %d", l, h)
		}
		return nil
	default:
		return literal(part, b)
	}
}

func literal(s string, b fieldBounds) error {
	n, err := number(s)
	if err != nil {
		return err
	}
	if n < b.min || n > b.max {
		return fmt.Errorf("value %d out of range %d-%d", n, b.min, b.max)
	}
	return nil
}

func number(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%q is not a number", s)
		}
	}
	return strconv.Atoi(s)
}
