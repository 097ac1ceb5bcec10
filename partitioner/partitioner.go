package partitioner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danthegoodman1/tablestream/table"
)

type (
	// PartitionPlan is one segment of a partition key: a registered function
	// applied to row columns, labeled As in the rendered key path.
	PartitionPlan struct {
		Func string
		Args []string
		As   string
	}

	PartitionFunc func(row table.Row, args []string) (string, error)
)

var (
	Functions = make(map[string]PartitionFunc)

	ErrFuncNotFound = errors.New("partition function not found")

	ErrMissingArgs       = errors.New("missing args")
	ErrMissingColumns    = errors.New("missing one or more columns specified in args")
	ErrInvalidColumnType = errors.New("invalid column type")
)

func RegisterFunctions() {
	Functions["toString"] = func(row table.Row, args []string) (string, error) {
		if len(args) == 0 {
			return "", ErrMissingArgs
		}
		val, err := row.ValueByName(args[0])
		if err != nil {
			return "", ErrMissingColumns
		}
		return fmt.Sprint(val), nil
	}
	Functions["toDay"] = func(row table.Row, args []string) (string, error) {
		t, err := parseTimeArg(row, args)
		if err != nil {
			return "", fmt.Errorf("error in parseTimeArg: %w", err)
		}

		return fmt.Sprint(t.Day()), nil
	}
	Functions["toMonth"] = func(row table.Row, args []string) (string, error) {
		t, err := parseTimeArg(row, args)
		if err != nil {
			return "", fmt.Errorf("error in parseTimeArg: %w", err)
		}

		return fmt.Sprint(int(t.Month())), nil
	}
	Functions["toYear"] = func(row table.Row, args []string) (string, error) {
		t, err := parseTimeArg(row, args)
		if err != nil {
			return "", fmt.Errorf("error in parseTimeArg: %w", err)
		}

		return fmt.Sprint(t.Year()), nil
	}
	Functions["toYearDay"] = func(row table.Row, args []string) (string, error) {
		t, err := parseTimeArg(row, args)
		if err != nil {
			return "", fmt.Errorf("error in parseTimeArg: %w", err)
		}

		return fmt.Sprint(t.YearDay()), nil
	}
	Functions["toYearWeek"] = func(row table.Row, args []string) (string, error) {
		t, err := parseTimeArg(row, args)
		if err != nil {
			return "", fmt.Errorf("error in parseTimeArg: %w", err)
		}

		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-%d", year, week), nil
	}
	Functions["toWeekDay"] = func(row table.Row, args []string) (string, error) {
		t, err := parseTimeArg(row, args)
		if err != nil {
			return "", fmt.Errorf("error in parseTimeArg: %w", err)
		}

		return fmt.Sprint(int(t.Weekday())), nil
	}
}

// GetRowPartition renders a row's partition key by running each plan segment
// and joining them as `as=value` path parts.
func GetRowPartition(row table.Row, partitioners []PartitionPlan) (string, error) {
	var finalParts []string
	for _, partFunc := range partitioners {
		f, ok := Functions[partFunc.Func]
		if !ok {
			return "", ErrFuncNotFound
		}

		s, err := f(row, partFunc.Args)
		if err != nil {
			return "", fmt.Errorf("error processing partition function %s: %w", partFunc.Func, err)
		}
		finalParts = append(finalParts, fmt.Sprintf("%s=%s", partFunc.As, s))
	}
	return strings.Join(finalParts, "/"), nil
}

func parseTimeArg(row table.Row, args []string) (t time.Time, err error) {
	if len(args) == 0 {
		err = ErrMissingArgs
		return
	}

	key := args[0]

	if key == "now()" {
		t = time.Now()
		return
	}

	value, lookupErr := row.ValueByName(key)
	if lookupErr != nil {
		err = ErrMissingColumns
		return
	}

	switch v := value.(type) {
	case time.Time:
		t = v
	case string:
		// We have a datetime like YYYY-MM-DDTHH:mm:ss.sssZ
		t, err = time.Parse("2006-01-02T15:04:05.000Z", v)
		if err != nil {
			err = fmt.Errorf("error in time.Parse for string: %w", err)
			return
		}
	case float64:
		// We have epoch millis as a float
		t = time.UnixMilli(int64(v))
	case int64:
		t = time.UnixMilli(v)
	default:
		err = ErrInvalidColumnType
		return
	}
	return
}
