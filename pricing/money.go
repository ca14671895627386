package pricing

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Cents is an amount of money in US cents. It is serialised to JSON as a
// decimal dollar number with two fraction digits.
type Cents int64

// Dollars builds a Cents value from whole dollars.
func Dollars(d int64) Cents {
	return Cents(d * 100)
}

func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Cents) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if string(data) == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("pricing: parse amount %q: %w", data, err)
	}
	*c = Cents(math.Round(f * 100))
	return nil
}
