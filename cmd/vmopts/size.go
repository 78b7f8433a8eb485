package main

import (
	"fmt"
	"math"

	"github.com/Azhovan/vmopts"
	"github.com/spf13/pflag"
)

// sizeValue is a pflag.Value accepting sizes such as "512m" or "8g".
type sizeValue uint64

var _ pflag.Value = (*sizeValue)(nil)

func (s *sizeValue) String() string { return fmt.Sprint(uint64(*s)) }

func (s *sizeValue) Set(text string) error {
	n, err := vmopts.ParseMemorySize(text, 0, math.MaxUint64)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", text, err)
	}
	*s = sizeValue(n)
	return nil
}

func (s *sizeValue) Type() string { return "size" }
