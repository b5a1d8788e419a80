package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// hexAddr is a pflag.Value for 16-bit addresses. It accepts the forms
// the C64 world actually writes: $1000, 0x1000 and plain 4096.
type hexAddr uint16

var _ pflag.Value = (*hexAddr)(nil)

func (a *hexAddr) String() string {
	return fmt.Sprintf("$%04X", uint16(*a))
}

func (a *hexAddr) Set(s string) error {
	s = strings.TrimSpace(s)
	base := 10
	switch {
	case strings.HasPrefix(s, "$"):
		s, base = s[1:], 16
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return fmt.Errorf("not a 16-bit address: %q", s)
	}
	*a = hexAddr(v)
	return nil
}

func (a *hexAddr) Type() string { return "address" }
