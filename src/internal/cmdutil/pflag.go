package cmdutil

import (
	"github.com/spf13/pflag"
)

var _ pflag.Value = new(ByteSizeFlag)

// ByteSizeFlag is a flag holding a ByteSize, so sizes can be given as "4KiB" or "1M".
type ByteSizeFlag ByteSize

func (value *ByteSizeFlag) String() string {
	return ByteSize(*value).String()
}

func (value *ByteSizeFlag) Set(s string) error {
	b, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*value = ByteSizeFlag(b)
	return nil
}

func (value *ByteSizeFlag) Type() string {
	return "size"
}

// Bytes returns the flag's value in bytes.
func (value *ByteSizeFlag) Bytes() int64 {
	return int64(*value)
}
