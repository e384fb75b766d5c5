package dict

import (
	"fmt"
)

// surrogateImpl is the degraded stand-in handle returned when a dictionary
// cannot be opened. It answers every operation with the same descriptive
// error instead of letting the open failure take the process down: a
// configuration with one broken table keeps running, and the caller sees a
// consistent diagnostic on first use.
type surrogateImpl struct {
	dictType string
	name     string
	flags    Flags
	reason   error
}

// NewSurrogate builds a degraded handle for a dictionary that failed to
// open. The format/args describe the failure and become part of every
// error the handle returns.
func NewSurrogate(dictType, name string, openFlags int, dictFlags Flags, format string, args ...interface{}) Dictionary {
	return &surrogateImpl{
		dictType: dictType,
		name:     name,
		flags:    dictFlags,
		reason:   fmt.Errorf(format, args...),
	}
}

func (s *surrogateImpl) Type() string {
	return s.dictType
}

func (s *surrogateImpl) Name() string {
	return s.name
}

func (s *surrogateImpl) Flags() Flags {
	return s.flags
}

// fail wraps the captured open failure with the attempted operation.
func (s *surrogateImpl) fail(op string) error {
	return fmt.Errorf("%s %s:%s: %w", op, s.dictType, s.name, s.reason)
}

func (s *surrogateImpl) Lookup(string) ([]byte, bool, error) {
	return nil, false, s.fail("lookup")
}

func (s *surrogateImpl) Update(string, []byte) (Status, error) {
	return StatusSuccess, s.fail("update")
}

func (s *surrogateImpl) Delete(string) (bool, error) {
	return false, s.fail("delete")
}

func (s *surrogateImpl) Sequence(SeqFunc) (string, []byte, bool, error) {
	return "", nil, false, s.fail("sequence")
}

func (s *surrogateImpl) Close() error {
	return nil
}
