package dict

import (
	"strings"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/lmdict/lmdict/lib/logging"
)

var (
	logger = logging.GetLogger("dict")

	// openers maps a dictionary type name to its open function.
	openers = xsync.NewMapOf[string, OpenFunc]()
)

// OpenFunc opens a dictionary of one concrete type. It never fails: open
// errors are converted into a degraded handle (see NewSurrogate).
type OpenFunc func(name string, openFlags int, dictFlags Flags) Dictionary

// Register makes a dictionary type available to Open. It is meant to be
// called from the init function of adapter packages, in the manner of
// database/sql drivers. Registering the same type twice is a programming
// error.
func Register(dictType string, fn OpenFunc) {
	if _, loaded := openers.LoadOrStore(dictType, fn); loaded {
		logger.Panicf("Register: duplicate dictionary type %q", dictType)
	}
}

// Types returns the registered dictionary type names.
func Types() []string {
	var types []string
	openers.Range(func(name string, _ OpenFunc) bool {
		types = append(types, name)
		return true
	})
	return types
}

// Open opens the dictionary identified by a "type:name" spec string and
// routes the call to the registered adapter. An unknown type or a spec
// without a type prefix is a configuration error.
func Open(spec string, openFlags int, dictFlags Flags) Dictionary {
	dictType, name, found := strings.Cut(spec, ":")
	if !found || dictType == "" || name == "" {
		logger.Fatalf("Open: need \"type:name\" dictionary spec: %q", spec)
	}
	fn, ok := openers.Load(dictType)
	if !ok {
		logger.Fatalf("Open: unsupported dictionary type: %s (registered: %s)",
			dictType, strings.Join(Types(), ", "))
	}
	return fn(name, openFlags, dictFlags)
}
