package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex pkg_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortIDWithPrefix returns a short human-facing ID with a prefix,
// capped at 12 characters, e.g. `RC-X2AQ8B`. Used for receipt numbers.
func GenerateShortIDWithPrefix(prefix string) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return ""
	}
	id = strings.ReplaceAll(id, "-", "")

	availableLen := 12 - len(prefix)
	if availableLen <= 0 {
		return ""
	}

	if len(id) > availableLen {
		id = id[:availableLen]
	}

	return strings.ToUpper(fmt.Sprintf("%s%s", prefix, id))
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_SERVICE         = "svc"
	UUID_PREFIX_CLIENT          = "client"
	UUID_PREFIX_TEMPLATE        = "tmpl"
	UUID_PREFIX_TEMPLATE_ITEM   = "tmpl_item"
	UUID_PREFIX_PACKAGE         = "pkg"
	UUID_PREFIX_PACKAGE_ITEM    = "pkg_item"
	UUID_PREFIX_USAGE_RECORD    = "usage"
	UUID_PREFIX_PACKAGE_PAYMENT = "pay"
	UUID_PREFIX_FINANCE_REQUEST = "fin"
)

const (
	SHORT_ID_PREFIX_RECEIPT = "RC-"
)
