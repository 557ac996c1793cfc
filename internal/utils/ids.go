package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransactionIDPrefix marks ids generated by this service.
const TransactionIDPrefix = "LYCA"

// GenerateTransactionID returns a globally unique id such as LYCA_1718000000_3f2a9c1e4b7d.
func GenerateTransactionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s", TransactionIDPrefix, time.Now().Unix(), suffix)
}
